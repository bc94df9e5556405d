package engine

import (
	"context"

	"github.com/conneroisu/reportsmith/internal/errors"
	"github.com/conneroisu/reportsmith/internal/validation"
	"github.com/conneroisu/reportsmith/internal/watcher"
)

// FileChangeHandler returns a watcher handler that gates created or
// modified template files and forgets removed ones.
func (e *Engine) FileChangeHandler(ctx context.Context) watcher.ChangeHandler {
	return func(events []watcher.ChangeEvent) error {
		var firstErr error
		for _, ev := range events {
			if err := e.handleFileChange(ctx, ev); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
}

func (e *Engine) handleFileChange(ctx context.Context, ev watcher.ChangeEvent) error {
	name, err := validation.TemplateNameFromFile(ev.Path)
	if err != nil {
		e.logger.Debug(ctx, "Ignoring file", "path", ev.Path, "reason", err.Error())
		return nil
	}

	if ev.Type == watcher.EventTypeDeleted {
		e.registry.Remove(name)
		return nil
	}

	// A rename reports the old path, which no longer exists
	_, err = e.Revalidate(ctx, name)
	switch {
	case err == nil, errors.IsScanRejection(err):
		return nil
	case isNotFound(err):
		e.registry.Remove(name)
		return nil
	default:
		return err
	}
}

func isNotFound(err error) bool {
	var re *errors.ReportError
	return errors.As(err, &re) && re.Code == errors.ErrCodeTemplateNotFound
}
