package gate

import (
	"context"
	"strconv"

	"github.com/conneroisu/reportsmith/internal/logging"
	"github.com/conneroisu/reportsmith/internal/types"
)

// Persister is the storage the admitter writes accepted candidates to.
type Persister interface {
	Save(name, source string) (*types.TemplateRecord, error)
}

// Admitter stores the candidates the gate accepts.
type Admitter struct {
	gate   *Gate
	store  Persister
	logger logging.Logger
}

// NewAdmitter creates an admitter over the given gate and store.
func NewAdmitter(g *Gate, store Persister, logger logging.Logger) *Admitter {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Admitter{
		gate:   g,
		store:  store,
		logger: logger.WithComponent("admitter"),
	}
}

// Admit scans source and saves it under name only when neither scanner
// reports a finding. A rejected candidate never reaches storage, so a
// template already stored under name is left untouched.
func (a *Admitter) Admit(ctx context.Context, name, source string) (*types.TemplateRecord, Decision, error) {
	decision := a.gate.Evaluate(ctx, source)
	if decision.Accepted() {
		record, err := a.store.Save(name, source)
		if err != nil {
			return nil, decision, err
		}
		a.logger.Info(ctx, "Template admitted", "template", name, "fingerprint", record.Fingerprint)
		return record, decision, nil
	}

	details := map[string]interface{}{
		"template":            name,
		"structural_findings": len(decision.Structural),
		"lexical_findings":    len(decision.Lexical),
	}
	for i, entry := range decision.Report(DefaultReportLimit) {
		details["finding_"+strconv.Itoa(i+1)] = entry.String()
	}
	logging.LogSecurityEvent(a.logger, ctx, "template_rejected", details)

	return nil, decision, decision.Rejection(name)
}
