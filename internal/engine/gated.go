package engine

import (
	"context"
	"sync"

	"github.com/conneroisu/reportsmith/internal/logging"
	"github.com/conneroisu/reportsmith/internal/types"
)

// admissions holds the fingerprint of the content the gate last accepted
// under each name. The registry cannot serve here because List registers
// whatever is on disk.
type admissions struct {
	mu           sync.RWMutex
	fingerprints map[string]string
}

func newAdmissions() *admissions {
	return &admissions{fingerprints: make(map[string]string)}
}

func (a *admissions) accept(name, fingerprint string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fingerprints[name] = fingerprint
}

func (a *admissions) accepted(name, fingerprint string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	fp, ok := a.fingerprints[name]
	return ok && fp == fingerprint
}

func (a *admissions) forget(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.fingerprints, name)
}

func (a *admissions) rename(from, to string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if fp, ok := a.fingerprints[from]; ok {
		a.fingerprints[to] = fp
		delete(a.fingerprints, from)
	}
}

// gatedReader is the renderer's view of storage. Content the gate has not
// accepted is gated on the exact bytes read before it is handed out, so a
// file dropped into the templates directory cannot run ahead of the
// watcher.
type gatedReader struct {
	e *Engine
}

func (g gatedReader) Read(name string) (*types.TemplateRecord, error) {
	record, err := g.e.store.Read(name)
	if err != nil {
		return nil, err
	}
	if g.e.admitted.accepted(name, record.Fingerprint) {
		return record, nil
	}
	if err := g.e.gateStored(context.Background(), record, "render"); err != nil {
		return nil, err
	}
	return record, nil
}

// gateStored evaluates content that reached storage without passing
// through Admit. Accepted content is registered; rejected content is
// deleted.
func (e *Engine) gateStored(ctx context.Context, record *types.TemplateRecord, origin string) error {
	decision := e.gate.Evaluate(ctx, record.Source)
	if decision.Accepted() {
		e.admitted.accept(record.Name, record.Fingerprint)
		e.registry.Register(record)
		return nil
	}

	e.admitted.forget(record.Name)
	if delErr := e.store.Delete(record.Name); delErr != nil {
		e.logger.Error(ctx, delErr, "Failed to delete rejected template", "template", record.Name)
	}
	report := decision.Report(e.reportLimit)
	logging.LogSecurityEvent(e.logger, ctx, "template_rejected", map[string]interface{}{
		"template": record.Name,
		"source":   origin,
		"findings": len(report),
	})
	e.registry.Reject(record.Name, report)
	e.registry.Remove(record.Name)
	return decision.Rejection(record.Name)
}
