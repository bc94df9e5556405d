// Package gate combines the structural and lexical scanners into a single
// admission decision and enforces it on stored templates.
package gate

import (
	"context"
	"fmt"
	"sync"

	"github.com/conneroisu/reportsmith/internal/errors"
	"github.com/conneroisu/reportsmith/internal/logging"
	"github.com/conneroisu/reportsmith/internal/scanner"
	"github.com/conneroisu/reportsmith/internal/types"
)

// DefaultReportLimit bounds the number of entries shown to callers on rejection.
const DefaultReportLimit = 5

// Decision is the combined outcome of both scanners. The two lists are
// kept apart; only their presence is combined.
type Decision struct {
	Structural types.FindingList `json:"structural" yaml:"structural"`
	Lexical    types.FindingList `json:"lexical" yaml:"lexical"`
	// ParseErr is the structural parse failure, if any
	ParseErr error `json:"-" yaml:"-"`
}

// Accepted reports whether both lists are empty.
func (d Decision) Accepted() bool {
	return len(d.Structural) == 0 && len(d.Lexical) == 0
}

// Report flattens the findings into at most limit display entries,
// structural findings first, each with its first example.
func (d Decision) Report(limit int) []types.ReportEntry {
	if limit <= 0 {
		limit = DefaultReportLimit
	}
	entries := make([]types.ReportEntry, 0, limit)
	for _, list := range []types.FindingList{d.Structural, d.Lexical} {
		for _, f := range list {
			if len(entries) >= limit {
				return entries
			}
			example := ""
			if len(f.Examples) > 0 {
				example = f.Examples[0]
			}
			entries = append(entries, types.ReportEntry{
				Category: f.Category,
				Severity: f.Severity,
				Example:  example,
			})
		}
	}
	return entries
}

// Rejection builds the terminal error for a rejected template. The report
// travels in the error context under "findings".
func (d Decision) Rejection(name string) *errors.ReportError {
	msg := fmt.Sprintf("template rejected by security scan: %d structural, %d lexical findings",
		len(d.Structural), len(d.Lexical))
	return errors.NewScanRejection(name, msg).
		WithContext("findings", d.Report(DefaultReportLimit))
}

// ReportOf extracts the rejection report from an error built by Rejection.
func ReportOf(err error) []types.ReportEntry {
	var re *errors.ReportError
	if !errors.As(err, &re) || re.Context == nil {
		return nil
	}
	entries, _ := re.Context["findings"].([]types.ReportEntry)
	return entries
}

// Gate runs both scanners over a candidate.
type Gate struct {
	structural scanner.Scanner
	lexical    scanner.Scanner
	logger     logging.Logger
}

// New creates a gate. A nil logger discards output.
func New(structural, lexical scanner.Scanner, logger logging.Logger) *Gate {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Gate{
		structural: structural,
		lexical:    lexical,
		logger:     logger.WithComponent("gate"),
	}
}

// Evaluate scans source with both scanners concurrently. The lexical
// scanner always runs, even when the structural parse failed.
func (g *Gate) Evaluate(ctx context.Context, source string) Decision {
	var (
		s  scanner.Result
		wg sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		s = g.structural.Scan(ctx, source)
	}()
	l := g.lexical.Scan(ctx, source)
	wg.Wait()

	if s.ParseErr != nil {
		g.logger.Warn(ctx, s.ParseErr, "Structural parse failed",
			"structural_findings", len(s.Findings))
	}

	return Decision{
		Structural: s.Findings,
		Lexical:    l.Findings,
		ParseErr:   s.ParseErr,
	}
}
