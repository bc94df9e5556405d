// Package types provides common type definitions shared by the scanners,
// the admission gate, the render pipeline and the HTTP surface.
// This package contains shared types to avoid circular dependencies between packages.
package types

import (
	"fmt"
	"strings"
)

// Severity ranks how dangerous a finding is.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

// String returns the display form used in rejection reports.
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "Low"
	case SeverityMedium:
		return "Medium"
	case SeverityHigh:
		return "High"
	default:
		return "Unknown"
	}
}

// MarshalText lets severities serialize as their display names in JSON and YAML.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a display name back into a Severity.
func (s *Severity) UnmarshalText(text []byte) error {
	sev, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// ParseSeverity converts a case-insensitive severity name.
func ParseSeverity(name string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	default:
		return SeverityLow, fmt.Errorf("unknown severity %q", name)
	}
}

// MaxStructuralExamples caps the snippets kept per structural category.
const MaxStructuralExamples = 3

// MaxLexicalExamples caps the snippets kept per lexical rule.
const MaxLexicalExamples = 2

// Finding is a categorized signal raised by a scanner.
type Finding struct {
	// Category names the risk, e.g. "Sensitive Module Require"
	Category string `json:"category" yaml:"category"`
	// Severity is the highest severity seen for the category
	Severity Severity `json:"severity" yaml:"severity"`
	// Examples holds literal source snippets in order of discovery
	Examples []string `json:"examples" yaml:"examples"`
}

// FindingList is the ordered output of one scanner pass.
type FindingList []Finding

// Categories returns the category names in order.
func (l FindingList) Categories() []string {
	out := make([]string, 0, len(l))
	for _, f := range l {
		out = append(out, f.Category)
	}
	return out
}

// Find returns the finding for a category, if present.
func (l FindingList) Find(category string) (Finding, bool) {
	for _, f := range l {
		if f.Category == category {
			return f, true
		}
	}
	return Finding{}, false
}

// HighestSeverity returns the most severe entry, or SeverityLow for an empty list.
func (l FindingList) HighestSeverity() Severity {
	highest := SeverityLow
	for _, f := range l {
		if f.Severity > highest {
			highest = f.Severity
		}
	}
	return highest
}

// FindingSet accumulates findings for a single scanner pass, deduplicating
// by category. Repeated occurrences append examples up to the cap instead of
// creating new entries.
type FindingSet struct {
	maxExamples int
	index       map[string]int
	findings    FindingList
}

// NewFindingSet creates an accumulator keeping at most maxExamples snippets per category.
func NewFindingSet(maxExamples int) *FindingSet {
	return &FindingSet{
		maxExamples: maxExamples,
		index:       make(map[string]int),
	}
}

// Add records an occurrence of category. A higher severity upgrades the entry.
func (s *FindingSet) Add(category string, severity Severity, example string) {
	if i, ok := s.index[category]; ok {
		f := &s.findings[i]
		if severity > f.Severity {
			f.Severity = severity
		}
		if len(f.Examples) < s.maxExamples {
			f.Examples = append(f.Examples, example)
		}
		return
	}

	s.index[category] = len(s.findings)
	s.findings = append(s.findings, Finding{
		Category: category,
		Severity: severity,
		Examples: []string{example},
	})
}

// Len returns the number of distinct categories recorded.
func (s *FindingSet) Len() int {
	return len(s.findings)
}

// List returns the accumulated findings. The result is never nil.
func (s *FindingSet) List() FindingList {
	out := make(FindingList, len(s.findings))
	for i, f := range s.findings {
		out[i] = Finding{
			Category: f.Category,
			Severity: f.Severity,
			Examples: append([]string(nil), f.Examples...),
		}
	}
	return out
}
