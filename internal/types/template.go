package types

import "time"

// TemplateRecord is a stored component template. It is immutable once
// accepted; rejected candidates are deleted, never quarantined.
type TemplateRecord struct {
	// Name is the template identifier without extension (e.g. "usage-table")
	Name string `json:"name" yaml:"name"`
	// Source is the raw JSX text
	Source string `json:"-" yaml:"-"`
	// Fingerprint is a CRC32 checksum of Source for change detection
	Fingerprint string `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	// ModTime is the last modification time reported by storage
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
}

// RenderContext drives a single document production. It holds no state
// across calls.
type RenderContext struct {
	TemplateName string
	StyleID      string
	Data         interface{}
}

// EventType represents the type of template change event.
type EventType string

const (
	EventTypeAdded    EventType = "added"
	EventTypeUpdated  EventType = "updated"
	EventTypeRemoved  EventType = "removed"
	EventTypeRejected EventType = "rejected"
)

// TemplateEvent represents a change in the template library, used for
// real-time notifications to websocket clients.
type TemplateEvent struct {
	Type        EventType `json:"type"`
	Name        string    `json:"name"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	// Findings carries the rejection report for EventTypeRejected
	Findings  []ReportEntry `json:"findings,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// ReportEntry is one display line of a rejection report.
type ReportEntry struct {
	Category string   `json:"category" yaml:"category"`
	Severity Severity `json:"severity" yaml:"severity"`
	Example  string   `json:"example" yaml:"example"`
}

// String renders the entry as "category [severity]: example".
func (e ReportEntry) String() string {
	return e.Category + " [" + e.Severity.String() + "]: " + e.Example
}
