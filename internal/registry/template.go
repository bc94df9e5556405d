// Package registry tracks the accepted templates and notifies watchers of
// library changes.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/reportsmith/internal/types"
)

// TemplateRegistry holds metadata of accepted templates. Source text is
// never cached here; renders always re-read storage.
type TemplateRegistry struct {
	templates map[string]*types.TemplateRecord
	mutex     sync.RWMutex
	watchers  []chan types.TemplateEvent
	now       func() time.Time
}

// NewTemplateRegistry creates an empty registry.
func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{
		templates: make(map[string]*types.TemplateRecord),
		watchers:  make([]chan types.TemplateEvent, 0),
		now:       time.Now,
	}
}

func metadata(record *types.TemplateRecord) *types.TemplateRecord {
	return &types.TemplateRecord{
		Name:        record.Name,
		Fingerprint: record.Fingerprint,
		ModTime:     record.ModTime,
	}
}

// Register adds or updates a template. Re-registering identical content
// publishes nothing.
func (r *TemplateRegistry) Register(record *types.TemplateRecord) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	eventType := types.EventTypeAdded
	if existing, exists := r.templates[record.Name]; exists {
		if existing.Fingerprint == record.Fingerprint {
			return
		}
		eventType = types.EventTypeUpdated
	}

	r.templates[record.Name] = metadata(record)
	r.notify(types.TemplateEvent{
		Type:        eventType,
		Name:        record.Name,
		Fingerprint: record.Fingerprint,
	})
}

// Remove drops a template.
func (r *TemplateRegistry) Remove(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	record, exists := r.templates[name]
	if !exists {
		return
	}

	delete(r.templates, name)
	r.notify(types.TemplateEvent{
		Type:        types.EventTypeRemoved,
		Name:        name,
		Fingerprint: record.Fingerprint,
	})
}

// Rename moves a registered template to record.Name.
func (r *TemplateRegistry) Rename(from string, record *types.TemplateRecord) {
	r.Remove(from)
	r.Register(record)
}

// Reject publishes a rejection. A registered entry for name is kept: the
// rejected candidate never replaced it.
func (r *TemplateRegistry) Reject(name string, findings []types.ReportEntry) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.notify(types.TemplateEvent{
		Type:     types.EventTypeRejected,
		Name:     name,
		Findings: findings,
	})
}

// Sync replaces the registry contents with records, publishing the
// differences.
func (r *TemplateRegistry) Sync(records []*types.TemplateRecord) {
	seen := make(map[string]bool, len(records))
	for _, record := range records {
		seen[record.Name] = true
		r.Register(record)
	}
	for _, name := range r.Names() {
		if !seen[name] {
			r.Remove(name)
		}
	}
}

// notify must be called with the mutex held.
func (r *TemplateRegistry) notify(event types.TemplateEvent) {
	event.Timestamp = r.now()
	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}

// Get retrieves template metadata by name.
func (r *TemplateRegistry) Get(name string) (*types.TemplateRecord, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	record, exists := r.templates[name]
	return record, exists
}

// GetAll returns all registered templates sorted by name.
func (r *TemplateRegistry) GetAll() []*types.TemplateRecord {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*types.TemplateRecord, 0, len(r.templates))
	for _, record := range r.templates {
		result = append(result, record)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Names returns the registered names, sorted.
func (r *TemplateRegistry) Names() []string {
	all := r.GetAll()
	names := make([]string, len(all))
	for i, record := range all {
		names[i] = record.Name
	}
	return names
}

// Watch returns a channel that receives template events
func (r *TemplateRegistry) Watch() <-chan types.TemplateEvent {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan types.TemplateEvent, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *TemplateRegistry) UnWatch(ch <-chan types.TemplateEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

// Count returns the number of registered templates
func (r *TemplateRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.templates)
}
