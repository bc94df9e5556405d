// Package styles resolves style identifiers to presentation objects. Each
// style is a YAML or JSON file of nested key-value tables; templates read
// it through the global `styles`.
package styles

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/reportsmith/internal/errors"
	"github.com/conneroisu/reportsmith/internal/validation"
)

// Resolver maps a style identifier to a presentation object. Unknown
// identifiers resolve to nil without error.
type Resolver interface {
	Resolve(id string) (map[string]interface{}, error)
}

// Extensions are tried in order for each identifier.
var Extensions = []string{".yaml", ".yml", ".json"}

// FileResolver loads "<dir>/<id>.yaml|.yml|.json" on every call.
type FileResolver struct {
	fs  afero.Fs
	dir string
}

// NewFileResolver creates a resolver over dir.
func NewFileResolver(fs afero.Fs, dir string) *FileResolver {
	return &FileResolver{fs: fs, dir: dir}
}

// Resolve loads the style. An empty or unknown id yields nil.
func (r *FileResolver) Resolve(id string) (map[string]interface{}, error) {
	if id == "" {
		return nil, nil
	}
	if err := validation.ValidateStyleID(id); err != nil {
		return nil, err
	}

	for _, ext := range Extensions {
		path := filepath.Join(r.dir, id+ext)
		data, err := afero.ReadFile(r.fs, path)
		if err != nil {
			continue
		}
		var table map[string]interface{}
		if err := yaml.Unmarshal(data, &table); err != nil {
			return nil, errors.WrapConfig(err, fmt.Sprintf("parsing style %s", path))
		}
		return table, nil
	}
	return nil, nil
}

// List returns the available style identifiers, sorted.
func (r *FileResolver) List() ([]string, error) {
	entries, err := afero.ReadDir(r.fs, r.dir)
	if err != nil {
		return nil, errors.WrapIO(err, "listing styles")
	}

	seen := make(map[string]bool)
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if !knownExtension(ext) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ext)
		if validation.ValidateStyleID(id) != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func knownExtension(ext string) bool {
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Static is an in-memory Resolver.
type Static map[string]map[string]interface{}

// Resolve implements Resolver.
func (s Static) Resolve(id string) (map[string]interface{}, error) {
	return s[id], nil
}
