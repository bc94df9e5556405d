package sandbox

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/dop251/goja"
)

//go:embed react.js
var reactSource string

//go:embed human_names.json
var humanNamesData []byte

var (
	reactOnce    sync.Once
	reactProgram *goja.Program
	reactErr     error

	namesOnce sync.Once
	names     map[string][]string
	namesErr  error
)

// ModuleFactory builds a fresh module value inside a runtime. Factories
// run once per execution so no state leaks between renders.
type ModuleFactory func(vm *goja.Runtime) (goja.Value, error)

// Registry is the allow-list of modules templates may acquire.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ModuleFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ModuleFactory)}
}

// DefaultRegistry returns a registry exposing "react" and the pure-data
// "human-names" module.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("react", ReactModule)
	r.Register("human-names", HumanNamesModule)
	return r
}

// Register adds or replaces a module.
func (r *Registry) Register(name string, factory ModuleFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Names lists registered modules in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookup(name string) (ModuleFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// requireFunc builds the acquisition primitive handed to templates.
// Modules are instantiated lazily and cached for the life of the runtime.
func (r *Registry) requireFunc(vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	cache := make(map[string]goja.Value)
	return func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if v, ok := cache[name]; ok {
			return v
		}
		factory, ok := r.lookup(name)
		if !ok {
			panic(vm.NewTypeError("module %q is not available to templates", name))
		}
		v, err := factory(vm)
		if err != nil {
			panic(vm.NewGoError(fmt.Errorf("loading module %q: %w", name, err)))
		}
		cache[name] = v
		return v
	}
}

// ReactModule evaluates the markup library shim in vm.
func ReactModule(vm *goja.Runtime) (goja.Value, error) {
	reactOnce.Do(func() {
		reactProgram, reactErr = goja.Compile("react.js", reactSource, true)
	})
	if reactErr != nil {
		return nil, reactErr
	}
	return vm.RunProgram(reactProgram)
}

// HumanNamesModule exposes first-name lists shaped like the npm
// human-names package: maleEn, femaleEn and allEn. It carries data only.
func HumanNamesModule(vm *goja.Runtime) (goja.Value, error) {
	namesOnce.Do(func() {
		namesErr = json.Unmarshal(humanNamesData, &names)
	})
	if namesErr != nil {
		return nil, namesErr
	}

	list := func(groups ...string) goja.Value {
		var items []interface{}
		for _, g := range groups {
			for _, n := range names[g] {
				items = append(items, n)
			}
		}
		return vm.NewArray(items...)
	}

	module := vm.NewObject()
	for key, groups := range map[string][]string{
		"maleEn":   {"maleEn"},
		"femaleEn": {"femaleEn"},
		"allEn":    {"maleEn", "femaleEn"},
	} {
		if err := module.Set(key, list(groups...)); err != nil {
			return nil, err
		}
	}
	return module, nil
}
