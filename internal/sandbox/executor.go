// Package sandbox evaluates compiled templates in a fresh, constrained
// JavaScript runtime and resolves the returned element tree into markup.
//
// Each execution gets its own goja runtime. The only bindings a template
// receives are an allow-listed require, a module/exports output cell, the
// data payload and the styles global. Execution is bounded by the caller's
// context and a maximum call-stack depth.
package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dop251/goja"

	"github.com/conneroisu/reportsmith/internal/errors"
	"github.com/conneroisu/reportsmith/internal/logging"
	"github.com/conneroisu/reportsmith/internal/markup"
	"github.com/conneroisu/reportsmith/internal/transform"
)

// DefaultMaxCallStackSize bounds recursion inside templates.
const DefaultMaxCallStackSize = 1024

// ComponentKind tags how a template exported its component.
type ComponentKind int

const (
	// KindNone means the output cell held no callable.
	KindNone ComponentKind = iota
	// KindDefault is a component found at module.exports.default.
	KindDefault
	// KindPlain is a component assigned to module.exports directly.
	KindPlain
)

func (k ComponentKind) String() string {
	switch k {
	case KindDefault:
		return "default"
	case KindPlain:
		return "plain"
	default:
		return "none"
	}
}

// Component is the tagged result of evaluating a template.
type Component struct {
	Kind  ComponentKind
	value goja.Value
}

// Env is the per-render input bound into the runtime.
type Env struct {
	// Data is the payload passed to the component as props.data
	Data interface{}
	// Styles is the presentation object exposed as the styles global
	Styles interface{}
}

// Executor runs compiled templates.
type Executor struct {
	modules  *Registry
	maxStack int
	logger   logging.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithRegistry replaces the module allow-list.
func WithRegistry(r *Registry) Option {
	return func(e *Executor) {
		e.modules = r
	}
}

// WithMaxCallStackSize sets the call-stack bound.
func WithMaxCallStackSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxStack = n
		}
	}
}

// WithLogger routes template console output to logger at debug level.
func WithLogger(l logging.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor creates an executor with the default "react"-only registry.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		modules:  DefaultRegistry(),
		maxStack: DefaultMaxCallStackSize,
		logger:   logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("sandbox")
	return e
}

// Instance is an evaluated template bound to one runtime.
type Instance struct {
	name      string
	vm        *goja.Runtime
	data      goja.Value
	component Component
	stop      func() bool
}

// Component returns the tagged component.
func (in *Instance) Component() Component {
	return in.component
}

// Close releases the interrupt watcher. It is safe to call more than once.
func (in *Instance) Close() {
	if in.stop != nil {
		in.stop()
	}
}

// Run evaluates the template, invokes its component with props {data} and
// resolves the result.
func (e *Executor) Run(ctx context.Context, compiled *transform.Compiled, env Env) (markup.Node, error) {
	in, err := e.Load(ctx, compiled, env)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	return in.Render()
}

// Load evaluates the wrapped script and extracts the exported component.
// The runtime is interrupted when ctx is done, including during a later
// Render on the returned instance.
func (e *Executor) Load(ctx context.Context, compiled *transform.Compiled, env Env) (*Instance, error) {
	name := compiled.Name
	if err := ctx.Err(); err != nil {
		return nil, errors.NewExecutionError(name, errors.ErrCodeInterrupted, "execution cancelled", err)
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(e.maxStack)
	in := &Instance{name: name, vm: vm}
	in.stop = context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})

	fail := func(err error) (*Instance, error) {
		in.Close()
		return nil, err
	}

	if err := e.bindGlobals(vm, env.Styles); err != nil {
		return fail(errors.NewExecutionError(name, errors.ErrCodeExecutionFailed, "binding globals failed", err))
	}

	data, err := copyIn(vm, env.Data)
	if err != nil {
		return fail(errors.NewExecutionError(name, errors.ErrCodeExecutionFailed, "binding data payload failed", err))
	}
	in.data = data

	wrapped := "(function (require, module, exports, data) {\n" + compiled.Script + "\n})"
	program, err := goja.Compile(compiled.DiagnosticName, wrapped, false)
	if err != nil {
		return fail(errors.NewCompileError(name, "compiled script is not valid", err))
	}
	unit, err := vm.RunProgram(program)
	if err != nil {
		return fail(executionError(name, err))
	}
	call, ok := goja.AssertFunction(unit)
	if !ok {
		return fail(errors.NewExecutionError(name, errors.ErrCodeExecutionFailed, "wrapped unit is not callable", nil))
	}

	module := vm.NewObject()
	exports := vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return fail(errors.WrapInternal(err, "creating output cell"))
	}

	if _, err := call(goja.Undefined(), vm.ToValue(e.modules.requireFunc(vm)), module, exports, data); err != nil {
		return fail(executionError(name, err))
	}

	in.component = extractComponent(module.Get("exports"))
	if in.component.Kind == KindNone {
		return fail(errors.NewExecutionError(name, errors.ErrCodeNoComponent,
			fmt.Sprintf("template %s did not export a component", name), nil))
	}
	return in, nil
}

// Render invokes the component with props {data} and resolves the tree.
func (in *Instance) Render() (markup.Node, error) {
	props := in.vm.NewObject()
	if err := props.Set("data", in.data); err != nil {
		return nil, errors.WrapInternal(err, "creating props")
	}

	r := newResolver(in.vm)
	node, err := r.renderComponent(in.component.value, props)
	if err != nil {
		return nil, executionError(in.name, err)
	}
	return node, nil
}

// extractComponent prefers a default export, then a plain export.
func extractComponent(exports goja.Value) Component {
	if exports == nil || goja.IsUndefined(exports) || goja.IsNull(exports) {
		return Component{Kind: KindNone}
	}
	if obj, ok := exports.(*goja.Object); ok {
		if def := obj.Get("default"); def != nil {
			if _, callable := goja.AssertFunction(def); callable {
				return Component{Kind: KindDefault, value: def}
			}
		}
	}
	if _, callable := goja.AssertFunction(exports); callable {
		return Component{Kind: KindPlain, value: exports}
	}
	return Component{Kind: KindNone}
}

func (e *Executor) bindGlobals(vm *goja.Runtime, styles interface{}) error {
	stylesValue, err := copyIn(vm, styles)
	if err != nil {
		return fmt.Errorf("styles: %w", err)
	}
	if err := vm.Set("styles", stylesValue); err != nil {
		return err
	}

	console := vm.NewObject()
	logFn := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, a := range call.Arguments {
				parts = append(parts, a.String())
			}
			e.logger.Debug(context.Background(), "Template console output",
				"level", level, "message", logging.SanitizeForLog(strings.Join(parts, " ")))
			return goja.Undefined()
		}
	}
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(level, logFn(level)); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

// copyIn deep-copies a Go value into the runtime through JSON so the
// template cannot reach host objects.
func copyIn(vm *goja.Runtime, v interface{}) (goja.Value, error) {
	if v == nil {
		return goja.Null(), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	parse, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("parse"))
	if !ok {
		return nil, fmt.Errorf("JSON.parse unavailable")
	}
	return parse(goja.Undefined(), vm.ToValue(string(raw)))
}

// executionError classifies a runtime failure.
func executionError(name string, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return errors.NewExecutionError(name, errors.ErrCodeInterrupted, "execution interrupted", err)
	}
	var re *errors.ReportError
	if errors.As(err, &re) {
		return err
	}
	return errors.NewExecutionError(name, errors.ErrCodeExecutionFailed, "template execution failed", err)
}

// Trace returns the script stack trace carried by err, if any.
func Trace(err error) string {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		return exc.String()
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return interrupted.String()
	}
	return ""
}
