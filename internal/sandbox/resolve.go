package sandbox

import (
	"fmt"
	"strconv"

	"github.com/dop251/goja"

	"github.com/conneroisu/reportsmith/internal/markup"
)

const maxTreeDepth = 512

// resolver turns element values returned by components into markup.
type resolver struct {
	vm       *goja.Runtime
	element  goja.Value
	fragment goja.Value
	provider goja.Value
	depth    int
}

func newResolver(vm *goja.Runtime) *resolver {
	symbolFor := func(key string) goja.Value {
		v, err := vm.RunString(fmt.Sprintf("Symbol.for(%q)", key))
		if err != nil {
			return goja.Undefined()
		}
		return v
	}
	return &resolver{
		vm:       vm,
		element:  symbolFor("react.element"),
		fragment: symbolFor("react.fragment"),
		provider: symbolFor("react.provider"),
	}
}

// renderComponent invokes a function or class component and resolves its output.
func (r *resolver) renderComponent(component goja.Value, props *goja.Object) (markup.Node, error) {
	r.depth++
	defer func() { r.depth-- }()
	if r.depth > maxTreeDepth {
		return nil, fmt.Errorf("component tree exceeds depth %d", maxTreeDepth)
	}

	if isClassComponent(component) {
		instance, err := r.vm.New(component, props)
		if err != nil {
			return nil, err
		}
		render, ok := goja.AssertFunction(instance.Get("render"))
		if !ok {
			return nil, fmt.Errorf("class component has no render method")
		}
		out, err := render(instance)
		if err != nil {
			return nil, err
		}
		return r.resolve(out)
	}

	fn, ok := goja.AssertFunction(component)
	if !ok {
		return nil, fmt.Errorf("element type is invalid: expected a string or a component, got %s", describe(component))
	}
	out, err := fn(goja.Undefined(), props)
	if err != nil {
		return nil, err
	}
	return r.resolve(out)
}

// resolve converts any renderable value. Null, undefined, booleans and
// functions render nothing.
func (r *resolver) resolve(v goja.Value) (markup.Node, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	if _, callable := goja.AssertFunction(v); callable {
		return nil, nil
	}

	switch val := v.Export().(type) {
	case bool:
		return nil, nil
	case string:
		return &markup.Text{Value: val}, nil
	case int64, float64:
		return &markup.Slot{Value: val}, nil
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		return &markup.Slot{Value: v.String()}, nil
	}
	if obj.ClassName() == "Array" {
		children, err := r.resolveList(obj)
		if err != nil {
			return nil, err
		}
		return &markup.Fragment{Children: children}, nil
	}
	if typ := obj.Get("$$typeof"); typ != nil && typ.StrictEquals(r.element) {
		return r.resolveElement(obj)
	}
	return nil, fmt.Errorf("objects are not valid as a child (found: %s)", describe(v))
}

func (r *resolver) resolveList(arr *goja.Object) ([]markup.Node, error) {
	length := int(arr.Get("length").ToInteger())
	children := make([]markup.Node, 0, length)
	for i := 0; i < length; i++ {
		n, err := r.resolve(arr.Get(strconv.Itoa(i)))
		if err != nil {
			return nil, err
		}
		if n != nil {
			children = append(children, n)
		}
	}
	return children, nil
}

func (r *resolver) resolveChildren(props *goja.Object) ([]markup.Node, error) {
	if props == nil {
		return nil, nil
	}
	n, err := r.resolve(props.Get("children"))
	if err != nil || n == nil {
		return nil, err
	}
	if frag, ok := n.(*markup.Fragment); ok {
		return frag.Children, nil
	}
	return []markup.Node{n}, nil
}

func (r *resolver) resolveElement(el *goja.Object) (markup.Node, error) {
	typ := el.Get("type")
	var props *goja.Object
	if p := el.Get("props"); p != nil && !goja.IsUndefined(p) && !goja.IsNull(p) {
		props = p.ToObject(r.vm)
	} else {
		props = r.vm.NewObject()
	}

	switch {
	case typ == nil || goja.IsUndefined(typ) || goja.IsNull(typ):
		return nil, fmt.Errorf("element type is invalid: got %s", describe(typ))

	case typ.StrictEquals(r.fragment):
		children, err := r.resolveChildren(props)
		if err != nil {
			return nil, err
		}
		return &markup.Fragment{Children: children}, nil
	}

	if tag, ok := typ.Export().(string); ok {
		return r.hostElement(tag, props)
	}

	if obj, ok := typ.(*goja.Object); ok {
		if kind := obj.Get("$$typeof"); kind != nil && kind.StrictEquals(r.provider) {
			return r.provide(obj, props)
		}
	}

	return r.renderComponent(typ, props)
}

func (r *resolver) hostElement(tag string, props *goja.Object) (markup.Node, error) {
	children, err := r.resolveChildren(props)
	if err != nil {
		return nil, err
	}

	keys := props.Keys()
	list := make([]markup.Prop, 0, len(keys))
	for _, k := range keys {
		if k == "children" {
			continue
		}
		list = append(list, markup.Prop{Name: k, Value: r.propValue(props.Get(k), 0)})
	}

	return &markup.Element{
		Tag:      tag,
		Attrs:    markup.Attributes(list),
		Children: children,
	}, nil
}

// provide sets the context value while resolving the provider's children.
func (r *resolver) provide(provider, props *goja.Object) (markup.Node, error) {
	ctxVal := provider.Get("_context")
	if ctxVal == nil || goja.IsUndefined(ctxVal) {
		return nil, fmt.Errorf("context provider has no context")
	}
	ctxObj := ctxVal.ToObject(r.vm)
	previous := ctxObj.Get("_currentValue")
	if err := ctxObj.Set("_currentValue", props.Get("value")); err != nil {
		return nil, err
	}
	defer func() { _ = ctxObj.Set("_currentValue", previous) }()

	children, err := r.resolveChildren(props)
	if err != nil {
		return nil, err
	}
	return &markup.Fragment{Children: children}, nil
}

// propValue converts a prop into the plain values markup understands.
func (r *resolver) propValue(v goja.Value, depth int) interface{} {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	if _, callable := goja.AssertFunction(v); callable {
		return markup.Func{}
	}
	switch val := v.Export().(type) {
	case string, bool, int64, float64:
		return val
	}

	obj, ok := v.(*goja.Object)
	if !ok || depth > 8 {
		return v.String()
	}
	if obj.ClassName() == "Array" {
		return v.String()
	}
	keys := obj.Keys()
	out := make(markup.Object, 0, len(keys))
	for _, k := range keys {
		out = append(out, markup.Prop{Name: k, Value: r.propValue(obj.Get(k), depth+1)})
	}
	return out
}

func isClassComponent(v goja.Value) bool {
	obj, ok := v.(*goja.Object)
	if !ok {
		return false
	}
	proto, ok := obj.Get("prototype").(*goja.Object)
	if !ok {
		return false
	}
	marker := proto.Get("isReactComponent")
	return marker != nil && !goja.IsUndefined(marker)
}

func describe(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	if obj, ok := v.(*goja.Object); ok {
		return "object with keys {" + fmt.Sprint(obj.Keys()) + "}"
	}
	return v.String()
}
