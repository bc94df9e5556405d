package scanner

import (
	"reflect"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
)

var (
	nodeType = reflect.TypeOf((*ast.Node)(nil)).Elem()
	fileType = reflect.TypeOf((*file.File)(nil))
)

type visitKey struct {
	ptr uintptr
	typ reflect.Type
}

// walk visits every node reachable from root in source order. Member names
// after a dot and non-computed object keys are not expressions, so they are
// not descended into; visit still sees their parent.
func walk(root ast.Node, visit func(ast.Node)) {
	seen := make(map[visitKey]bool)

	var rec func(v reflect.Value)
	rec = func(v reflect.Value) {
		switch v.Kind() {
		case reflect.Interface:
			if !v.IsNil() {
				rec(v.Elem())
			}

		case reflect.Ptr:
			if v.IsNil() || v.Type() == fileType {
				return
			}
			key := visitKey{ptr: v.Pointer(), typ: v.Type()}
			if seen[key] {
				return
			}
			seen[key] = true
			if v.Type().Implements(nodeType) && v.CanInterface() {
				visit(v.Interface().(ast.Node))
			}
			rec(v.Elem())

		case reflect.Struct:
			t := v.Type()
			for i := 0; i < v.NumField(); i++ {
				field := t.Field(i)
				if !field.IsExported() || skipField(v, field.Name) {
					continue
				}
				f := v.Field(i)
				if f.Kind() == reflect.Struct && f.CanAddr() {
					rec(f.Addr())
					continue
				}
				rec(f)
			}

		case reflect.Slice, reflect.Array:
			for i := 0; i < v.Len(); i++ {
				el := v.Index(i)
				if el.Kind() == reflect.Struct && el.CanAddr() {
					rec(el.Addr())
					continue
				}
				rec(el)
			}
		}
	}

	rec(reflect.ValueOf(root))
}

func skipField(parent reflect.Value, name string) bool {
	if !parent.CanAddr() {
		return false
	}
	switch n := parent.Addr().Interface().(type) {
	case *ast.DotExpression:
		return name == "Identifier"
	case *ast.PropertyKeyed:
		return name == "Key" && !n.Computed
	case *ast.MetaProperty:
		return true
	}
	return false
}
