// Package markup models a rendered component tree as a tagged variant and
// serializes it to HTML following React's server rendering conventions.
package markup

// Node is one of Element, Fragment, Text or Slot.
type Node interface {
	isNode()
}

// Element is a host element with its converted attributes.
type Element struct {
	Tag      string
	Attrs    []Attr
	Children []Node
}

// Fragment groups children without a wrapper element.
type Fragment struct {
	Children []Node
}

// Text is literal character data.
type Text struct {
	Value string
}

// Slot holds the value of an embedded expression (numbers, strings),
// serialized as escaped text.
type Slot struct {
	Value interface{}
}

func (*Element) isNode()  {}
func (*Fragment) isNode() {}
func (*Text) isNode()     {}
func (*Slot) isNode()     {}

// Attr is a serialized HTML attribute.
type Attr struct {
	Name  string
	Value string
}

// Prop is one component property in declaration order.
type Prop struct {
	Name  string
	Value interface{}
}

// Object is an ordered key-value value, such as a style object.
type Object []Prop

// Get returns the value stored under name.
func (o Object) Get(name string) (interface{}, bool) {
	for _, p := range o {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Func marks a callable property value. Callables never serialize.
type Func struct{}

// Walk calls fn for n and every descendant in document order.
func Walk(n Node, fn func(Node)) {
	if n == nil {
		return
	}
	fn(n)
	switch v := n.(type) {
	case *Element:
		for _, c := range v.Children {
			Walk(c, fn)
		}
	case *Fragment:
		for _, c := range v.Children {
			Walk(c, fn)
		}
	}
}
