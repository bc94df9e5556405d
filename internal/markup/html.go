package markup

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// rawText elements are written verbatim by the html package, so their text
// is escaped before it reaches the tree.
var rawText = map[string]bool{
	"iframe":    true,
	"noembed":   true,
	"noframes":  true,
	"noscript":  true,
	"plaintext": true,
	"script":    true,
	"style":     true,
	"xmp":       true,
}

// Render serializes n as HTML. Output is a pure function of the tree.
func Render(w io.Writer, n Node) error {
	root := &html.Node{Type: html.DocumentNode}
	if err := build(root, n); err != nil {
		return err
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(w, c); err != nil {
			return fmt.Errorf("serializing markup: %w", err)
		}
	}
	return nil
}

// RenderString serializes n and returns the HTML text.
func RenderString(n Node) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func build(parent *html.Node, n Node) error {
	switch v := n.(type) {
	case nil:
		return nil
	case *Text:
		appendText(parent, v.Value)
	case *Slot:
		appendText(parent, FormatValue(v.Value))
	case *Fragment:
		for _, c := range v.Children {
			if err := build(parent, c); err != nil {
				return err
			}
		}
	case *Element:
		tag := strings.TrimSpace(v.Tag)
		if tag == "" {
			return fmt.Errorf("element with empty tag")
		}
		if !ValidTag(tag) {
			return fmt.Errorf("invalid tag %q", tag)
		}
		el := &html.Node{
			Type:     html.ElementNode,
			Data:     tag,
			DataAtom: atom.Lookup([]byte(tag)),
		}
		for _, a := range v.Attrs {
			if !SafeAttributeName(a.Name) {
				continue
			}
			el.Attr = append(el.Attr, html.Attribute{Key: a.Name, Val: a.Value})
		}
		for _, c := range v.Children {
			if err := build(el, c); err != nil {
				return err
			}
		}
		parent.AppendChild(el)
	default:
		return fmt.Errorf("unknown markup node %T", n)
	}
	return nil
}

// appendText merges adjacent text so raw-text elements keep a single child.
func appendText(parent *html.Node, s string) {
	if s == "" {
		return
	}
	if parent.Type == html.ElementNode && rawText[strings.ToLower(parent.Data)] {
		s = html.EscapeString(s)
	}
	if last := parent.LastChild; last != nil && last.Type == html.TextNode {
		last.Data += s
		return
	}
	parent.AppendChild(&html.Node{Type: html.TextNode, Data: s})
}
