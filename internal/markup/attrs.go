package markup

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	attrNameStartChar = `:A-Z_a-z\x{00C0}-\x{00D6}\x{00D8}-\x{00F6}\x{00F8}-\x{02FF}\x{0370}-\x{037D}\x{037F}-\x{1FFF}\x{200C}-\x{200D}\x{2070}-\x{218F}\x{2C00}-\x{2FEF}\x{3001}-\x{D7FF}\x{F900}-\x{FDCF}\x{FDF0}-\x{FFFD}`
	attrNameChar      = attrNameStartChar + `\-.0-9\x{00B7}\x{0300}-\x{036F}\x{203F}-\x{2040}`
)

var (
	// attrNamePattern is React's isAttributeNameSafe check.
	attrNamePattern = regexp.MustCompile(`^[` + attrNameStartChar + `][` + attrNameChar + `]*$`)
	// tagPattern is React's valid tag check.
	tagPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z:_.\-0-9]*$`)
)

// attrNames maps React property names to their HTML attribute names.
var attrNames = map[string]string{
	"className":        "class",
	"htmlFor":          "for",
	"tabIndex":         "tabindex",
	"readOnly":         "readonly",
	"colSpan":          "colspan",
	"rowSpan":          "rowspan",
	"maxLength":        "maxlength",
	"minLength":        "minlength",
	"cellPadding":      "cellpadding",
	"cellSpacing":      "cellspacing",
	"autoComplete":     "autocomplete",
	"autoFocus":        "autofocus",
	"contentEditable":  "contenteditable",
	"crossOrigin":      "crossorigin",
	"dateTime":         "datetime",
	"encType":          "enctype",
	"httpEquiv":        "http-equiv",
	"acceptCharset":    "accept-charset",
	"noValidate":       "novalidate",
	"srcSet":           "srcset",
	"useMap":           "usemap",
	"defaultValue":     "value",
	"defaultChecked":   "checked",
	"xlinkHref":        "xlink:href",
	"strokeWidth":      "stroke-width",
	"strokeLinecap":    "stroke-linecap",
	"strokeLinejoin":   "stroke-linejoin",
	"strokeDasharray":  "stroke-dasharray",
	"strokeDashoffset": "stroke-dashoffset",
	"strokeOpacity":    "stroke-opacity",
	"fillOpacity":      "fill-opacity",
	"fillRule":         "fill-rule",
	"clipPath":         "clip-path",
	"clipRule":         "clip-rule",
	"fontSize":         "font-size",
	"fontFamily":       "font-family",
	"fontWeight":       "font-weight",
	"textAnchor":       "text-anchor",
	"dominantBaseline": "dominant-baseline",
	"stopColor":        "stop-color",
	"stopOpacity":      "stop-opacity",
}

// reserved props are consumed by the component model, not the DOM.
var reserved = map[string]bool{
	"children":                       true,
	"key":                            true,
	"ref":                            true,
	"dangerouslySetInnerHTML":        true,
	"suppressContentEditableWarning": true,
	"suppressHydrationWarning":       true,
}

// Attributes converts element props into HTML attributes, preserving
// declaration order. Event handlers, unsafe names, callables, null and
// false are dropped.
func Attributes(props []Prop) []Attr {
	attrs := make([]Attr, 0, len(props))
	for _, p := range props {
		if reserved[p.Name] || isEventHandler(p.Name) {
			continue
		}
		name := AttributeName(p.Name)
		if !SafeAttributeName(name) {
			continue
		}

		if p.Name == "style" {
			if obj, ok := p.Value.(Object); ok {
				if css := StyleString(obj); css != "" {
					attrs = append(attrs, Attr{Name: "style", Value: css})
				}
				continue
			}
		}

		value, ok := attrValue(name, p.Value)
		if !ok {
			continue
		}
		attrs = append(attrs, Attr{Name: name, Value: value})
	}
	return attrs
}

// AttributeName returns the HTML name for a React property name.
func AttributeName(prop string) string {
	if name, ok := attrNames[prop]; ok {
		return name
	}
	return prop
}

// SafeAttributeName reports whether name can be written without quoting.
func SafeAttributeName(name string) bool {
	return attrNamePattern.MatchString(name)
}

// ValidTag reports whether tag is a well-formed element name.
func ValidTag(tag string) bool {
	return tagPattern.MatchString(tag)
}

// isEventHandler matches every on* name regardless of case; none of them
// may reach server markup.
func isEventHandler(name string) bool {
	return len(name) > 2 && (name[0] == 'o' || name[0] == 'O') && (name[1] == 'n' || name[1] == 'N')
}

func attrValue(name string, v interface{}) (string, bool) {
	switch val := v.(type) {
	case nil, Func, Object:
		return "", false
	case bool:
		if strings.HasPrefix(name, "aria-") || strings.HasPrefix(name, "data-") {
			return strconv.FormatBool(val), true
		}
		if !val {
			return "", false
		}
		return "", true
	case string:
		return val, true
	default:
		return FormatValue(val), true
	}
}

// FormatValue renders a scalar the way script string conversion would.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	default:
		return ""
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1e21:
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}
