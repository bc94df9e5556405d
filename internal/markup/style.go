package markup

import (
	"strings"
	"unicode"
)

// unitless lists numeric CSS properties that take no px suffix.
var unitless = map[string]bool{
	"animationIterationCount": true,
	"aspectRatio":             true,
	"borderImageOutset":       true,
	"borderImageSlice":        true,
	"borderImageWidth":        true,
	"boxFlex":                 true,
	"boxFlexGroup":            true,
	"boxOrdinalGroup":         true,
	"columnCount":             true,
	"columns":                 true,
	"flex":                    true,
	"flexGrow":                true,
	"flexPositive":            true,
	"flexShrink":              true,
	"flexNegative":            true,
	"flexOrder":               true,
	"gridArea":                true,
	"gridRow":                 true,
	"gridRowEnd":              true,
	"gridRowSpan":             true,
	"gridRowStart":            true,
	"gridColumn":              true,
	"gridColumnEnd":           true,
	"gridColumnSpan":          true,
	"gridColumnStart":         true,
	"fontWeight":              true,
	"lineClamp":               true,
	"lineHeight":              true,
	"opacity":                 true,
	"order":                   true,
	"orphans":                 true,
	"scale":                   true,
	"tabSize":                 true,
	"widows":                  true,
	"zIndex":                  true,
	"zoom":                    true,
	"fillOpacity":             true,
	"floodOpacity":            true,
	"stopOpacity":             true,
	"strokeDasharray":         true,
	"strokeDashoffset":        true,
	"strokeMiterlimit":        true,
	"strokeOpacity":           true,
	"strokeWidth":             true,
}

// StyleString serializes a style object as inline CSS, e.g.
// {fontSize: 12, color: "red"} becomes "font-size:12px;color:red".
// Null, boolean and empty values are skipped.
func StyleString(style Object) string {
	var b strings.Builder
	for _, p := range style {
		value, ok := styleValue(p.Name, p.Value)
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(';')
		}
		b.WriteString(CSSPropertyName(p.Name))
		b.WriteByte(':')
		b.WriteString(value)
	}
	return b.String()
}

func styleValue(name string, v interface{}) (string, bool) {
	switch val := v.(type) {
	case nil, bool, Func, Object:
		return "", false
	case string:
		val = strings.TrimSpace(val)
		return val, val != ""
	case int, int64, float32, float64:
		s := FormatValue(val)
		if s == "0" || unitless[name] || strings.HasPrefix(name, "--") {
			return s, true
		}
		return s + "px", true
	default:
		return "", false
	}
}

// CSSPropertyName converts a camelCase style key to its CSS name.
// Vendor prefixes gain a leading dash ("WebkitTransition" becomes
// "-webkit-transition", "msFlex" becomes "-ms-flex"); custom properties
// pass through.
func CSSPropertyName(name string) string {
	if strings.HasPrefix(name, "--") {
		return name
	}

	var b strings.Builder
	for _, r := range name {
		if unicode.IsUpper(r) {
			b.WriteByte('-')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	if strings.HasPrefix(b.String(), "ms-") {
		return "-" + b.String()
	}
	return b.String()
}
