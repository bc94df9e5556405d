package renderer

import (
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultStylesheet is the fixed stylesheet every report document carries.
const DefaultStylesheet = `* { margin: 0; padding: 0; box-sizing: border-box; }
body {
  margin: 0;
  padding: 20px;
  background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
  min-height: 100vh;
  font-family: system-ui, -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
}`

const errorStylesheet = `body { font-family: system-ui, sans-serif; padding: 40px; background: #fee; }
.error-container { background: white; padding: 30px; border-radius: 10px; border-left: 5px solid #f44; max-width: 800px; margin: 0 auto; }
h1 { color: #c00; margin-bottom: 20px; }
pre { background: #f5f5f5; padding: 15px; border-radius: 5px; overflow-x: auto; font-size: 0.9rem; white-space: pre-wrap; }`

var placeholder = regexp.MustCompile(`(?i)\[!my_api_srv\]`)

// ReplacePlaceholders substitutes the API base address token, matched
// case-insensitively.
func ReplacePlaceholders(html, baseURL string) string {
	return placeholder.ReplaceAllLiteralString(html, baseURL)
}

var titleCaser = cases.Title(language.English, cases.NoLower)

// HumanizeName turns "box-usage-barchart" into "Box Usage Barchart".
func HumanizeName(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "-", " "))
}

// Page describes a successful report document.
type Page struct {
	Title      string
	Stylesheet string
	ScriptSrc  string
	// Body is trusted serialized markup
	Body string
}

// Document renders the report skeleton around an already serialized body.
func Document(p Page) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
		b.WriteString("<meta charset=\"UTF-8\">\n")
		b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
		b.WriteString("<title>" + templ.EscapeString(p.Title) + "</title>\n")
		b.WriteString("<style>\n" + p.Stylesheet + "\n</style>\n")
		if p.ScriptSrc != "" {
			b.WriteString("<script src=\"" + templ.EscapeString(p.ScriptSrc) + "\"></script>\n")
			b.WriteString("</head>\n<body onload=\"typeof init === 'function' && init();\">\n")
		} else {
			b.WriteString("</head>\n<body>\n")
		}
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
		if err := templ.Raw(p.Body).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\n</body>\n</html>\n")
		return err
	})
}

// Failure describes an error document.
type Failure struct {
	Template string
	Message  string
	Trace    string
}

// ErrorDocument renders a self-contained failure page. Every field is escaped.
func ErrorDocument(f Failure) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
		b.WriteString("<meta charset=\"UTF-8\">\n")
		b.WriteString("<title>Error - " + templ.EscapeString(f.Template) + "</title>\n")
		b.WriteString("<style>\n" + errorStylesheet + "\n</style>\n")
		b.WriteString("</head>\n<body>\n<div class=\"error-container\">\n")
		b.WriteString("<h1>Error Rendering Report</h1>\n")
		b.WriteString("<p><strong>Template:</strong> " + templ.EscapeString(f.Template) + "</p>\n")
		b.WriteString("<p><strong>Error:</strong> " + templ.EscapeString(f.Message) + "</p>\n")
		if f.Trace != "" {
			b.WriteString("<pre>" + templ.EscapeString(f.Trace) + "</pre>\n")
		}
		b.WriteString("</div>\n</body>\n</html>\n")
		_, err := io.WriteString(w, b.String())
		return err
	})
}
