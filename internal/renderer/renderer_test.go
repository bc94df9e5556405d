package renderer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/reportsmith/internal/errors"
	"github.com/conneroisu/reportsmith/internal/types"
)

type mapTemplates map[string]string

func (m mapTemplates) Read(name string) (*types.TemplateRecord, error) {
	src, ok := m[name]
	if !ok {
		return nil, errors.NewNotFoundError(name, nil)
	}
	return &types.TemplateRecord{Name: name, Source: src}, nil
}

type panicTemplates struct{}

func (panicTemplates) Read(string) (*types.TemplateRecord, error) {
	panic("storage exploded")
}

type mapStyles map[string]map[string]interface{}

func (m mapStyles) Resolve(id string) (map[string]interface{}, error) {
	return m[id], nil
}

const usageTemplate = `const React = require('react');

const UsageTable = ({ data }) => (
  <div style={styles.container}>
    <h2>{data.title}</h2>
    <img src="[!MY_API_SRV]/barcode/1" />
    <img src="[!my_api_srv]/barcode/2" />
  </div>
);

module.exports = UsageTable;
`

func newTestRenderer(templates TemplateReader) *ReportRenderer {
	styles := mapStyles{"light-01": {"container": map[string]interface{}{"padding": 20, "color": "#333"}}}
	return NewReportRenderer(templates, styles, nil, Config{
		BaseURL:   "https://api.example.test",
		ScriptSrc: "/js/report.js",
	}, nil)
}

func TestRenderDocument(t *testing.T) {
	r := newTestRenderer(mapTemplates{"usage-table": usageTemplate})

	doc, err := r.RenderResult(context.Background(), types.RenderContext{
		TemplateName: "usage-table",
		StyleID:      "light-01",
		Data:         map[string]interface{}{"title": "Boxes <by> location"},
	})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc, "<!DOCTYPE html>"))
	assert.Contains(t, doc, "<title>Usage Table - Report</title>")
	assert.Contains(t, doc, `<script src="/js/report.js"></script>`)
	assert.Contains(t, doc, `<div style="color:#333;padding:20px">`)
	assert.Contains(t, doc, "<h2>Boxes &lt;by&gt; location</h2>")
	assert.Contains(t, doc, `src="https://api.example.test/barcode/1"`)
	assert.Contains(t, doc, `src="https://api.example.test/barcode/2"`)
	assert.NotContains(t, strings.ToLower(doc), "[!my_api_srv]")
}

func TestRenderIsDeterministic(t *testing.T) {
	r := newTestRenderer(mapTemplates{"usage-table": usageTemplate})
	rc := types.RenderContext{TemplateName: "usage-table", StyleID: "light-01", Data: map[string]interface{}{"title": "x"}}

	first := r.Render(context.Background(), rc)
	second := r.Render(context.Background(), rc)
	assert.Equal(t, first, second)
}

func TestRenderThrowingTemplateYieldsErrorDocument(t *testing.T) {
	r := newTestRenderer(mapTemplates{"broken": `module.exports = () => { throw new Error("boom"); };`})

	doc, err := r.RenderResult(context.Background(), types.RenderContext{TemplateName: "broken"})

	require.Error(t, err)
	assert.Contains(t, doc, "Error Rendering Report")
	assert.Contains(t, doc, "broken")
	assert.Contains(t, doc, "boom")
	assert.Contains(t, doc, "<pre>")
}

func TestRenderNeverFails(t *testing.T) {
	tests := []struct {
		name      string
		templates TemplateReader
		template  string
		want      string
	}{
		{"missing template", mapTemplates{}, "ghost", "template not found"},
		{"no component", mapTemplates{"empty": "const a = 1;"}, "empty", "did not export a component"},
		{"malformed markup", mapTemplates{"bad": "module.exports = () => <div><p></div>;"}, "bad", "markup transform failed"},
		{"panic", panicTemplates{}, "any", "storage exploded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := newTestRenderer(tt.templates).Render(context.Background(), types.RenderContext{TemplateName: tt.template})
			assert.Contains(t, doc, "Error Rendering Report")
			assert.Contains(t, doc, tt.want)
		})
	}
}

func TestRenderTimeout(t *testing.T) {
	r := NewReportRenderer(mapTemplates{"spin": "module.exports = () => { for (;;) {} };"}, nil, nil,
		Config{Timeout: 50 * time.Millisecond}, nil)

	doc, err := r.RenderResult(context.Background(), types.RenderContext{TemplateName: "spin"})

	require.Error(t, err)
	assert.Contains(t, doc, "execution interrupted")
}

func TestRenderUnknownStyleIsNull(t *testing.T) {
	src := `module.exports = () => <p>{styles === null ? "plain" : "styled"}</p>;`
	r := newTestRenderer(mapTemplates{"plain": src})

	doc := r.Render(context.Background(), types.RenderContext{TemplateName: "plain", StyleID: "nope"})
	assert.Contains(t, doc, "<p>plain</p>")
}

func TestReplacePlaceholders(t *testing.T) {
	got := ReplacePlaceholders("a [!MY_API_SRV] b [!my_Api_Srv] c", "http://x")
	assert.Equal(t, "a http://x b http://x c", got)
}

func TestHumanizeName(t *testing.T) {
	tests := map[string]string{
		"box-usage-barchart": "Box Usage Barchart",
		"Storage-Items":      "Storage Items",
		"pie":                "Pie",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, HumanizeName(in))
		})
	}
}

func TestErrorDocumentEscapes(t *testing.T) {
	var b strings.Builder
	err := ErrorDocument(Failure{Template: "<x>", Message: `"quoted" & <b>`, Trace: "at <anonymous>"}).
		Render(context.Background(), &b)
	require.NoError(t, err)

	out := b.String()
	assert.NotContains(t, out, "<x>")
	assert.NotContains(t, out, "<b>")
	assert.Contains(t, out, "&lt;anonymous&gt;")
}

func TestRenderDoesNotEmitInjectedMarkup(t *testing.T) {
	const source = `const React = require('react');

module.exports = ({ data }) => (
  <div>
    <img src="x" onerror="alert(1)" />
    <script>{data.note}</script>
    <div {...data.attrs}>hi</div>
  </div>
);
`
	r := newTestRenderer(mapTemplates{"notes": source})

	doc, err := r.RenderResult(context.Background(), types.RenderContext{
		TemplateName: "notes",
		Data: map[string]interface{}{
			"note":  "</script><script>alert(2)</script>",
			"attrs": map[string]interface{}{`x"><script>alert(3)</script><b y`: "1", "title": "kept"},
		},
	})

	require.NoError(t, err)
	assert.Contains(t, doc, `<img src="x"/>`)
	assert.NotContains(t, doc, "onerror")
	assert.Contains(t, doc, "<script>&lt;/script&gt;&lt;script&gt;alert(2)&lt;/script&gt;</script>")
	assert.Contains(t, doc, `<div title="kept">hi</div>`)
	assert.NotContains(t, doc, "alert(3)")
}
