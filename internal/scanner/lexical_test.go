package scanner

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/reportsmith/internal/types"
)

func scanLexical(source string) Result {
	return NewLexicalScanner().Scan(context.Background(), source)
}

func TestLexicalCleanTemplate(t *testing.T) {
	res := scanLexical(readTestdata(t, "usage-table.jsx"))
	assert.True(t, res.Clean(), "unexpected findings: %v", res.Findings)
	assert.NotNil(t, res.Findings)
}

func TestLexicalCapsExamplesPerRule(t *testing.T) {
	res := scanLexical(strings.Repeat("eval('x');\n", 5))

	f, ok := res.Findings.Find("eval() execution")
	require.True(t, ok)
	assert.Equal(t, types.SeverityHigh, f.Severity)
	assert.Len(t, f.Examples, types.MaxLexicalExamples)
}

func TestLexicalFunctionKeywordIsNotDynamicCreation(t *testing.T) {
	res := scanLexical("function render(data) { return data; }\nconst f = function () {};\n")
	_, ok := res.Findings.Find("Dynamic function creation")
	assert.False(t, ok)

	res = scanLexical("const f = new Function('return 1');")
	f, ok := res.Findings.Find("Dynamic function creation")
	require.True(t, ok)
	assert.Equal(t, []string{"new Function("}, f.Examples)
}

func TestLexicalWorksOnUnparseableSource(t *testing.T) {
	res := scanLexical("const x = eval(;\nrequire('child_process'")

	_, ok := res.Findings.Find("eval() execution")
	assert.True(t, ok)
}

func TestLexicalOverlappingRulesReportSeparately(t *testing.T) {
	res := scanLexical("const fs = require('fs');\n")

	assert.Equal(t, []string{"fs import", "Core Node.js module access"}, res.Findings.Categories())
}

func TestLexicalFindingsFollowRuleOrder(t *testing.T) {
	src := "const x = '../up';\nprocess.exit(1);\neval('1');\n"
	res := scanLexical(src)

	assert.Equal(t, []string{
		"Process termination",
		"eval() execution",
		"Path traversal (Unix)",
	}, res.Findings.Categories())
}

func TestLexicalRulesAreCaseInsensitive(t *testing.T) {
	res := scanLexical("const q = 'drop table users';")
	_, ok := res.Findings.Find("SQL commands")
	assert.True(t, ok)
}

func TestLexicalCustomRules(t *testing.T) {
	rules := DefaultRules()[:1]
	s := NewLexicalScanner(rules...)

	assert.Len(t, s.Rules(), 1)
	res := s.Scan(context.Background(), "fs.unlinkSync('a'); eval('b');")
	assert.Equal(t, []string{"File deletion operations"}, res.Findings.Categories())
}
