package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/reportsmith/internal/types"
)

func readTestdata(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func scanStructural(t *testing.T, source string, opts ...StructuralOption) Result {
	t.Helper()
	return NewStructuralScanner(opts...).Scan(context.Background(), source)
}

func TestStructuralCleanTemplate(t *testing.T) {
	res := scanStructural(t, readTestdata(t, "usage-table.jsx"))

	assert.NoError(t, res.ParseErr)
	assert.True(t, res.Clean(), "unexpected findings: %v", res.Findings)
	assert.NotNil(t, res.Findings)
}

func TestStructuralSensitiveRequire(t *testing.T) {
	res := scanStructural(t, "const fs = require('fs');\nmodule.exports = () => null;\n")

	f, ok := res.Findings.Find(CategorySensitiveRequire)
	require.True(t, ok, "categories: %v", res.Findings.Categories())
	assert.Equal(t, types.SeverityHigh, f.Severity)
	assert.Equal(t, []string{"require('fs')"}, f.Examples)
}

func TestStructuralNodeSchemeRequire(t *testing.T) {
	res := scanStructural(t, "const cp = require('node:child_process');\n")

	f, ok := res.Findings.Find(CategorySensitiveRequire)
	require.True(t, ok)
	assert.Equal(t, []string{"require('node:child_process')"}, f.Examples)
}

func TestStructuralAllowedRequire(t *testing.T) {
	res := scanStructural(t, "const React = require('react');\nconst lodash = require('lodash');\n")
	assert.True(t, res.Clean(), "unexpected findings: %v", res.Findings)
}

func TestStructuralDynamicRequire(t *testing.T) {
	res := scanStructural(t, "const name = 'f' + 's';\nconst m = require(name);\n")

	f, ok := res.Findings.Find(CategoryDynamicRequire)
	require.True(t, ok)
	assert.Equal(t, types.SeverityMedium, f.Severity)
}

func TestStructuralDeduplicatesAndCapsExamples(t *testing.T) {
	src := "eval('1');\neval('2');\neval('3');\neval('4');\neval('5');\n"
	res := scanStructural(t, src)

	require.Len(t, res.Findings, 1)
	f := res.Findings[0]
	assert.Equal(t, CategoryRemoteCode, f.Category)
	assert.Equal(t, types.SeverityHigh, f.Severity)
	require.Len(t, f.Examples, types.MaxStructuralExamples)
	for _, ex := range f.Examples {
		assert.Contains(t, ex, "eval(")
	}
}

func TestStructuralExamplesQuoteTemplateAsWritten(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		category string
		want     string
	}{
		{"single quotes kept", "eval('1+1');", CategoryRemoteCode, "eval('1+1')"},
		{"inside markup", "const A = () => <p>{atob('aGk=')}</p>;", CategoryObfuscation, "atob('aGk=')"},
		{"split across lines", "fs.readFileSync(\n  '/etc/passwd'\n);", CategoryFileSystem, "fs.readFileSync( '/etc/passwd' )"},
		{"after a comment", "// harmless\nprocess.exit(1);", CategoryProcessExit, "process.exit(1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := scanStructural(t, tt.source)
			f, ok := res.Findings.Find(tt.category)
			require.True(t, ok, "categories: %v", res.Findings.Categories())
			assert.Equal(t, []string{tt.want}, f.Examples)
		})
	}
}

func TestStructuralForbiddenSyntaxAppendedOnce(t *testing.T) {
	src := "import fs from 'fs';\nimport os from 'os';\nexport default function A() { return null; }\n"
	res := scanStructural(t, src)

	require.NotEmpty(t, res.Findings)
	last := res.Findings[len(res.Findings)-1]
	assert.Equal(t, CategoryForbiddenSyntax, last.Category)
	assert.Equal(t, types.SeverityHigh, last.Severity)
	assert.Len(t, last.Examples, 1)

	imp, ok := res.Findings.Find(CategoryDangerousImport)
	require.True(t, ok)
	assert.Contains(t, imp.Examples, "import from 'fs'")
	assert.Contains(t, imp.Examples, "import from 'os'")

	count := 0
	for _, f := range res.Findings {
		if f.Category == CategoryForbiddenSyntax {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestStructuralUnparseable(t *testing.T) {
	src := "const = ;\nfunction {"

	t.Run("fail closed", func(t *testing.T) {
		res := scanStructural(t, src)
		assert.Error(t, res.ParseErr)
		require.Len(t, res.Findings, 1)
		assert.Equal(t, CategoryUnparseable, res.Findings[0].Category)
		assert.Equal(t, types.SeverityHigh, res.Findings[0].Severity)
	})

	t.Run("fail open", func(t *testing.T) {
		res := scanStructural(t, src, WithFailOpen(true))
		assert.Error(t, res.ParseErr)
		assert.Empty(t, res.Findings)
		assert.NotNil(t, res.Findings)
	})
}

func TestStructuralCategories(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		category string
		severity types.Severity
	}{
		{"fs read", "fs.readFileSync('a.txt');", CategoryFileSystem, types.SeverityLow},
		{"fs destructive", "fs.unlinkSync('a.txt');", CategoryFileSystem, types.SeverityHigh},
		{"shell", "cp.exec('ls');", CategoryShell, types.SeverityHigh},
		{"process exit", "process.exit(1);", CategoryProcessExit, types.SeverityHigh},
		{"environment", "const k = process.env.SECRET;", CategoryEnvironment, types.SeverityMedium},
		{"environment bracket", "const k = process['env'];", CategoryEnvironment, types.SeverityMedium},
		{"vm", "vm.runInNewContext('1');", CategorySandboxEscape, types.SeverityHigh},
		{"constructor chain", "const g = ({}).constructor.constructor('return this')();", CategorySandboxEscape, types.SeverityHigh},
		{"new Function", "const f = new Function('return 1');", CategoryRemoteCode, types.SeverityHigh},
		{"Function call", "const f = Function('return 1');", CategoryRemoteCode, types.SeverityHigh},
		{"timer string", "setTimeout('alert(1)', 10);", CategoryDynamicExec, types.SeverityMedium},
		{"timer template", "setInterval(`tick()`, 10);", CategoryDynamicExec, types.SeverityMedium},
		{"char codes", "const s = String.fromCharCode(104, 105);", CategoryObfuscation, types.SeverityMedium},
		{"base64", "const s = atob('aGk=');", CategoryObfuscation, types.SeverityLow},
		{"path traversal", "const p = '../../etc/passwd';", CategoryPathTraversal, types.SeverityMedium},
		{"mining", "const pool = 'stratum+tcp://pool.example:3333';", CategoryCryptoMining, types.SeverityHigh},
		{"sql", "const q = 'DROP TABLE users';", CategorySQLInjection, types.SeverityHigh},
		{"xss jsx", "const A = () => <div dangerouslySetInnerHTML={{ __html: '<b>x</b>' }} />;", CategoryXSS, types.SeverityHigh},
		{"dirname", "const d = __dirname;", CategoryGlobalDisclosure, types.SeverityLow},
		{"global", "const g = global;", CategoryGlobalDisclosure, types.SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := scanStructural(t, tt.source)
			require.NoError(t, res.ParseErr)

			f, ok := res.Findings.Find(tt.category)
			require.True(t, ok, "categories: %v", res.Findings.Categories())
			assert.Equal(t, tt.severity, f.Severity)
			assert.NotEmpty(t, f.Examples)
		})
	}
}

func TestStructuralSeverityUpgrade(t *testing.T) {
	res := scanStructural(t, "fs.readFileSync('a');\nfs.unlinkSync('b');\n")

	f, ok := res.Findings.Find(CategoryFileSystem)
	require.True(t, ok)
	assert.Equal(t, types.SeverityHigh, f.Severity)
	assert.Len(t, f.Examples, 2)
}

func TestStructuralMemberNamesAreNotReferences(t *testing.T) {
	res := scanStructural(t, "const o = { global: 1 };\nconst v = o.global;\n")
	_, ok := res.Findings.Find(CategoryGlobalDisclosure)
	assert.False(t, ok, "categories: %v", res.Findings.Categories())
}

func TestStructuralDeterministic(t *testing.T) {
	src := "const fs = require('fs');\neval('x');\nprocess.exit(0);\nconst p = '../x';\n"
	s := NewStructuralScanner()

	first := s.Scan(context.Background(), src)
	second := s.Scan(context.Background(), src)

	if diff := cmp.Diff(first.Findings, second.Findings); diff != "" {
		t.Errorf("findings differ between scans (-first +second):\n%s", diff)
	}
}
