package scanner

import (
	"context"
	"regexp"

	"github.com/conneroisu/reportsmith/internal/types"
)

// LexicalRule is one textual pattern with a fixed display name.
type LexicalRule struct {
	Name     string
	Severity types.Severity
	pattern  *regexp.Regexp
}

// Pattern returns the compiled expression.
func (r LexicalRule) Pattern() *regexp.Regexp {
	return r.pattern
}

type ruleDef struct {
	name          string
	severity      types.Severity
	expr          string
	caseSensitive bool
}

const (
	high   = types.SeverityHigh
	medium = types.SeverityMedium
	low    = types.SeverityLow
)

// Rules are case-insensitive unless marked; "Function(" must not match the
// ordinary function keyword.
var ruleDefs = []ruleDef{
	{name: "File deletion operations", severity: high, expr: `\bfs\.(?:unlinkSync|unlink|rmdirSync|rmdir)\b`},
	{name: "File write operations", severity: high, expr: `\bfs\.(?:writeFileSync|writeFile|appendFileSync|appendFile)\b`},
	{name: "Directory operations", severity: high, expr: `\bfs\.(?:mkdirSync|mkdir|rmSync|rm)\b`},
	{name: "File manipulation", severity: high, expr: `\bfs\.(?:renameSync|rename|copyFileSync|copyFile)\b`},
	{name: "File permission changes", severity: high, expr: `\bfs\.(?:chmodSync|chmod|chownSync|chown)\b`},
	{name: "Process execution", severity: high, expr: `\bchild_process\.exec(?:Sync)?\b`},
	{name: "Process spawning", severity: high, expr: `\bchild_process\.spawn(?:Sync)?\b`},
	{name: "Process forking", severity: high, expr: `\bchild_process\.(?:fork|execFileSync|execFile)\b`},
	{name: "child_process import", severity: high, expr: `require\s*\(\s*['"\x60](?:node:)?child_process['"\x60]\s*\)`},
	{name: "fs import", severity: high, expr: `require\s*\(\s*['"\x60](?:node:)?fs(?:/promises)?['"\x60]\s*\)`},
	{name: "child_process ES6 import", severity: high, expr: `\bimport\s+.*\s+from\s+['"]child_process['"]`},
	{name: "fs ES6 import", severity: high, expr: `\bimport\s+.*\s+from\s+['"]fs(?:/promises)?['"]`},
	{name: "node:child_process ES6 import", severity: high, expr: `\bimport\s+.*\s+from\s+['"]node:child_process['"]`},
	{name: "node:fs ES6 import", severity: high, expr: `\bimport\s+.*\s+from\s+['"]node:fs(?:/promises)?['"]`},
	{name: "Process termination", severity: high, expr: `\bprocess\.(?:exit|kill|abort)\b`},
	{name: "Environment manipulation", severity: medium, expr: `\bprocess\.env\s*=(?:[^=]|$)`},
	{name: "eval() execution", severity: high, expr: `\beval\s*\(`},
	{name: "Dynamic function creation", severity: high, expr: `\bnew\s+Function\s*\(|\bFunction\s*\(`, caseSensitive: true},
	{name: "setTimeout with string", severity: medium, expr: `\bsetTimeout\s*\(\s*['"\x60]`},
	{name: "setInterval with string", severity: medium, expr: `\bsetInterval\s*\(\s*['"\x60]`},
	{name: "net module import", severity: high, expr: `require\s*\(\s*['"](?:node:)?net['"]\s*\)`},
	{name: "http module import", severity: high, expr: `require\s*\(\s*['"](?:node:)?http['"]\s*\)`},
	{name: "https module import", severity: high, expr: `require\s*\(\s*['"](?:node:)?https['"]\s*\)`},
	{name: "net ES6 import", severity: high, expr: `\bimport\s+.*\s+from\s+['"](?:node:)?net['"]`},
	{name: "http ES6 import", severity: high, expr: `\bimport\s+.*\s+from\s+['"](?:node:)?http['"]`},
	{name: "https ES6 import", severity: high, expr: `\bimport\s+.*\s+from\s+['"](?:node:)?https['"]`},
	{name: "Crypto mining code", severity: high, expr: `coinhive|coin-hive|crypto-loot|cryptonight|minergate|stratum\+tcp`},
	{name: "Base64 encoding/decoding", severity: low, expr: `\b(?:atob|btoa)\s*\(`},
	{name: "Character code conversion", severity: medium, expr: `\bfromCharCode\b|\bfromCodePoint\b`},
	{name: "Global object access", severity: low, expr: `\bglobal\s*[\[.]|\bglobalThis\b`},
	{name: "Directory/file path access", severity: low, expr: `\b__dirname\b|\b__filename\b`},
	{name: "VM module import", severity: high, expr: `require\s*\(\s*['"](?:node:)?vm['"]\s*\)`},
	{name: "VM context execution", severity: high, expr: `\bvm\.(?:runInNewContext|runInThisContext|runInContext|compileFunction)\b`},
	{name: "OS module import", severity: high, expr: `require\s*\(\s*['"](?:node:)?os['"]\s*\)`},
	{name: "OS command execution", severity: high, expr: `\bos\.(?:exec|system)\b`},
	{name: "Path traversal (Unix)", severity: medium, expr: `\.\./`},
	{name: "Path traversal (Windows)", severity: medium, expr: `\.\.\\+`},
	{name: "SQL commands", severity: high, expr: `\bDROP\s+TABLE\b|\bDELETE\s+FROM\b|\bINSERT\s+INTO\b`},
	{name: "dangerouslySetInnerHTML usage", severity: high, expr: `dangerouslySetInnerHTML`},
	{name: "Core Node.js module access", severity: high, expr: `\b(?:require|import)\s*\(?\s*['"](?:node:)?(?:fs|child_process|path|os|net|http|https|vm|crypto|dns|zlib)['"]`},
	{name: "Dynamic import with template literal", severity: high, expr: `\bimport\s*\(?\s*\x60[^\x60]*\x60\s*\)?`},
}

// DefaultRules returns the built-in ordered rule list.
func DefaultRules() []LexicalRule {
	rules := make([]LexicalRule, 0, len(ruleDefs))
	for _, d := range ruleDefs {
		expr := d.expr
		if !d.caseSensitive {
			expr = "(?i)" + expr
		}
		rules = append(rules, LexicalRule{
			Name:     d.name,
			Severity: d.severity,
			pattern:  regexp.MustCompile(expr),
		})
	}
	return rules
}

// LexicalScanner matches raw source text against an ordered rule list.
// It needs no parse, so it also covers sources the structural scanner
// rejects as unparseable.
type LexicalScanner struct {
	rules []LexicalRule
}

// NewLexicalScanner creates a scanner with the given rules, or the
// defaults when none are given.
func NewLexicalScanner(rules ...LexicalRule) *LexicalScanner {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &LexicalScanner{rules: rules}
}

// Name implements Scanner.
func (s *LexicalScanner) Name() string {
	return "lexical"
}

// Rules returns the scanner's rules in evaluation order.
func (s *LexicalScanner) Rules() []LexicalRule {
	return append([]LexicalRule(nil), s.rules...)
}

// Scan implements Scanner. Each matching rule yields one finding named
// after the rule with at most two example matches. Overlapping rules each
// report their own finding.
func (s *LexicalScanner) Scan(_ context.Context, source string) Result {
	set := types.NewFindingSet(types.MaxLexicalExamples)
	for _, rule := range s.rules {
		for _, m := range rule.pattern.FindAllString(source, types.MaxLexicalExamples) {
			set.Add(rule.Name, rule.Severity, truncate(m))
		}
	}
	return Result{ScannerName: s.Name(), Findings: set.List()}
}
