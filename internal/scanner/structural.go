package scanner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"
	"github.com/evanw/esbuild/pkg/api"

	"github.com/conneroisu/reportsmith/internal/types"
)

// Structural finding categories.
const (
	CategorySensitiveRequire = "Sensitive Module Require"
	CategoryDangerousImport  = "Dangerous Import"
	CategoryDynamicRequire   = "Dynamic Module Require"
	CategoryForbiddenSyntax  = "Forbidden Syntax"
	CategoryUnparseable      = "Unparseable Source"
	CategoryRemoteCode       = "Remote Code Execution"
	CategoryDynamicExec      = "Dynamic Execution"
	CategoryFileSystem       = "File System Operation"
	CategoryShell            = "Shell Command Execution"
	CategoryProcessExit      = "Process Termination"
	CategoryEnvironment      = "Environment Manipulation"
	CategorySandboxEscape    = "VM Sandbox Escape"
	CategoryObfuscation      = "Code Obfuscation"
	CategoryPathTraversal    = "Path Traversal Risk"
	CategoryCryptoMining     = "Crypto Mining"
	CategorySQLInjection     = "SQL Injection Risk"
	CategoryXSS              = "XSS Risk"
	CategoryGlobalDisclosure = "Dangerous Global/Path Disclosure"
)

const esmExample = "ES6 import/export detected (CommonJS required)"

var (
	destructiveFS  = regexp.MustCompile(`^(?:unlink|rmdir|rm|write|append|rename|copy|chmod|chown|truncate|mkdir|symlink|link)`)
	miningKeywords = regexp.MustCompile(`(?i)minergate|coin-?hive|crypto-loot|stratum\+tcp|cryptonight`)
	sqlKeywords    = regexp.MustCompile(`(?i)\bDROP\s+TABLE\b|\bDELETE\s+FROM\b`)
)

var (
	shellObjects     = map[string]bool{"child_process": true, "cp": true}
	processKillers   = map[string]bool{"exit": true, "kill": true, "abort": true}
	hostGlobals      = map[string]bool{"__dirname": true, "__filename": true, "global": true, "globalThis": true}
	timerFunctions   = map[string]bool{"setTimeout": true, "setInterval": true}
	codeFromStrings  = map[string]bool{"eval": true, "Function": true}
	base64Primitives = map[string]bool{"atob": true, "btoa": true}
)

// StructuralScanner parses templates into a syntax tree and reports
// dangerous constructs by category.
type StructuralScanner struct {
	failOpen   bool
	sourcefile string
}

// StructuralOption configures a StructuralScanner.
type StructuralOption func(*StructuralScanner)

// WithFailOpen makes unparseable sources produce no findings instead of an
// "Unparseable Source" finding. The lexical scanner still runs either way.
func WithFailOpen(failOpen bool) StructuralOption {
	return func(s *StructuralScanner) {
		s.failOpen = failOpen
	}
}

// NewStructuralScanner creates a structural scanner. Parse failures are
// fail-closed unless WithFailOpen(true) is given.
func NewStructuralScanner(opts ...StructuralOption) *StructuralScanner {
	s := &StructuralScanner{sourcefile: "template.jsx"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Scanner.
func (s *StructuralScanner) Name() string {
	return "structural"
}

// Scan implements Scanner.
func (s *StructuralScanner) Scan(_ context.Context, source string) Result {
	res := Result{ScannerName: s.Name(), Findings: types.FindingList{}}
	set := types.NewFindingSet(types.MaxStructuralExamples)

	graph, err := buildModuleGraph(source, s.sourcefile)
	if err != nil {
		return s.parseFailure(res, err)
	}

	code, program, smap, err := s.parse(source)
	if err != nil {
		return s.parseFailure(res, err)
	}

	for _, ref := range graph.refs {
		checkModuleRef(set, ref)
	}

	c := &checker{set: set, code: code, smap: smap}
	walk(program, c.visit)

	if graph.esm {
		set.Add(CategoryForbiddenSyntax, types.SeverityHigh, esmExample)
	}

	res.Findings = set.List()
	return res
}

func (s *StructuralScanner) parseFailure(res Result, err error) Result {
	res.ParseErr = err
	if s.failOpen {
		return res
	}
	set := types.NewFindingSet(types.MaxStructuralExamples)
	set.Add(CategoryUnparseable, types.SeverityHigh, truncate(err.Error()))
	res.Findings = set.List()
	return res
}

// parse lowers JSX to plain script and builds the goja syntax tree over it.
// The tree's offsets index the lowered code; the source map leads back to
// the template as written.
func (s *StructuralScanner) parse(source string) (string, *ast.Program, *sourceMap, error) {
	out := api.Transform(source, api.TransformOptions{
		Loader:         api.LoaderJSX,
		Format:         api.FormatCommonJS,
		Target:         api.ES2015,
		JSXFactory:     "React.createElement",
		JSXFragment:    "React.Fragment",
		Sourcefile:     s.sourcefile,
		Sourcemap:      api.SourceMapExternal,
		SourcesContent: api.SourcesContentExclude,
		LogLevel:       api.LogLevelSilent,
	})
	if len(out.Errors) > 0 {
		return "", nil, nil, messagesError(out.Errors)
	}

	code := string(out.Code)
	program, err := goja.Parse(s.sourcefile, code)
	if err != nil {
		return "", nil, nil, fmt.Errorf("parsing lowered template: %w", err)
	}
	return code, program, newSourceMap(out.Map, code, source), nil
}

func checkModuleRef(set *types.FindingSet, ref moduleRef) {
	switch ref.Kind {
	case api.ResolveJSImportStatement:
		if isDeniedModule(ref.Path) {
			set.Add(CategoryDangerousImport, types.SeverityHigh, fmt.Sprintf("import from '%s'", ref.Path))
		}
	case api.ResolveJSDynamicImport:
		if isDeniedModule(ref.Path) {
			set.Add(CategoryDangerousImport, types.SeverityHigh, fmt.Sprintf("import('%s')", ref.Path))
		}
	case api.ResolveJSRequireResolve:
		if isDeniedModule(ref.Path) {
			set.Add(CategorySensitiveRequire, types.SeverityHigh, fmt.Sprintf("require.resolve('%s')", ref.Path))
		}
	}
}

// checker holds per-pass state for the tree visitor.
type checker struct {
	set  *types.FindingSet
	code string
	smap *sourceMap
}

func (c *checker) visit(node ast.Node) {
	switch n := node.(type) {
	case *ast.CallExpression:
		c.call(n)
	case *ast.NewExpression:
		if identName(n.Callee) == "Function" {
			c.add(CategoryRemoteCode, types.SeverityHigh, n)
		}
		if obj, prop := member(n.Callee); obj == "vm" && prop == "Script" {
			c.add(CategorySandboxEscape, types.SeverityHigh, n)
		}
	case *ast.DotExpression:
		if identName(n.Left) == "process" && string(n.Identifier.Name) == "env" {
			c.add(CategoryEnvironment, types.SeverityMedium, n)
		}
	case *ast.BracketExpression:
		if identName(n.Left) == "process" && stringValue(n.Member) == "env" {
			c.add(CategoryEnvironment, types.SeverityMedium, n)
		}
	case *ast.StringLiteral:
		c.stringLiteral(n, string(n.Value))
	case *ast.Identifier:
		if hostGlobals[string(n.Name)] {
			c.add(CategoryGlobalDisclosure, types.SeverityLow, n)
		}
	case *ast.PropertyKeyed:
		if !n.Computed && keyName(n.Key) == "dangerouslySetInnerHTML" {
			c.add(CategoryXSS, types.SeverityHigh, n)
		}
	case *ast.PropertyShort:
		if string(n.Name.Name) == "dangerouslySetInnerHTML" {
			c.add(CategoryXSS, types.SeverityHigh, n)
		}
	}
}

func (c *checker) call(n *ast.CallExpression) {
	if name := identName(n.Callee); name != "" {
		switch {
		case name == "require":
			c.require(n)
		case codeFromStrings[name]:
			c.add(CategoryRemoteCode, types.SeverityHigh, n)
		case base64Primitives[name]:
			c.add(CategoryObfuscation, types.SeverityLow, n)
		case timerFunctions[name]:
			if len(n.ArgumentList) > 0 && isStringish(n.ArgumentList[0]) {
				c.add(CategoryDynamicExec, types.SeverityMedium, n)
			}
		}
		return
	}

	obj, prop := member(n.Callee)
	if prop == "" {
		return
	}

	switch {
	case rootName(n.Callee) == "fs":
		sev := types.SeverityLow
		if destructiveFS.MatchString(prop) {
			sev = types.SeverityHigh
		}
		c.add(CategoryFileSystem, sev, n)
	case shellObjects[obj]:
		c.add(CategoryShell, types.SeverityHigh, n)
	case obj == "process" && processKillers[prop]:
		c.add(CategoryProcessExit, types.SeverityHigh, n)
	case obj == "vm" && (strings.HasPrefix(prop, "runIn") || prop == "compileFunction"):
		c.add(CategorySandboxEscape, types.SeverityHigh, n)
	case prop == "constructor" && memberProp(n.Callee) == "constructor":
		c.add(CategorySandboxEscape, types.SeverityHigh, n)
	case prop == "fromCharCode" || prop == "fromCodePoint":
		c.add(CategoryObfuscation, types.SeverityMedium, n)
	case codeFromStrings[prop]:
		c.add(CategoryRemoteCode, types.SeverityHigh, n)
	}
}

// require checks acquisition calls. Import statements are reported from
// the module graph instead, since the lowered code turns them into requires.
func (c *checker) require(n *ast.CallExpression) {
	if len(n.ArgumentList) == 0 {
		return
	}
	lit, ok := n.ArgumentList[0].(*ast.StringLiteral)
	if !ok {
		c.add(CategoryDynamicRequire, types.SeverityMedium, n)
		return
	}
	path := string(lit.Value)
	if isDeniedModule(path) {
		c.set.Add(CategorySensitiveRequire, types.SeverityHigh, fmt.Sprintf("require('%s')", path))
	}
}

func (c *checker) stringLiteral(n ast.Node, value string) {
	if strings.Contains(value, "../") || strings.Contains(value, `..\`) {
		c.add(CategoryPathTraversal, types.SeverityMedium, n)
	}
	if miningKeywords.MatchString(value) {
		c.add(CategoryCryptoMining, types.SeverityHigh, n)
	}
	if sqlKeywords.MatchString(value) {
		c.add(CategorySQLInjection, types.SeverityHigh, n)
	}
	if strings.Contains(value, "dangerouslySetInnerHTML") {
		c.add(CategoryXSS, types.SeverityHigh, n)
	}
}

func (c *checker) add(category string, sev types.Severity, n ast.Node) {
	c.set.Add(category, sev, c.snippet(n))
}

// snippet returns the template text of n, or the lowered text when it has
// no faithful counterpart in the template. Offsets are 1-based.
func (c *checker) snippet(n ast.Node) string {
	start, end := int(n.Idx0())-1, int(n.Idx1())-1
	if start < 0 {
		start = 0
	}
	if end > len(c.code) {
		end = len(c.code)
	}
	if start >= end {
		return ""
	}
	if text, ok := c.smap.original(start, end); ok {
		return truncate(text)
	}
	return truncate(c.code[start:end])
}

func identName(e ast.Expression) string {
	if id, ok := e.(*ast.Identifier); ok {
		return string(id.Name)
	}
	return ""
}

// member splits a member access into its immediate object name and
// property name. Either may be empty.
func member(e ast.Expression) (obj, prop string) {
	switch m := e.(type) {
	case *ast.DotExpression:
		return identName(m.Left), string(m.Identifier.Name)
	case *ast.BracketExpression:
		return identName(m.Left), stringValue(m.Member)
	}
	return "", ""
}

// memberProp returns the property name accessed by the object of e, so
// memberProp(a.b.c) is "b".
func memberProp(e ast.Expression) string {
	switch m := e.(type) {
	case *ast.DotExpression:
		_, prop := member(m.Left)
		return prop
	case *ast.BracketExpression:
		_, prop := member(m.Left)
		return prop
	}
	return ""
}

// rootName returns the leftmost identifier of a member chain.
func rootName(e ast.Expression) string {
	for {
		switch m := e.(type) {
		case *ast.Identifier:
			return string(m.Name)
		case *ast.DotExpression:
			e = m.Left
		case *ast.BracketExpression:
			e = m.Left
		default:
			return ""
		}
	}
}

func stringValue(e ast.Expression) string {
	if lit, ok := e.(*ast.StringLiteral); ok {
		return string(lit.Value)
	}
	return ""
}

func keyName(e ast.Expression) string {
	if name := stringValue(e); name != "" {
		return name
	}
	return identName(e)
}

func isStringish(e ast.Expression) bool {
	switch e.(type) {
	case *ast.StringLiteral, *ast.TemplateLiteral:
		return true
	}
	return false
}
