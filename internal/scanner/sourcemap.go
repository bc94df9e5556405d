package scanner

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// segment maps a generated column to an original position. Columns count
// UTF-16 code units, as source maps do.
type segment struct {
	genCol  int
	srcLine int
	srcCol  int
}

// sourceMap translates offsets in esbuild's lowered output back into the
// template as written.
type sourceMap struct {
	lines    [][]segment
	code     string
	source   string
	codeLine []int
	srcLine  []int
}

func newSourceMap(raw []byte, code, source string) *sourceMap {
	var doc struct {
		Mappings string `json:"mappings"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil || doc.Mappings == "" {
		return nil
	}
	lines, ok := decodeMappings(doc.Mappings)
	if !ok {
		return nil
	}
	return &sourceMap{
		lines:    lines,
		code:     code,
		source:   source,
		codeLine: lineStarts(code),
		srcLine:  lineStarts(source),
	}
}

// original returns the template text behind code[start:end]. It reports
// false when the lowered text has no faithful counterpart, as for JSX that
// became element-construction calls.
func (m *sourceMap) original(start, end int) (string, bool) {
	if m == nil {
		return "", false
	}
	from, ok := m.sourceOffset(start)
	if !ok {
		return "", false
	}
	return align(m.source, from, m.code[start:end])
}

func (m *sourceMap) sourceOffset(offset int) (int, bool) {
	line := sort.SearchInts(m.codeLine, offset+1) - 1
	if line < 0 || line >= len(m.lines) {
		return 0, false
	}
	col := utf16Len(m.code[m.codeLine[line]:offset])

	segs := m.lines[line]
	i := sort.Search(len(segs), func(i int) bool { return segs[i].genCol > col })
	if i == 0 {
		return 0, false
	}
	// Unmapped tokens are assumed to sit at the same distance from the
	// nearest mapping on the left; align rejects a wrong guess.
	seg := segs[i-1]
	if seg.srcLine >= len(m.srcLine) {
		return 0, false
	}
	return byteOffset(m.source, m.srcLine[seg.srcLine], seg.srcCol+col-seg.genCol)
}

// align walks lowered and source together from source[from:], letting
// whitespace and quote style differ, and returns the matching source span.
func align(source string, from int, lowered string) (string, bool) {
	i := from
	for j := 0; j < len(lowered); j++ {
		lc := lowered[j]
		if isSpace(lc) {
			continue
		}
		for i < len(source) && isSpace(source[i]) {
			i++
		}
		if i >= len(source) {
			return "", false
		}
		sc := source[i]
		if sc != lc && !(isQuote(sc) && isQuote(lc)) {
			return "", false
		}
		i++
	}
	return source[from:i], true
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func isQuote(c byte) bool { return c == '\'' || c == '"' || c == '`' }

func lineStarts(s string) []int {
	starts := []int{0}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// byteOffset advances col UTF-16 units from lineStart.
func byteOffset(s string, lineStart, col int) (int, bool) {
	i := lineStart
	for col > 0 {
		if i >= len(s) || s[i] == '\n' {
			return 0, false
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		col -= utf16.RuneLen(r)
		i += size
	}
	return i, col == 0
}

// decodeMappings parses the base64 VLQ "mappings" field of a version 3
// source map. Only the first source is tracked; esbuild's transform output
// has exactly one.
func decodeMappings(mappings string) ([][]segment, bool) {
	var (
		lines           [][]segment
		srcLine, srcCol int
	)
	for _, group := range strings.Split(mappings, ";") {
		var segs []segment
		genCol := 0
		for _, field := range strings.Split(group, ",") {
			if field == "" {
				continue
			}
			values, ok := decodeVLQ(field)
			if !ok {
				return nil, false
			}
			genCol += values[0]
			if len(values) < 4 {
				continue
			}
			srcLine += values[2]
			srcCol += values[3]
			segs = append(segs, segment{genCol: genCol, srcLine: srcLine, srcCol: srcCol})
		}
		lines = append(lines, segs)
	}
	return lines, true
}

const vlqAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

func decodeVLQ(field string) ([]int, bool) {
	var (
		values       []int
		value, shift int
	)
	for i := 0; i < len(field); i++ {
		digit := strings.IndexByte(vlqAlphabet, field[i])
		if digit < 0 {
			return nil, false
		}
		value += (digit & 31) << shift
		if digit&32 != 0 {
			shift += 5
			continue
		}
		if value&1 != 0 {
			values = append(values, -(value >> 1))
		} else {
			values = append(values, value>>1)
		}
		value, shift = 0, 0
	}
	if shift != 0 || len(values) == 0 {
		return nil, false
	}
	return values, true
}
