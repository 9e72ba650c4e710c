package scanner

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokName tokenKind = iota
	tokOp
	tokNewline
)

type token struct {
	kind  tokenKind
	text  string
	line  int
	depth int // bracket nesting at the token
}

// SyntaxError reports source the import scanner could not tokenize.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d: %s", e.Line, e.Msg)
}

type openBracket struct {
	ch   byte
	line int
}

var closerFor = map[byte]byte{')': '(', ']': '[', '}': '{'}

// tokenize splits Python source into the tokens needed to find import
// statements: names, a few operators, and logical newlines. Strings,
// comments, and numbers are skipped. On error the tokens read so far are
// returned with it.
func tokenize(src string) ([]token, error) {
	var (
		toks  []token
		stack []openBracket
		line  = 1
		i     = 0
	)

	newline := func() {
		if len(stack) == 0 && len(toks) > 0 && toks[len(toks)-1].kind != tokNewline {
			toks = append(toks, token{kind: tokNewline, line: line})
		}
	}
	emit := func(kind tokenKind, text string) {
		toks = append(toks, token{kind: kind, text: text, line: line, depth: len(stack)})
	}

	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			newline()
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r' || c == '\f':
			i++
		case c == '\\':
			i++
			if i < len(src) && src[i] == '\r' {
				i++
			}
			if i < len(src) && src[i] == '\n' {
				line++
				i++
			}
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '\'' || c == '"':
			n, lines, err := skipString(src[i:], line)
			if err != nil {
				return toks, err
			}
			i += n
			line += lines
		case c >= '0' && c <= '9':
			for i < len(src) && (isASCIIAlnum(src[i]) || src[i] == '_' || src[i] == '.') {
				i++
			}
		case c == '(' || c == '[' || c == '{':
			emit(tokOp, string(c))
			stack = append(stack, openBracket{ch: c, line: line})
			i++
		case c == ')' || c == ']' || c == '}':
			if len(stack) == 0 {
				return toks, &SyntaxError{Line: line, Msg: fmt.Sprintf("unmatched %q", c)}
			}
			top := stack[len(stack)-1]
			if top.ch != closerFor[c] {
				return toks, &SyntaxError{Line: line, Msg: fmt.Sprintf("%q does not match %q opened at line %d", c, top.ch, top.line)}
			}
			stack = stack[:len(stack)-1]
			emit(tokOp, string(c))
			i++
		case c == '.' || c == ',' || c == ';' || c == ':' || c == '*':
			emit(tokOp, string(c))
			i++
		default:
			r, size := utf8.DecodeRuneInString(src[i:])
			if !isIdentStart(r) {
				i += size
				continue
			}
			start := i
			i += size
			for i < len(src) {
				r, size = utf8.DecodeRuneInString(src[i:])
				if !isIdentPart(r) {
					break
				}
				i += size
			}
			word := src[start:i]
			if i < len(src) && (src[i] == '\'' || src[i] == '"') && isStringPrefix(word) {
				n, lines, err := skipString(src[i:], line)
				if err != nil {
					return toks, err
				}
				i += n
				line += lines
				continue
			}
			emit(tokName, word)
		}
	}

	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return toks, &SyntaxError{Line: top.line, Msg: fmt.Sprintf("%q was never closed", top.ch)}
	}
	newline()
	return toks, nil
}

// skipString consumes a string literal starting at s[0] and returns the
// bytes consumed and the newlines crossed.
func skipString(s string, line int) (int, int, error) {
	quote := s[0]
	triple := len(s) >= 3 && s[1] == quote && s[2] == quote
	lines := 0

	i := 1
	if triple {
		i = 3
	}
	for i < len(s) {
		switch c := s[i]; {
		case c == '\\':
			if i+1 < len(s) && s[i+1] == '\n' {
				lines++
			}
			i += 2
		case c == '\n':
			if !triple {
				return 0, 0, &SyntaxError{Line: line + lines, Msg: "unterminated string literal"}
			}
			lines++
			i++
		case c == quote:
			if !triple {
				return i + 1, lines, nil
			}
			if i+2 < len(s) && s[i+1] == quote && s[i+2] == quote {
				return i + 3, lines, nil
			}
			i++
		default:
			i++
		}
	}
	if triple {
		return 0, 0, &SyntaxError{Line: line, Msg: "unterminated triple-quoted string literal"}
	}
	return 0, 0, &SyntaxError{Line: line + lines, Msg: "unterminated string literal"}
}

func isStringPrefix(word string) bool {
	switch strings.ToLower(word) {
	case "r", "u", "b", "f", "br", "rb", "fr", "rf":
		return true
	}
	return false
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

func isASCIIAlnum(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// importedModules returns the top-level module names referenced by
// absolute import statements, in order of appearance.
func importedModules(toks []token) []string {
	var mods []string
	atStart := true

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.kind == tokNewline {
			atStart = true
			continue
		}
		if t.kind == tokOp && t.depth == 0 && (t.text == ";" || t.text == ":") {
			atStart = true
			continue
		}
		if !atStart {
			continue
		}
		atStart = false
		if t.kind != tokName {
			continue
		}

		switch t.text {
		case "import":
			i = parseImport(toks, i+1, &mods)
		case "from":
			i = parseFrom(toks, i+1, &mods)
		}
	}
	return mods
}

// parseImport reads "a.b [as c], d ..." starting at toks[i] and returns
// the index of the last token it consumed.
func parseImport(toks []token, i int, mods *[]string) int {
	for i < len(toks) && toks[i].kind == tokName {
		*mods = append(*mods, toks[i].text)
		i = skipDotted(toks, i)
		if i+2 < len(toks) && toks[i+1].kind == tokName && toks[i+1].text == "as" {
			i += 2
		}
		if i+1 < len(toks) && toks[i+1].kind == tokOp && toks[i+1].text == "," {
			i += 2
			continue
		}
		return i
	}
	return i - 1
}

// parseFrom reads "a.b import ..." starting at toks[i]. Relative imports
// are skipped.
func parseFrom(toks []token, i int, mods *[]string) int {
	if i >= len(toks) || toks[i].kind != tokName {
		return i - 1
	}
	name := toks[i].text
	end := skipDotted(toks, i)
	if end+1 < len(toks) && toks[end+1].kind == tokName && toks[end+1].text == "import" {
		*mods = append(*mods, name)
		return end + 1
	}
	return end
}

// skipDotted returns the index of the last name in a dotted path that
// starts at toks[i].
func skipDotted(toks []token, i int) int {
	for i+2 < len(toks) && toks[i+1].kind == tokOp && toks[i+1].text == "." && toks[i+2].kind == tokName {
		i += 2
	}
	return i
}
