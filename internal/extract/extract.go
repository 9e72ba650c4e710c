// Package extract pulls runnable Python code out of a chat response.
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/tsukumogami/aigene/internal/scanner"
)

// maxNameRunes caps a sanitised file name.
const maxNameRunes = 64

var (
	// 『数据分析』.py
	nameMarker = regexp.MustCompile(`『([^』\n]+)』\.py`)

	// # filename: report.py
	filenameComment = regexp.MustCompile(`(?mi)^[ \t]*#[ \t]*(?:filename|file name|文件名)[ \t]*[：:][ \t]*(\S+)`)
)

// Artifact is the code found in one response.
type Artifact struct {
	Code string

	// SuggestedName is a sanitised base name without extension, or ""
	// when the response did not propose one.
	SuggestedName string
}

// Code returns the first Python code block in response. Blocks tagged
// python (or py, python3) win over untagged ones; blocks in any other
// language are ignored. A leading 『name』.py line inside the block is
// treated as the name marker and dropped from the code.
func Code(response string) (Artifact, bool) {
	blocks := fencedBlocks(response)

	var chosen *block
	for i := range blocks {
		if isPython(blocks[i].lang) {
			chosen = &blocks[i]
			break
		}
	}
	if chosen == nil {
		for i := range blocks {
			if blocks[i].lang == "" {
				chosen = &blocks[i]
				break
			}
		}
	}
	if chosen == nil {
		return Artifact{}, false
	}

	code := chosen.body
	if first, rest, ok := strings.Cut(code, "\n"); ok && nameMarker.MatchString(strings.TrimSpace(first)) {
		code = rest
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return Artifact{}, false
	}

	return Artifact{Code: code, SuggestedName: suggestedName(response, code)}, true
}

func suggestedName(response, code string) string {
	if m := nameMarker.FindStringSubmatch(response); m != nil {
		if name := SanitizeFilename(m[1]); name != "" {
			return name
		}
	}
	if m := filenameComment.FindStringSubmatch(code); m != nil {
		return SanitizeFilename(m[1])
	}
	return ""
}

// SanitizeFilename reduces name to a safe base name: directory parts and
// a .py suffix are dropped, spaces become underscores, and only letters
// of any script, digits, '_' and '-' are kept.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".py")

	var b strings.Builder
	n := 0
	for _, r := range name {
		if n == maxNameRunes {
			break
		}
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		default:
			continue
		}
		n++
	}
	return strings.Trim(b.String(), "_-")
}

// HasDeclaredDeps reports whether code carries a dependency comment. Code
// without one still installs from its imports, but pins are lost.
func HasDeclaredDeps(code string) bool {
	return scanner.HasDeclaration(code)
}

type block struct {
	lang string
	body string
}

// fencedBlocks splits text into its ``` fenced blocks. An unterminated
// final block runs to the end of the text.
func fencedBlocks(text string) []block {
	var blocks []block
	var cur *block
	var body []string

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if cur == nil {
			if strings.HasPrefix(trimmed, "```") {
				lang := strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
				if f := strings.Fields(lang); len(f) > 0 {
					lang = strings.ToLower(f[0])
				}
				cur = &block{lang: lang}
				body = body[:0]
			}
			continue
		}
		if trimmed == "```" {
			cur.body = strings.Join(body, "\n")
			blocks = append(blocks, *cur)
			cur = nil
			continue
		}
		body = append(body, line)
	}
	if cur != nil {
		cur.body = strings.Join(body, "\n")
		blocks = append(blocks, *cur)
	}
	return blocks
}

func isPython(lang string) bool {
	switch lang {
	case "python", "py", "python3":
		return true
	}
	return false
}
