// Package scanner resolves the packages a generated Python script needs.
//
// Requirements come from two comment conventions and from the script's
// absolute import statements. Standard-library modules are dropped, import
// names are mapped to package names, and the result is deduplicated by name
// with comment-declared pins taking precedence over bare imports.
package scanner

import (
	"regexp"
	"strings"

	"github.com/tsukumogami/aigene/internal/log"
)

var (
	// "# deps: a, b==1.0" or "# 依赖包：a, b"
	depsComment = regexp.MustCompile(`(?mi)#[ \t]*(?:deps|dependencies|依赖包)[ \t]*[：:][ \t]*([^（(\n]+)`)

	// "# pip install a b==2"
	pipComment = regexp.MustCompile(`(?mi)#[ \t]*pip3?[ \t]+install[ \t]+([^\n]+)`)

	systemDepsComment = regexp.MustCompile(`(?mi)#[ \t]*(?:是否需要提前安装除以上的其它依赖[ \t]*[：:][ \t]*是|needs?[ _-]system[ _-]deps[ \t]*[：:][ \t]*(?:yes|true))`)
)

// Result is the outcome of scanning one source text.
type Result struct {
	// Requirements is deduplicated by name, in first-seen order.
	Requirements []Requirement

	// ParseErr is set when the import scan stopped early. Requirements
	// harvested before the error are still present.
	ParseErr error
}

// Scanner resolves requirements from Python source.
type Scanner struct {
	logger log.Logger
}

// New returns a Scanner that reports parse warnings to logger.
// A nil logger uses the package default.
func New(logger log.Logger) *Scanner {
	return &Scanner{logger: log.OrDefault(logger)}
}

// Scan resolves requirements with a default Scanner.
func Scan(source string) Result {
	return New(nil).Scan(source)
}

// Scan never fails: malformed source yields a partial result with ParseErr set.
func (s *Scanner) Scan(source string) Result {
	set := newRequirementSet()

	for _, spec := range declaredSpecs(source) {
		name, version, err := splitSpecifier(spec)
		if err != nil {
			name = leadingName.FindString(spec)
			if name == "" {
				s.logger.Debug("ignoring dependency declaration", "entry", spec, "error", err)
				continue
			}
			s.logger.Warn("ignoring version constraint", "entry", spec, "error", err)
			version = ""
		}
		if IsStandardLibrary(name) {
			continue
		}
		set.declare(Requirement{Name: strings.ToLower(PackageFor(name)), Version: version})
	}

	toks, err := tokenize(source)
	for _, mod := range importedModules(toks) {
		if IsStandardLibrary(mod) {
			continue
		}
		set.observe(Requirement{Name: strings.ToLower(PackageFor(mod))})
	}

	if err != nil {
		s.logger.Warn("could not fully parse source, using declared dependencies", "error", err)
	}
	return Result{Requirements: set.list(), ParseErr: err}
}

// declaredSpecs returns the raw entries of every dependency comment, in
// source order.
func declaredSpecs(source string) []string {
	type match struct {
		pos     int
		entries []string
	}
	var matches []match

	for _, m := range depsComment.FindAllStringSubmatchIndex(source, -1) {
		body := strings.TrimSpace(source[m[2]:m[3]])
		if isNoneSentinel(body) {
			continue
		}
		var entries []string
		for _, part := range strings.FieldsFunc(body, func(r rune) bool { return r == ',' || r == '，' }) {
			if part = strings.TrimSpace(part); part != "" && !isNoneSentinel(part) {
				entries = append(entries, part)
			}
		}
		matches = append(matches, match{pos: m[0], entries: entries})
	}

	for _, m := range pipComment.FindAllStringSubmatchIndex(source, -1) {
		body := strings.TrimSpace(source[m[2]:m[3]])
		if isNoneSentinel(body) {
			continue
		}
		var entries []string
		for _, field := range strings.Fields(body) {
			if strings.HasPrefix(field, "-") {
				continue
			}
			entries = append(entries, field)
		}
		matches = append(matches, match{pos: m[0], entries: entries})
	}

	// Interleave both conventions by position so "last one wins" follows
	// the order a reader sees.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].pos < matches[j-1].pos; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}

	var specs []string
	for _, m := range matches {
		specs = append(specs, m.entries...)
	}
	return specs
}

func isNoneSentinel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "无":
		return true
	}
	return false
}

// NeedsSystemDeps reports whether source declares that it needs system
// libraries beyond its Python packages.
func NeedsSystemDeps(source string) bool {
	return systemDepsComment.MatchString(source)
}

// HasDeclaration reports whether source carries any dependency comment,
// including an explicit "none".
func HasDeclaration(source string) bool {
	return depsComment.MatchString(source) || pipComment.MatchString(source)
}

type requirementSet struct {
	order []string
	byKey map[string]Requirement
}

func newRequirementSet() *requirementSet {
	return &requirementSet{byKey: make(map[string]Requirement)}
}

// declare records a comment entry. A later declaration replaces an earlier one.
func (s *requirementSet) declare(r Requirement) {
	key := NormalizeName(r.Name)
	if _, ok := s.byKey[key]; !ok {
		s.order = append(s.order, key)
	}
	s.byKey[key] = r
}

// observe records an imported name unless a comment already named it.
func (s *requirementSet) observe(r Requirement) {
	key := NormalizeName(r.Name)
	if _, ok := s.byKey[key]; ok {
		return
	}
	s.order = append(s.order, key)
	s.byKey[key] = r
}

func (s *requirementSet) list() []Requirement {
	if len(s.order) == 0 {
		return nil
	}
	out := make([]Requirement, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.byKey[key])
	}
	return out
}
