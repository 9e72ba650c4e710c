package scanner

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	namePattern    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*(\[[A-Za-z0-9,._ -]+\])?$`)
	versionPattern = regexp.MustCompile(`^[A-Za-z0-9.+!*_-]+$`)
	leadingName    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*`)
	separatorRun   = regexp.MustCompile(`[-_.]+`)
)

// NormalizeName returns the identity pip uses for a package: extras are
// dropped, the name is lowercased and runs of "-", "_" and "." become "-".
// "Python_Docx[lxml]" and "python-docx" normalize alike.
func NormalizeName(name string) string {
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return separatorRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// Requirement is an installable package, optionally pinned to an exact version.
type Requirement struct {
	Name    string
	Version string
}

// String returns the pip specifier, "name" or "name==version".
func (r Requirement) String() string {
	if r.Version == "" {
		return r.Name
	}
	return r.Name + "==" + r.Version
}

// Pinned reports whether the requirement carries an exact version.
func (r Requirement) Pinned() bool {
	return r.Version != ""
}

// ParseRequirement parses "name" or "name==version". The name is lowercased.
// Version ranges are rejected.
func ParseRequirement(s string) (Requirement, error) {
	name, version, err := splitSpecifier(s)
	if err != nil {
		return Requirement{}, err
	}
	return Requirement{Name: strings.ToLower(name), Version: version}, nil
}

// MustParseRequirements parses a list of specifiers and panics on error.
// It is meant for tables and tests.
func MustParseRequirements(specs ...string) []Requirement {
	reqs := make([]Requirement, 0, len(specs))
	for _, s := range specs {
		r, err := ParseRequirement(s)
		if err != nil {
			panic(err)
		}
		reqs = append(reqs, r)
	}
	return reqs
}

// splitSpecifier returns the raw (case-preserved) name and the pinned version.
func splitSpecifier(s string) (string, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", fmt.Errorf("empty requirement")
	}

	name, version := s, ""
	if idx := strings.Index(s, "=="); idx >= 0 {
		name = strings.TrimSpace(s[:idx])
		version = strings.TrimSpace(s[idx+2:])
		if version == "" || !versionPattern.MatchString(version) {
			return "", "", fmt.Errorf("invalid version in requirement %q", s)
		}
	} else if strings.ContainsAny(s, "<>~=!") {
		return "", "", fmt.Errorf("requirement %q uses a version range; only exact pins are supported", s)
	}

	if !namePattern.MatchString(name) {
		return "", "", fmt.Errorf("invalid package name in requirement %q", s)
	}
	return name, version, nil
}

// Names returns the bare names of reqs, in order.
func Names(reqs []Requirement) []string {
	names := make([]string, len(reqs))
	for i, r := range reqs {
		names[i] = r.Name
	}
	return names
}

// Strings returns the pip specifiers of reqs, in order.
func Strings(reqs []Requirement) []string {
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.String()
	}
	return out
}
