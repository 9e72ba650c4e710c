package installer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsukumogami/aigene/internal/proc"
	"github.com/tsukumogami/aigene/internal/proc/proctest"
	"github.com/tsukumogami/aigene/internal/scanner"
)

// pipShow answers "pip show" for the given name→version table.
func pipShow(installed map[string]string) proctest.Handler {
	return func(cmd proc.Command) proctest.Response {
		name := cmd.Args[len(cmd.Args)-1]
		v, ok := installed[name]
		if !ok {
			return proctest.Response{
				Lines: []proctest.Line{{Stream: proc.Stderr, Text: "WARNING: Package(s) not found: " + name}},
				Code:  1,
			}
		}
		return proctest.Response{Lines: proctest.Out("Name: "+name, "Version: "+v, "Summary: x")}
	}
}

func TestPipProbe(t *testing.T) {
	runner := &proctest.Runner{Handler: pipShow(map[string]string{
		"requests": "2.31.0",
		"numpy":    "1.26.4",
		"torch":    "2.1.0",
	})}
	probe := NewPipProbe(&fakeEnv{}, runner)
	ctx := context.Background()

	tests := []struct {
		spec string
		want bool
	}{
		{"requests", true},
		{"requests==2.31.0", true},
		{"requests==2.0.0", false},
		{"flask", false},
		{"requests[socks]", true},
		// torch is installed but most of its prerequisites are not.
		{"torch", false},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			req, err := scanner.ParseRequirement(tt.spec)
			require.NoError(t, err)
			require.Equal(t, tt.want, probe.Satisfied(ctx, req))
		})
	}
}

func TestPipProbeSpecialWithPrerequisites(t *testing.T) {
	installed := map[string]string{"torch": "2.1.0"}
	rule, _ := RuleFor("torch")
	for _, p := range rule.Prerequisites {
		installed[p] = "1.0"
	}
	probe := NewPipProbe(&fakeEnv{}, &proctest.Runner{Handler: pipShow(installed)})

	require.True(t, probe.Satisfied(context.Background(), scanner.MustParseRequirements("torch")[0]))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		line string
		want lineClass
	}{
		{"Successfully installed requests-2.31.0", lineSuccess},
		{"Requirement already satisfied: numpy in ./venv", lineSatisfied},
		{"ERROR: No matching distribution found for foo", lineError},
		{"WARNING: Retrying (Retry(total=4))", lineWarning},
		{"Downloading numpy-1.26.4.whl (15.8 MB)", lineProgress},
		{"Collecting requests", lineOther},
	}
	for _, tt := range tests {
		if got := classify(tt.line); got != tt.want {
			t.Errorf("classify(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestSystemDepsGuide(t *testing.T) {
	require.Nil(t, SystemDepsGuide(scanner.MustParseRequirements("requests")))

	lines := SystemDepsGuide(scanner.MustParseRequirements("requests", "psycopg2"))
	require.NotEmpty(t, lines)
	require.Contains(t, lines[0], "psycopg2")
}

func TestSpecialRulePrerequisitesParse(t *testing.T) {
	for name, rule := range specialRules {
		for _, p := range rule.Prerequisites {
			_, err := scanner.ParseRequirement(p)
			require.NoError(t, err, "%s prerequisite %q", name, p)
		}
	}
}
