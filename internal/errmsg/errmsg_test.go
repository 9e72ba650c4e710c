package errmsg

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
)

func TestFormat_NilError(t *testing.T) {
	result := Format(nil, nil)
	if result != "" {
		t.Errorf("expected empty string for nil error, got %q", result)
	}
}

func TestFormat_GenericError(t *testing.T) {
	err := errors.New("something went wrong")
	result := Format(err, nil)
	if result != "something went wrong" {
		t.Errorf("expected original error message, got %q", result)
	}
}

func TestFormat_PythonConfigError(t *testing.T) {
	errUnsupported := Sentinel(FatalConfig, "unsupported Python version")
	err := fmt.Errorf("%w: found 3.6.9, need 3.7 or newer", errUnsupported)

	result := Format(err, nil)
	checks := []string{
		"found 3.6.9",
		"Possible causes:",
		"Suggestions:",
		"aigene config set python",
	}
	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_MissingKey(t *testing.T) {
	err := fmt.Errorf("%w: deepseek_api_key", Sentinel(FatalConfig, "secret not configured"))
	result := Format(err, &ErrorContext{Provider: "deepseek", EnvVar: "DEEPSEEK_API_KEY"})

	for _, check := range []string{"DEEPSEEK_API_KEY=<key>", "current: deepseek"} {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_RateLimit(t *testing.T) {
	result := Format(errors.New("GitHub API rate limit exceeded"), nil)
	if !strings.Contains(result, "Wait a few minutes") {
		t.Errorf("missing suggestion:\n%s", result)
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var _ net.Error = timeoutError{}

func TestFormat_NetworkTimeout(t *testing.T) {
	result := Format(fmt.Errorf("download: %w", timeoutError{}), nil)
	for _, check := range []string{"Request timed out", "disable it and retry", "AIGENE_INSTALL_TIMEOUT"} {
		if !strings.Contains(result, check) {
			t.Errorf("expected result to contain %q, got:\n%s", check, result)
		}
	}
}

func TestFormat_GenericNetworkWithPackage(t *testing.T) {
	result := Format(errors.New("dial tcp: connection refused"), &ErrorContext{Package: "numpy"})
	if !strings.Contains(result, "aigene deps retry") {
		t.Errorf("missing retry suggestion:\n%s", result)
	}
}

func TestFormat_Permission(t *testing.T) {
	result := Format(errors.New("open aigene.exe: Access is denied."), nil)
	if !strings.Contains(result, "Close other programs") {
		t.Errorf("missing suggestion:\n%s", result)
	}
}

type partial struct{}

func (partial) Error() string        { return "2 of 3 packages failed" }
func (partial) PartialFailure() bool { return true }

func TestKindOf(t *testing.T) {
	sentinel := Sentinel(FatalConfig, "no python")
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, Unknown},
		{"plain", errors.New("boom"), Unknown},
		{"wrapped sentinel", fmt.Errorf("setup: %w", sentinel), FatalConfig},
		{"explicit wrap", Wrap(Corruption, errors.New("bad json")), Corruption},
		{"deadline", fmt.Errorf("check: %w", context.DeadlineExceeded), Transient},
		{"net error", timeoutError{}, Transient},
		{"network message", errors.New("dial tcp 1.2.3.4:5000: connection refused"), Transient},
		{"partial", partial{}, PartialFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}

	if !errors.Is(fmt.Errorf("x: %w", sentinel), sentinel) {
		t.Error("sentinel should match through wrapping")
	}
	if !IsFatal(sentinel) {
		t.Error("IsFatal(sentinel) = false")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(Transient, nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestSeverity(t *testing.T) {
	if FatalConfig.Severity() != "Fatal" || Transient.Severity() != "Warning" || Unknown.Severity() != "Error" {
		t.Error("unexpected severity labels")
	}
}
