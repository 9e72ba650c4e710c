package prompt

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"
)

func newPrompter(input string, defaultYes bool) (*InteractivePrompter, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &InteractivePrompter{
		In:         bufio.NewReader(strings.NewReader(input)),
		Out:        out,
		DefaultYes: defaultYes,
		IsTerminal: func() bool { return true },
	}, out
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		defaultYes bool
		want       bool
	}{
		{"yes", "y\n", false, true},
		{"upper", "YES\n", false, true},
		{"chinese yes", "是\n", false, true},
		{"no", "n\n", true, false},
		{"empty takes default yes", "\n", true, true},
		{"empty takes default no", "\n", false, false},
		{"garbage is no", "maybe\n", true, false},
		{"eof declines", "", true, false},
		{"no trailing newline", "y", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newPrompter(tt.input, tt.defaultYes)
			got, err := p.Confirm(context.Background(), "Continue?")
			if err != nil {
				t.Fatalf("Confirm() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Confirm() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfirmHint(t *testing.T) {
	p, out := newPrompter("\n", true)
	if _, err := p.Confirm(context.Background(), "Install now?"); err != nil {
		t.Fatal(err)
	}
	if out.String() != "Install now? [Y/n] " {
		t.Errorf("prompt = %q", out.String())
	}
}

func TestConfirmSharesReader(t *testing.T) {
	p, _ := newPrompter("y\nnext line\n", false)
	if ok, _ := p.Confirm(context.Background(), "?"); !ok {
		t.Fatal("expected yes")
	}
	rest, _ := p.In.ReadString('\n')
	if rest != "next line\n" {
		t.Errorf("following input = %q", rest)
	}
}

func TestConfirmWithoutTerminal(t *testing.T) {
	p, out := newPrompter("y\n", true)
	p.IsTerminal = func() bool { return false }
	got, err := p.Confirm(context.Background(), "?")
	if err != nil || got {
		t.Errorf("Confirm() = %v, %v; want false, nil", got, err)
	}
	if out.Len() != 0 {
		t.Errorf("nothing should be printed, got %q", out.String())
	}
}

func TestConfirmCancelled(t *testing.T) {
	p, _ := newPrompter("y\n", true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Confirm(ctx, "?"); err == nil {
		t.Error("expected context error")
	}
}

func TestFixedPrompters(t *testing.T) {
	if ok, _ := (AutoApprovePrompter{}).Confirm(context.Background(), "?"); !ok {
		t.Error("AutoApprovePrompter declined")
	}
	if ok, _ := (NilPrompter{}).Confirm(context.Background(), "?"); ok {
		t.Error("NilPrompter approved")
	}
}
