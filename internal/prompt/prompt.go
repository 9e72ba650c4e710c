// Package prompt asks the operator yes/no questions.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tsukumogami/aigene/internal/progress"
)

// Prompter asks for confirmation before an action.
type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// InteractivePrompter reads answers from a terminal.
type InteractivePrompter struct {
	// In is shared with whatever else reads the terminal so buffered
	// input is not lost between questions.
	In  *bufio.Reader
	Out io.Writer

	// DefaultYes is the answer to an empty line.
	DefaultYes bool

	// IsTerminal reports whether a human can answer. Nil uses
	// progress.ShouldShowProgress.
	IsTerminal func() bool
}

// Confirm prints question with a [Y/n] or [y/N] hint and reads one line.
// Without a terminal it declines without reading.
func (p *InteractivePrompter) Confirm(ctx context.Context, question string) (bool, error) {
	isTTY := p.IsTerminal
	if isTTY == nil {
		isTTY = progress.ShouldShowProgress
	}
	if !isTTY() {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	hint := "[y/N]"
	if p.DefaultYes {
		hint = "[Y/n]"
	}
	fmt.Fprintf(p.Out, "%s %s ", question, hint)

	line, err := p.In.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	if errors.Is(err, io.EOF) && line == "" {
		fmt.Fprintln(p.Out)
		return false, nil
	}
	return ParseAnswer(line, p.DefaultYes), nil
}

// ParseAnswer interprets a typed answer. Anything unrecognised is no.
func ParseAnswer(s string, defaultYes bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return defaultYes
	case "y", "yes", "是", "好":
		return true
	}
	return false
}

// AutoApprovePrompter says yes to everything, for --yes.
type AutoApprovePrompter struct{}

func (AutoApprovePrompter) Confirm(context.Context, string) (bool, error) { return true, nil }

// NilPrompter declines everything.
type NilPrompter struct{}

func (NilPrompter) Confirm(context.Context, string) (bool, error) { return false, nil }
