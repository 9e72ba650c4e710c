package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tsukumogami/aigene/internal/config"
	"github.com/tsukumogami/aigene/internal/deps"
	"github.com/tsukumogami/aigene/internal/errmsg"
	"github.com/tsukumogami/aigene/internal/extract"
	"github.com/tsukumogami/aigene/internal/llm"
	"github.com/tsukumogami/aigene/internal/prompt"
	"github.com/tsukumogami/aigene/internal/workspace"
)

// multiLineThreshold is the first-line length, in characters, that
// switches input to multi-line mode.
const multiLineThreshold = 25

// generateOnlySuffix asks for code without running it.
const generateOnlySuffix = "-n"

// autoRunKeywords in a request mean the extracted code is saved and run
// straight away.
var autoRunKeywords = []string{"写", "代码", "生成", "write", "code", "generate"}

const systemPrompt = `You are a Python expert who writes complete, runnable scripts.

When you write code:
1. Put the whole script in one fenced block tagged python.
2. Make the first line of the block the file name, written as 『name』.py.
3. Next, list the pip packages the script needs on one comment line:
   # deps: package1, package2
   Write "# deps: none" when it only uses the standard library.
4. Then add a comment line saying whether anything besides those packages
   must be installed first (drivers, system libraries, programs):
   # needs system deps: yes
   or
   # needs system deps: no
   When it is yes, name what is needed and where to get it in comments.
5. Target Python 3.9. Read input interactively where the task needs it and
   print clear results. Keep explanations outside the block short.`

// chatter is the part of *llm.Conversation the session uses.
type chatter interface {
	Send(ctx context.Context, text string, onDelta func(llm.Delta)) (*llm.CompletionResponse, error)
	Model() string
	SetModel(model string)
	Reset()
}

// preparer installs what a script needs. *deps.Workflow implements it.
type preparer interface {
	Prepare(ctx context.Context, artifact, code string) (*deps.Outcome, error)
}

// session is the interactive chat loop.
type session struct {
	in       *bufio.Reader
	out      io.Writer
	conv     chatter
	ws       *workspace.Workspace
	deps     preparer
	run      func(ctx context.Context, path string) (int, error)
	prompter prompt.Prompter
	errCtx   *errmsg.ErrorContext
	tty      bool

	chatModel      string
	reasoningModel string

	last *extract.Artifact
}

// newSession connects to the configured chat provider.
func (a *app) newSession(ctx context.Context, in *bufio.Reader, p prompt.Prompter) (*session, error) {
	cfg, ectx, err := a.llmConfig()
	if err != nil {
		return nil, err
	}
	provider, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	conv := llm.NewConversation(provider, llm.ConversationOptions{
		SystemPrompt: systemPrompt,
		Model:        llm.ChatModel(cfg),
		Timeout:      config.GetAPITimeout(),
		Out:          a.out,
		Logger:       a.logger,
	})
	a.logger.Debug("chat session started", "provider", provider.Name(), "model", conv.Model())

	return &session{
		in:             in,
		out:            a.out,
		conv:           conv,
		ws:             a.ws,
		deps:           a.workflow(),
		run:            a.runScript,
		prompter:       p,
		errCtx:         ectx,
		tty:            a.tty,
		chatModel:      llm.ChatModel(cfg),
		reasoningModel: llm.ReasoningModel(cfg),
	}, nil
}

func (s *session) close() {
	if c, ok := s.conv.(io.Closer); ok {
		c.Close()
	}
}

// loop reads requests until q, exit or end of input.
func (s *session) loop(ctx context.Context) error {
	s.banner()
	for {
		input, err := s.readRequest()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return err
		}
		if input == "" {
			continue
		}
		if s.handle(ctx, input) {
			return nil
		}
	}
}

// handle runs one command or chat turn and reports whether to quit.
func (s *session) handle(ctx context.Context, input string) bool {
	switch input {
	case "q", "exit", "quit":
		return true
	case "cl":
		s.clear()
	case "ls":
		s.listAndRun(ctx)
	case "run":
		s.useLast(ctx, true)
	case "s":
		s.useLast(ctx, false)
	case "h", "help":
		s.help()
	case "r":
		s.switchModel(s.reasoningModel)
	case "c":
		s.switchModel(s.chatModel)
	default:
		s.chat(ctx, input)
	}
	return false
}

func (s *session) banner() {
	fmt.Fprintln(s.out, "aigene: describe the script you need.")
	fmt.Fprintln(s.out, "Commands: cl (clear memory), ls (list scripts), run (run last code), h (help), q (quit).")
	fmt.Fprintln(s.out, "Requests containing 写, 代码, 生成, write, code or generate are saved and run automatically.")
}

func (s *session) help() {
	fmt.Fprintln(s.out, "  cl    clear the conversation and the screen")
	fmt.Fprintln(s.out, "  ls    list saved scripts and run one")
	fmt.Fprintln(s.out, "  run   save and run the last generated code")
	fmt.Fprintln(s.out, "  s     save the last generated code without running it")
	fmt.Fprintln(s.out, "  -n    end a request with this to generate without running")
	fmt.Fprintln(s.out, "  r     switch to the reasoning model")
	fmt.Fprintln(s.out, "  c     switch back to the chat model")
	fmt.Fprintln(s.out, "  q     quit")
}

// readRequest reads one request. A first line of multiLineThreshold or
// more characters switches to multi-line mode, which an empty line ends.
func (s *session) readRequest() (string, error) {
	fmt.Fprint(s.out, "\nYou: ")
	first, err := s.readLine()
	if err != nil {
		return "", err
	}
	first = strings.TrimSpace(first)
	if utf8.RuneCountInString(first) < multiLineThreshold {
		return first, nil
	}

	lines := []string{first}
	fmt.Fprintln(s.out, "(long input: multi-line mode, finish with an empty line)")
	for {
		fmt.Fprintf(s.out, "%d> ", len(lines)+1)
		line, err := s.readLine()
		if err != nil || strings.TrimSpace(line) == "" {
			break
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

// readLine returns one line without its terminator. A final line without
// a newline is returned as is; io.EOF means nothing was left.
func (s *session) readLine() (string, error) {
	line, err := s.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// parseRequest strips the generate-only suffix.
func parseRequest(input string) (text string, execute bool) {
	text = strings.TrimSpace(input)
	if strings.HasSuffix(text, generateOnlySuffix) {
		return strings.TrimSpace(strings.TrimSuffix(text, generateOnlySuffix)), false
	}
	return text, true
}

// wantsAutoRun reports whether the request asks for code to be produced.
func wantsAutoRun(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range autoRunKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (s *session) chat(ctx context.Context, input string) {
	text, execute := parseRequest(input)
	if text == "" {
		return
	}

	cctx, stop := interruptible(ctx)
	defer stop()

	printer := &streamPrinter{out: s.out}
	resp, err := s.conv.Send(cctx, text, printer.write)
	printer.finish()
	if err != nil {
		s.reportChatError(cctx, err)
		return
	}

	art, ok := extract.Code(resp.Content)
	if !ok {
		return
	}
	s.last = &art
	if !extract.HasDeclaredDeps(art.Code) {
		fmt.Fprintln(s.out, "Note: the code does not declare its dependencies; they will be guessed from its imports.")
	}

	if !wantsAutoRun(text) {
		fmt.Fprintln(s.out, "\nCode detected. Type 'run' to save and run it, or 's' to only save it.")
		return
	}
	s.saveAndRun(cctx, art, execute)
}

func (s *session) reportChatError(ctx context.Context, err error) {
	switch {
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		fmt.Fprintln(s.out, "\nInterrupted.")
	case errors.Is(err, llm.ErrAuthentication):
		fmt.Fprintf(s.out, "\nThe %s API rejected the key.", s.errCtx.Provider)
		if s.errCtx.EnvVar != "" {
			fmt.Fprintf(s.out, " Check %s or run 'aigene config set secrets.<name> <key>'.", s.errCtx.EnvVar)
		}
		fmt.Fprintln(s.out)
	default:
		fmt.Fprintf(s.out, "\nRequest failed: %s\n", errmsg.Format(err, s.errCtx))
	}
}

// useLast saves the last generated code. With run set its dependencies
// are installed and it is run.
func (s *session) useLast(ctx context.Context, run bool) {
	if s.last == nil {
		fmt.Fprintln(s.out, "No code yet. Ask for a script first.")
		return
	}
	if !run {
		if path, err := s.ws.Save(s.last.Code, s.last.SuggestedName); err != nil {
			fmt.Fprintf(s.out, "Could not save the code: %v\n", err)
		} else {
			fmt.Fprintf(s.out, "Saved to %s\n", path)
		}
		return
	}
	cctx, stop := interruptible(ctx)
	defer stop()
	s.saveAndRun(cctx, *s.last, true)
}

// saveAndRun saves art, installs its dependencies and, when execute is
// set and nothing is missing, runs it.
func (s *session) saveAndRun(ctx context.Context, art extract.Artifact, execute bool) {
	path, err := s.ws.Save(art.Code, art.SuggestedName)
	if err != nil {
		fmt.Fprintf(s.out, "Could not save the code: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Saved to %s\n", path)

	if !s.prepare(ctx, path, art.Code) || !execute {
		return
	}
	s.runPath(ctx, path)
}

// prepare installs the script's dependencies and reports whether it
// should be run.
func (s *session) prepare(ctx context.Context, path, code string) bool {
	outcome, err := s.deps.Prepare(ctx, path, code)
	if err != nil {
		fmt.Fprintf(s.out, "Dependency setup failed: %s\n", errmsg.Format(err, nil))
		return false
	}
	if outcome.Ready() {
		return true
	}
	if outcome.NeedsSystemDeps {
		return false
	}
	yes, _ := s.prompter.Confirm(ctx, "Some dependencies are missing, so the script may fail. Run it anyway?")
	return yes
}

func (s *session) runPath(ctx context.Context, path string) {
	fmt.Fprintf(s.out, "Running %s\n\n", path)
	code, err := s.run(ctx, path)
	switch {
	case err != nil:
		fmt.Fprintf(s.out, "\nCould not run the script: %v\n", err)
	case code != 0:
		fmt.Fprintf(s.out, "\nThe script exited with status %d.\n", code)
	}
}

// listAndRun lists the saved scripts and runs the one picked by number.
func (s *session) listAndRun(ctx context.Context) {
	names, err := s.ws.List()
	if err != nil {
		fmt.Fprintf(s.out, "Could not list scripts: %v\n", err)
		return
	}
	if len(names) == 0 {
		fmt.Fprintf(s.out, "No scripts in %s yet.\n", s.ws.Dir())
		return
	}

	fmt.Fprintln(s.out, "\nSaved scripts:")
	for i, n := range names {
		fmt.Fprintf(s.out, "%3d. %s\n", i+1, n)
	}

	for {
		fmt.Fprint(s.out, "\nScript number (Enter to go back): ")
		line, err := s.readLine()
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(names) {
			fmt.Fprintf(s.out, "Enter a number between 1 and %d.\n", len(names))
			continue
		}

		code, err := s.ws.Read(names[n-1])
		if err != nil {
			fmt.Fprintf(s.out, "Could not read %s: %v\n", names[n-1], err)
			return
		}
		path := s.ws.Path(names[n-1])

		cctx, stop := interruptible(ctx)
		defer stop()
		if s.prepare(cctx, path, code) {
			s.runPath(cctx, path)
		}
		return
	}
}

func (s *session) clear() {
	s.conv.Reset()
	if s.tty {
		fmt.Fprint(s.out, "\033[H\033[2J")
	}
	s.banner()
	fmt.Fprintln(s.out, "Memory cleared.")
}

func (s *session) switchModel(model string) {
	if model == "" {
		fmt.Fprintf(s.out, "The %s provider has no reasoning model.\n", s.errCtx.Provider)
		return
	}
	s.conv.SetModel(model)
	fmt.Fprintf(s.out, "Switched to %s.\n", model)
}

// streamPrinter shows a streamed reply, setting the reasoning apart from
// the answer.
type streamPrinter struct {
	out      io.Writer
	started  bool
	thinking bool
}

func (p *streamPrinter) write(d llm.Delta) {
	if !p.started {
		fmt.Fprint(p.out, "\nAI: ")
		p.started = true
	}
	if d.Reasoning != "" {
		if !p.thinking {
			fmt.Fprint(p.out, "\n(thinking)\n")
			p.thinking = true
		}
		fmt.Fprint(p.out, d.Reasoning)
	}
	if d.Content != "" {
		if p.thinking {
			fmt.Fprint(p.out, "\n(done thinking)\n\n")
			p.thinking = false
		}
		fmt.Fprint(p.out, d.Content)
	}
}

func (p *streamPrinter) finish() {
	if p.thinking {
		fmt.Fprint(p.out, "\n(done thinking)")
		p.thinking = false
	}
	if p.started {
		fmt.Fprintln(p.out)
	}
}
