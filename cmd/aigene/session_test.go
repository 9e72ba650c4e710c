package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tsukumogami/aigene/internal/deps"
	"github.com/tsukumogami/aigene/internal/errmsg"
	"github.com/tsukumogami/aigene/internal/llm"
	"github.com/tsukumogami/aigene/internal/prompt"
	"github.com/tsukumogami/aigene/internal/scanner"
	"github.com/tsukumogami/aigene/internal/workspace"
)

type fakeChat struct {
	replies []string
	err     error
	sent    []string
	model   string
	resets  int
}

func (f *fakeChat) Send(_ context.Context, text string, onDelta func(llm.Delta)) (*llm.CompletionResponse, error) {
	f.sent = append(f.sent, text)
	if f.err != nil {
		return nil, f.err
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	if onDelta != nil {
		onDelta(llm.Delta{Content: reply})
	}
	return &llm.CompletionResponse{Content: reply}, nil
}

func (f *fakeChat) Model() string     { return f.model }
func (f *fakeChat) SetModel(m string) { f.model = m }
func (f *fakeChat) Reset()            { f.resets++ }

type fakePreparer struct {
	outcome *deps.Outcome
	err     error
	calls   []string
}

func (p *fakePreparer) Prepare(_ context.Context, artifact, _ string) (*deps.Outcome, error) {
	p.calls = append(p.calls, artifact)
	if p.outcome == nil {
		return &deps.Outcome{}, p.err
	}
	return p.outcome, p.err
}

type testSession struct {
	*session
	out  *bytes.Buffer
	chat *fakeChat
	prep *fakePreparer
	runs []string
}

func newTestSession(t *testing.T, input string, replies ...string) *testSession {
	t.Helper()
	ts := &testSession{
		out:  &bytes.Buffer{},
		chat: &fakeChat{replies: replies, model: "deepseek-chat"},
		prep: &fakePreparer{},
	}
	ts.session = &session{
		in:             bufio.NewReader(strings.NewReader(input)),
		out:            ts.out,
		conv:           ts.chat,
		ws:             workspace.New(filepath.Join(t.TempDir(), "代码工具库"), nil),
		deps:           ts.prep,
		prompter:       prompt.NilPrompter{},
		errCtx:         &errmsg.ErrorContext{Provider: "deepseek", EnvVar: "DEEPSEEK_API_KEY"},
		chatModel:      "deepseek-chat",
		reasoningModel: "deepseek-reasoner",
	}
	ts.run = func(_ context.Context, path string) (int, error) {
		ts.runs = append(ts.runs, path)
		return 0, nil
	}
	return ts
}

const helloReply = "Here it is.\n```python\n『hello』.py\n# deps: none\nprint('hi')\n```\n"

func TestParseRequest(t *testing.T) {
	tests := []struct {
		in      string
		text    string
		execute bool
	}{
		{"写一个爬虫", "写一个爬虫", true},
		{"写一个爬虫 -n", "写一个爬虫", false},
		{"write a clock-n", "write a clock", false},
		{"  explain -n  ", "explain", false},
		{"use the -n flag of grep", "use the -n flag of grep", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			text, execute := parseRequest(tt.in)
			if text != tt.text || execute != tt.execute {
				t.Errorf("parseRequest(%q) = %q, %v; want %q, %v", tt.in, text, execute, tt.text, tt.execute)
			}
		})
	}
}

func TestWantsAutoRun(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"写一个计算器", true},
		{"给我一段代码", true},
		{"生成报表", true},
		{"Write a port scanner", true},
		{"show me some CODE", true},
		{"generate a QR image", true},
		{"what is a list comprehension?", false},
		{"解释一下装饰器", false},
	}
	for _, tt := range tests {
		if got := wantsAutoRun(tt.in); got != tt.want {
			t.Errorf("wantsAutoRun(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestReadRequest(t *testing.T) {
	t.Run("short line", func(t *testing.T) {
		ts := newTestSession(t, "  hello  \n")
		got, err := ts.readRequest()
		if err != nil || got != "hello" {
			t.Errorf("readRequest() = %q, %v", got, err)
		}
	})

	t.Run("length counts characters not bytes", func(t *testing.T) {
		ts := newTestSession(t, "写一个简单的计算器程序\nnext\n")
		got, _ := ts.readRequest()
		if got != "写一个简单的计算器程序" {
			t.Errorf("readRequest() = %q", got)
		}
	})

	t.Run("multi-line", func(t *testing.T) {
		ts := newTestSession(t, "please write a script that counts words\nin every file\r\n\nafter\n")
		got, err := ts.readRequest()
		if err != nil {
			t.Fatal(err)
		}
		if got != "please write a script that counts words\nin every file" {
			t.Errorf("readRequest() = %q", got)
		}
		if !strings.Contains(ts.out.String(), "2> ") {
			t.Errorf("expected continuation prompt, got %q", ts.out.String())
		}
		next, _ := ts.readRequest()
		if next != "after" {
			t.Errorf("following request = %q", next)
		}
	})

	t.Run("multi-line ends at eof", func(t *testing.T) {
		ts := newTestSession(t, "please write a script that counts words\nmore")
		got, err := ts.readRequest()
		if err != nil || got != "please write a script that counts words\nmore" {
			t.Errorf("readRequest() = %q, %v", got, err)
		}
	})

	t.Run("eof", func(t *testing.T) {
		ts := newTestSession(t, "")
		if _, err := ts.readRequest(); err == nil {
			t.Error("expected io.EOF")
		}
	})
}

func TestChatAutoRun(t *testing.T) {
	ts := newTestSession(t, "", helloReply)
	ts.handle(context.Background(), "写一个打招呼的脚本")

	want := ts.ws.Path("hello.py")
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("script not saved: %v", err)
	}
	if !strings.Contains(string(data), "print('hi')") {
		t.Errorf("saved content = %q", data)
	}
	if len(ts.prep.calls) != 1 || ts.prep.calls[0] != want {
		t.Errorf("Prepare calls = %v, want [%s]", ts.prep.calls, want)
	}
	if len(ts.runs) != 1 || ts.runs[0] != want {
		t.Errorf("runs = %v", ts.runs)
	}
}

func TestChatGenerateOnly(t *testing.T) {
	ts := newTestSession(t, "", helloReply)
	ts.handle(context.Background(), "写一个打招呼的脚本 -n")

	if ts.chat.sent[0] != "写一个打招呼的脚本" {
		t.Errorf("sent %q", ts.chat.sent[0])
	}
	if _, err := os.Stat(ts.ws.Path("hello.py")); err != nil {
		t.Errorf("script not saved: %v", err)
	}
	if len(ts.prep.calls) != 1 {
		t.Errorf("dependencies should still be installed, got %v", ts.prep.calls)
	}
	if len(ts.runs) != 0 {
		t.Errorf("script was run: %v", ts.runs)
	}
}

func TestChatWithoutKeywordWaitsForRun(t *testing.T) {
	ts := newTestSession(t, "", helloReply)
	ctx := context.Background()

	ts.handle(ctx, "how do I greet someone in python?")
	if names, _ := ts.ws.List(); len(names) != 0 {
		t.Fatalf("nothing should be saved yet, got %v", names)
	}
	if !strings.Contains(ts.out.String(), "Code detected") {
		t.Errorf("missing hint in %q", ts.out.String())
	}

	ts.handle(ctx, "run")
	if len(ts.runs) != 1 || filepath.Base(ts.runs[0]) != "hello.py" {
		t.Errorf("runs = %v", ts.runs)
	}
}

func TestSaveOnly(t *testing.T) {
	ts := newTestSession(t, "", helloReply)
	ctx := context.Background()

	ts.handle(ctx, "s")
	if !strings.Contains(ts.out.String(), "No code yet") {
		t.Errorf("output = %q", ts.out.String())
	}

	ts.handle(ctx, "greet me")
	ts.handle(ctx, "s")
	if names, _ := ts.ws.List(); len(names) != 1 || names[0] != "hello.py" {
		t.Errorf("saved = %v", names)
	}
	if len(ts.runs) != 0 || len(ts.prep.calls) != 0 {
		t.Errorf("s must only save, got runs %v prepare %v", ts.runs, ts.prep.calls)
	}
}

func TestNoCodeInReply(t *testing.T) {
	ts := newTestSession(t, "", "A list holds values in order.")
	ts.handle(context.Background(), "写一段说明")
	if len(ts.prep.calls) != 0 || len(ts.runs) != 0 {
		t.Errorf("nothing should happen without code: prep=%v runs=%v", ts.prep.calls, ts.runs)
	}
	if ts.last != nil {
		t.Error("last code should stay unset")
	}
}

func TestMissingDepsNotRunWhenDeclined(t *testing.T) {
	ts := newTestSession(t, "", helloReply)
	ts.prep.outcome = &deps.Outcome{Pending: scanner.MustParseRequirements("requests")}
	ts.handle(context.Background(), "写脚本")
	if len(ts.runs) != 0 {
		t.Errorf("runs = %v", ts.runs)
	}

	ts2 := newTestSession(t, "", helloReply)
	ts2.prompter = prompt.AutoApprovePrompter{}
	ts2.prep.outcome = &deps.Outcome{Pending: scanner.MustParseRequirements("requests")}
	ts2.handle(context.Background(), "写脚本")
	if len(ts2.runs) != 1 {
		t.Errorf("approved run did not happen: %v", ts2.runs)
	}
}

func TestSystemDepsNeverRun(t *testing.T) {
	ts := newTestSession(t, "", helloReply)
	ts.prompter = prompt.AutoApprovePrompter{}
	ts.prep.outcome = &deps.Outcome{NeedsSystemDeps: true}
	ts.handle(context.Background(), "写脚本")
	if len(ts.runs) != 0 {
		t.Errorf("runs = %v", ts.runs)
	}
}

func TestChatErrors(t *testing.T) {
	ts := newTestSession(t, "")
	ts.chat.err = &llm.APIError{Provider: "deepseek", StatusCode: 401, Err: errors.New("invalid key")}
	ts.handle(context.Background(), "写脚本")
	if !strings.Contains(ts.out.String(), "rejected the key") || !strings.Contains(ts.out.String(), "DEEPSEEK_API_KEY") {
		t.Errorf("output = %q", ts.out.String())
	}

	ts = newTestSession(t, "")
	ts.chat.err = errors.New("giving up after 3 attempts: boom")
	ts.handle(context.Background(), "写脚本")
	if !strings.Contains(ts.out.String(), "Request failed") {
		t.Errorf("output = %q", ts.out.String())
	}
}

func TestModelSwitch(t *testing.T) {
	ts := newTestSession(t, "")
	ctx := context.Background()

	ts.handle(ctx, "r")
	if ts.chat.model != "deepseek-reasoner" {
		t.Errorf("model = %q after r", ts.chat.model)
	}
	ts.handle(ctx, "c")
	if ts.chat.model != "deepseek-chat" {
		t.Errorf("model = %q after c", ts.chat.model)
	}

	ts.reasoningModel = ""
	ts.handle(ctx, "r")
	if ts.chat.model != "deepseek-chat" {
		t.Errorf("model changed without a reasoning model: %q", ts.chat.model)
	}
	if !strings.Contains(ts.out.String(), "no reasoning model") {
		t.Errorf("output = %q", ts.out.String())
	}
}

func TestClearResetsConversation(t *testing.T) {
	ts := newTestSession(t, "")
	ts.handle(context.Background(), "cl")
	if ts.chat.resets != 1 {
		t.Errorf("resets = %d", ts.chat.resets)
	}
	if !strings.Contains(ts.out.String(), "Memory cleared") {
		t.Errorf("output = %q", ts.out.String())
	}
}

func TestListAndRun(t *testing.T) {
	ts := newTestSession(t, "9\nabc\n2\n")
	for _, n := range []string{"b", "a"} {
		if _, err := ts.ws.Save("print(1)", n); err != nil {
			t.Fatal(err)
		}
	}

	ts.handle(context.Background(), "ls")

	out := ts.out.String()
	if !strings.Contains(out, "1. a.py") || !strings.Contains(out, "2. b.py") {
		t.Errorf("listing = %q", out)
	}
	if strings.Count(out, "Enter a number between 1 and 2") != 2 {
		t.Errorf("expected two rejections, got %q", out)
	}
	if len(ts.runs) != 1 || ts.runs[0] != ts.ws.Path("b.py") {
		t.Errorf("runs = %v", ts.runs)
	}
	if len(ts.prep.calls) != 1 {
		t.Errorf("dependencies were not checked before running")
	}
}

func TestListEmptyAndBack(t *testing.T) {
	ts := newTestSession(t, "\n")
	ts.handle(context.Background(), "ls")
	if !strings.Contains(ts.out.String(), "No scripts") {
		t.Errorf("output = %q", ts.out.String())
	}

	if _, err := ts.ws.Save("x = 1", "a"); err != nil {
		t.Fatal(err)
	}
	ts.handle(context.Background(), "ls")
	if len(ts.runs) != 0 {
		t.Errorf("Enter should go back, got runs %v", ts.runs)
	}
}

func TestLoop(t *testing.T) {
	ts := newTestSession(t, "h\n\nq\nnever read\n")
	if err := ts.loop(context.Background()); err != nil {
		t.Fatalf("loop() error: %v", err)
	}
	if !strings.Contains(ts.out.String(), "switch to the reasoning model") {
		t.Errorf("help not shown: %q", ts.out.String())
	}
	if len(ts.chat.sent) != 0 {
		t.Errorf("commands must not reach the model: %v", ts.chat.sent)
	}

	ts = newTestSession(t, "h\n")
	if err := ts.loop(context.Background()); err != nil {
		t.Fatalf("loop() at EOF: %v", err)
	}
}

func TestStreamPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &streamPrinter{out: &buf}
	p.write(llm.Delta{Reasoning: "let me "})
	p.write(llm.Delta{Reasoning: "think"})
	p.write(llm.Delta{Content: "answer"})
	p.finish()

	want := "\nAI: \n(thinking)\nlet me think\n(done thinking)\n\nanswer\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	p = &streamPrinter{out: &buf}
	p.write(llm.Delta{Reasoning: "only thoughts"})
	p.finish()
	if !strings.HasSuffix(buf.String(), "(done thinking)\n") {
		t.Errorf("reasoning not closed: %q", buf.String())
	}
}
