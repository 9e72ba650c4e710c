package proc

import (
	"bufio"
	"context"
	"errors"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

type collector struct {
	mu    sync.Mutex
	lines map[Stream][]string
}

func (c *collector) add(s Stream, line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lines == nil {
		c.lines = make(map[Stream][]string)
	}
	c.lines[s] = append(c.lines[s], line)
}

func TestExecRunnerStreams(t *testing.T) {
	requireShell(t)

	var c collector
	r := &ExecRunner{}
	code, err := r.Run(context.Background(), Command{
		Path: "/bin/sh",
		Args: []string{"-c", "echo out1; echo err1 >&2; printf 'p1\\rp2\\n'; exit 3"},
	}, c.add)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if want := []string{"out1", "p1", "p2"}; !reflect.DeepEqual(c.lines[Stdout], want) {
		t.Errorf("stdout = %v, want %v", c.lines[Stdout], want)
	}
	if want := []string{"err1"}; !reflect.DeepEqual(c.lines[Stderr], want) {
		t.Errorf("stderr = %v, want %v", c.lines[Stderr], want)
	}
}

func TestExecRunnerLargeOutputDoesNotDeadlock(t *testing.T) {
	requireShell(t)

	var mu sync.Mutex
	n := 0
	r := &ExecRunner{}
	// Enough on both streams to fill an OS pipe buffer several times.
	script := "i=0; while [ $i -lt 20000 ]; do echo line-$i; echo err-$i >&2; i=$((i+1)); done"
	code, err := r.Run(context.Background(), Command{Path: "/bin/sh", Args: []string{"-c", script}}, func(Stream, string) {
		mu.Lock()
		n++
		mu.Unlock()
	})
	if err != nil || code != 0 {
		t.Fatalf("Run() = %d, %v", code, err)
	}
	if n != 40000 {
		t.Errorf("got %d lines, want 40000", n)
	}
}

func TestExecRunnerTimeoutKills(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	code, err := (&ExecRunner{WaitDelay: 500 * time.Millisecond}).Run(ctx, Command{Path: "/bin/sh", Args: []string{"-c", "sleep 30"}}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run() error = %v, want deadline exceeded", err)
	}
	if code != -1 {
		t.Errorf("exit code = %d, want -1", code)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run() took %v after timeout", elapsed)
	}
}

func TestExecRunnerSpawnError(t *testing.T) {
	code, err := (&ExecRunner{}).Run(context.Background(), Command{Path: "/nonexistent/aigene-test-binary"}, nil)
	if err == nil {
		t.Fatal("expected spawn error")
	}
	if code != -1 {
		t.Errorf("exit code = %d, want -1", code)
	}
}

func TestCapture(t *testing.T) {
	requireShell(t)

	code, out, err := Capture(context.Background(), &ExecRunner{}, Command{Path: "/bin/sh", Args: []string{"-c", "echo hello"}})
	if err != nil || code != 0 {
		t.Fatalf("Capture() = %d, %v", code, err)
	}
	if strings.TrimSpace(out) != "hello" {
		t.Errorf("output = %q", out)
	}
}

func TestScanLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a\nb\n", []string{"a", "b"}},
		{"a\r\nb", []string{"a", "b"}},
		{"10%\r20%\r100%\n", []string{"10%", "20%", "100%"}},
		{"trailing\r", []string{"trailing"}},
		{"\n\n", []string{"", ""}},
	}
	for _, tt := range tests {
		sc := bufio.NewScanner(strings.NewReader(tt.in))
		sc.Split(scanLines)
		var got []string
		for sc.Scan() {
			got = append(got, sc.Text())
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("scanLines(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFilterEnv(t *testing.T) {
	env := []string{"PATH=/bin", "PIP_USER=1", "PIP_USERX=2", "HOME=/h"}
	got := FilterEnv(env, "PIP_USER")
	want := []string{"PATH=/bin", "PIP_USERX=2", "HOME=/h"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FilterEnv() = %v, want %v", got, want)
	}
}
