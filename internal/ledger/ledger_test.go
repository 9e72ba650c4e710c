package ledger

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/tsukumogami/aigene/internal/log"
	"github.com/tsukumogami/aigene/internal/scanner"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l := New(filepath.Join(t.TempDir(), "pending_dependencies.json"), log.NewNoop())
	l.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return l
}

func reqs(specs ...string) []scanner.Requirement {
	return scanner.MustParseRequirements(specs...)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	want := reqs("requests", "numpy==1.26.4", "rich")
	if err := l.Save(ctx, "/home/u/代码工具库/tool.py", want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rec, err := l.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rec == nil {
		t.Fatal("Load() = nil after Save")
	}
	if rec.ArtifactPath != "/home/u/代码工具库/tool.py" {
		t.Errorf("ArtifactPath = %q", rec.ArtifactPath)
	}
	if !reflect.DeepEqual(rec.Requirements, want) {
		t.Errorf("Requirements = %v, want %v", rec.Requirements, want)
	}
	if !rec.CreatedAt.Equal(l.now()) {
		t.Errorf("CreatedAt = %v", rec.CreatedAt)
	}
}

func TestLoadMissing(t *testing.T) {
	rec, err := newTestLedger(t).Load(context.Background())
	if err != nil || rec != nil {
		t.Fatalf("Load() = %v, %v; want nil, nil", rec, err)
	}
}

func TestShrink(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	if err := l.Save(ctx, "a.py", reqs("a", "b==2", "c")); err != nil {
		t.Fatal(err)
	}

	// Input order does not matter; recorded order is kept.
	rec, err := l.Shrink(ctx, reqs("c", "b"))
	if err != nil {
		t.Fatalf("Shrink() error = %v", err)
	}
	want := reqs("b==2", "c")
	if !reflect.DeepEqual(rec.Requirements, want) {
		t.Errorf("Shrink() = %v, want %v", rec.Requirements, want)
	}

	loaded, _ := l.Load(ctx)
	if loaded == nil || !reflect.DeepEqual(loaded.Requirements, want) {
		t.Errorf("Load() after Shrink = %+v, want %v", loaded, want)
	}
}

func TestShrinkToEmptyClears(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	if err := l.Save(ctx, "a.py", reqs("a")); err != nil {
		t.Fatal(err)
	}

	rec, err := l.Shrink(ctx, nil)
	if err != nil {
		t.Fatalf("Shrink() error = %v", err)
	}
	if rec != nil {
		t.Errorf("Shrink(nil) = %+v, want nil", rec)
	}
	if rec, _ := l.Load(ctx); rec != nil {
		t.Errorf("Load() after Shrink(nil) = %+v, want nil", rec)
	}
	if _, err := os.Stat(l.Path()); !os.IsNotExist(err) {
		t.Errorf("record file still present: %v", err)
	}
}

func TestShrinkWithoutRecord(t *testing.T) {
	rec, err := newTestLedger(t).Shrink(context.Background(), reqs("a"))
	if err != nil || rec != nil {
		t.Fatalf("Shrink() = %v, %v; want nil, nil", rec, err)
	}
}

func TestLoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"whitespace", "  \n"},
		{"truncated", `{"artifact_path": "a.py", "requirements": ["req`},
		{"wrong shape", `["a", "b"]`},
		{"null", "null"},
		{"missing artifact", `{"requirements": ["a"]}`},
		{"no requirements", `{"artifact_path": "a.py", "requirements": []}`},
		{"bad requirement", `{"artifact_path": "a.py", "requirements": ["a>=1"]}`},
		{"wrong field type", `{"artifact_path": 7, "requirements": ["a"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t)
			if err := os.WriteFile(l.Path(), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			rec, err := l.Load(context.Background())
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if rec != nil {
				t.Errorf("Load() = %+v, want nil", rec)
			}
			if _, err := os.Stat(l.Path()); !os.IsNotExist(err) {
				t.Error("corrupt record was not removed")
			}
		})
	}
}

func TestSaveReplacesOtherArtifact(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	if err := l.Save(ctx, "first.py", reqs("a")); err != nil {
		t.Fatal(err)
	}
	if err := l.Save(ctx, "second.py", reqs("b")); err != nil {
		t.Fatal(err)
	}

	rec, _ := l.Load(ctx)
	if rec == nil || rec.ArtifactPath != "second.py" {
		t.Fatalf("Load() = %+v, want record for second.py", rec)
	}
	if !reflect.DeepEqual(rec.Requirements, reqs("b")) {
		t.Errorf("Requirements = %v", rec.Requirements)
	}
}

func TestSaveEmptyClears(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	if err := l.Save(ctx, "a.py", reqs("a")); err != nil {
		t.Fatal(err)
	}
	if err := l.Save(ctx, "a.py", nil); err != nil {
		t.Fatal(err)
	}
	if rec, _ := l.Load(ctx); rec != nil {
		t.Errorf("Load() = %+v, want nil", rec)
	}
}

func TestClearIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	for i := 0; i < 2; i++ {
		if err := l.Clear(ctx); err != nil {
			t.Fatalf("Clear() #%d error = %v", i+1, err)
		}
	}
}

func TestLoadHonoursCancelledContext(t *testing.T) {
	l := newTestLedger(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The lock is free, so a cancelled context still succeeds on the first try.
	if _, err := l.Load(ctx); err != nil {
		t.Errorf("Load() error = %v", err)
	}
}
