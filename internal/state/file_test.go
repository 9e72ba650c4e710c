package state

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type sample struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func TestWriteAndReadJSON(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "nested", "record.json"))

	if err := f.WriteJSON(sample{Name: "a", Items: []string{"x"}}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	data, err := f.ReadRaw()
	if err != nil {
		t.Fatalf("ReadRaw() error = %v", err)
	}
	if !strings.Contains(string(data), `"name": "a"`) {
		t.Errorf("unexpected content: %s", data)
	}
	if !f.Exists() {
		t.Error("Exists() = false after write")
	}

	entries, _ := os.ReadDir(filepath.Dir(f.Path()))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestReadMissing(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "missing.json"))
	data, err := f.ReadRaw()
	if err != nil || data != nil {
		t.Fatalf("ReadRaw() = %q, %v; want nil, nil", data, err)
	}
	if f.Exists() {
		t.Error("Exists() = true for missing record")
	}
}

func TestRemoveIdempotent(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "record.json"))
	if err := f.WriteRaw([]byte("{}")); err != nil {
		t.Fatal(err)
	}
	if err := f.Remove(); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := f.Remove(); err != nil {
		t.Fatalf("second Remove() error = %v", err)
	}
}

func TestWriteReplacesExisting(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "record.json"))
	if err := f.WriteRaw([]byte("first, and much longer than the second")); err != nil {
		t.Fatal(err)
	}
	if err := f.WriteRaw([]byte("second")); err != nil {
		t.Fatal(err)
	}
	data, _ := f.ReadRaw()
	if string(data) != "second" {
		t.Errorf("content = %q, want %q", data, "second")
	}
}

func TestLockedSerializes(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "counter.json"))
	if err := f.WriteRaw([]byte("0")); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.Locked(context.Background(), func() error {
				data, err := f.ReadRaw()
				if err != nil {
					return err
				}
				return f.WriteRaw(append(data, '+'))
			})
			if err != nil {
				t.Errorf("Locked() error = %v", err)
			}
		}()
	}
	wg.Wait()

	data, _ := f.ReadRaw()
	if got := strings.Count(string(data), "+"); got != 8 {
		t.Errorf("lost updates: %q", data)
	}
}
