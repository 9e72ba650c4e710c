package functional

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// aCleanAigeneEnvironment is a no-op because the Before hook already sets up
// the environment. This step exists so feature files read naturally.
func aCleanAigeneEnvironment(ctx context.Context) (context.Context, error) {
	return ctx, nil
}

func theEnvironmentVariableIs(ctx context.Context, name, value string) (context.Context, error) {
	state := getState(ctx)
	state.env = append(state.env, name+"="+value)
	return ctx, nil
}

func theFileContainsDoc(ctx context.Context, path string, doc *godog.DocString) (context.Context, error) {
	state := getState(ctx)
	return ctx, writeHomeFile(state, path, doc.Content+"\n")
}

// pendingDependenciesFor writes a ledger record as an interrupted install
// would have left it.
func pendingDependenciesFor(ctx context.Context, reqs, script string) (context.Context, error) {
	state := getState(ctx)
	var list []string
	for _, r := range strings.Split(reqs, ",") {
		if r = strings.TrimSpace(r); r != "" {
			list = append(list, r)
		}
	}
	rec := map[string]any{
		"artifact_path": filepath.Join(state.homeDir, script),
		"requirements":  list,
		"created_at":    time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return ctx, err
	}
	return ctx, writeHomeFile(state, "pending_dependencies.json", string(data))
}

// aStagedUpdateOf leaves a pending update record for one file, as the
// stager does when the file is in use.
func aStagedUpdateOf(ctx context.Context, path, content string) (context.Context, error) {
	state := getState(ctx)
	staged := filepath.Join(state.homeDir, "temp_update", "extracted")
	if err := writeHomeFile(state, filepath.Join("temp_update", "extracted", path), content); err != nil {
		return ctx, err
	}
	rec := map[string]any{
		"files":       []string{filepath.ToSlash(path)},
		"staging_dir": staged,
		"created_at":  time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return ctx, err
	}
	return ctx, writeHomeFile(state, "pending_update.json", string(data))
}

func writeHomeFile(state *testState, path, content string) error {
	full := filepath.Join(state.homeDir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(content), 0o644)
}

// iRun executes a command string, replacing "aigene" with the test binary path.
func iRun(ctx context.Context, command string) (context.Context, error) {
	state := getState(ctx)
	if state == nil {
		return ctx, fmt.Errorf("no test state; is the Before hook running?")
	}

	args := strings.Fields(command)
	if len(args) > 0 && args[0] == "aigene" {
		args[0] = state.binPath
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = state.homeDir

	// Keep the chat and update servers out of reach
	env := append(os.Environ(),
		"AIGENE_HOME="+state.homeDir,
		"AIGENE_UPDATE_URL=http://127.0.0.1:1",
		"AIGENE_CHECK_TIMEOUT=1s",
	)
	cmd.Env = append(env, state.env...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	state.stdout = stdout.String()
	state.stderr = stderr.String()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		state.exitCode = 0
	case errors.As(err, &exitErr):
		state.exitCode = exitErr.ExitCode()
	default:
		return ctx, fmt.Errorf("command execution failed: %w", err)
	}
	return ctx, nil
}

func theExitCodeIs(ctx context.Context, expected int) error {
	state := getState(ctx)
	if state.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\nstdout: %s\nstderr: %s",
			expected, state.exitCode, state.stdout, state.stderr)
	}
	return nil
}

func theExitCodeIsNot(ctx context.Context, notExpected int) error {
	state := getState(ctx)
	if state.exitCode == notExpected {
		return fmt.Errorf("expected exit code to not be %d\nstdout: %s\nstderr: %s",
			notExpected, state.stdout, state.stderr)
	}
	return nil
}

func theOutputContains(ctx context.Context, text string) error {
	state := getState(ctx)
	if !strings.Contains(state.stdout, text) {
		return fmt.Errorf("expected stdout to contain %q, got:\n%s", text, state.stdout)
	}
	return nil
}

func theOutputDoesNotContain(ctx context.Context, text string) error {
	state := getState(ctx)
	if strings.Contains(state.stdout, text) {
		return fmt.Errorf("expected stdout not to contain %q, got:\n%s", text, state.stdout)
	}
	return nil
}

func theErrorOutputContains(ctx context.Context, text string) error {
	state := getState(ctx)
	if !strings.Contains(state.stderr, text) {
		return fmt.Errorf("expected stderr to contain %q, got:\n%s", text, state.stderr)
	}
	return nil
}

func theJSONFieldIs(ctx context.Context, field, want string) error {
	state := getState(ctx)
	var doc map[string]any
	if err := json.Unmarshal([]byte(state.stdout), &doc); err != nil {
		return fmt.Errorf("stdout is not a JSON object: %v\n%s", err, state.stdout)
	}
	got, ok := doc[field]
	if !ok {
		return fmt.Errorf("field %q missing from %s", field, state.stdout)
	}
	if fmt.Sprint(got) != want {
		return fmt.Errorf("field %q = %v, want %s", field, got, want)
	}
	return nil
}

func theFileExists(ctx context.Context, path string) error {
	state := getState(ctx)
	fullPath := filepath.Join(state.homeDir, path)
	if _, err := os.Lstat(fullPath); os.IsNotExist(err) {
		return fmt.Errorf("expected file %q to exist", fullPath)
	}
	return nil
}

func theFileDoesNotExist(ctx context.Context, path string) error {
	state := getState(ctx)
	fullPath := filepath.Join(state.homeDir, path)
	if _, err := os.Lstat(fullPath); err == nil {
		return fmt.Errorf("expected file %q not to exist", fullPath)
	}
	return nil
}

func theFileHasContent(ctx context.Context, path, want string) error {
	state := getState(ctx)
	data, err := os.ReadFile(filepath.Join(state.homeDir, path))
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(data)) != want {
		return fmt.Errorf("file %q contains %q, want %q", path, data, want)
	}
	return nil
}
