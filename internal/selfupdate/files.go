package selfupdate

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tsukumogami/aigene/internal/log"
)

// FileFailure is a file that could not be replaced.
type FileFailure struct {
	Path string // relative, forward slashes
	Err  error
}

func (f FileFailure) String() string {
	return fmt.Sprintf("%s: %v", f.Path, f.Err)
}

// copyFile replaces dst with a copy of src. The copy is written next to dst
// and renamed over it, so dst is never left half-written.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.new")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// canonicalPath makes paths comparable: absolute, clean, symlinks resolved
// where the file exists, and case-folded on Windows.
func canonicalPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		abs = filepath.Clean(p)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	} else if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		abs = filepath.Join(dir, filepath.Base(abs))
	}
	if runtime.GOOS == "windows" {
		abs = strings.ToLower(abs)
	}
	return abs
}

// errorLog appends failures to the update error log. The file is only
// created once there is something to write.
type errorLog struct {
	path   string
	logger log.Logger
	closer io.Closer
}

func (e *errorLog) Error(msg string, args ...any) {
	if e == nil || e.path == "" {
		return
	}
	if e.logger == nil {
		l, c, err := log.NewFileLogger(e.path, slog.LevelWarn)
		if err != nil {
			return
		}
		e.logger, e.closer = l, c
	}
	e.logger.Error(msg, args...)
}

func (e *errorLog) Close() {
	if e != nil && e.closer != nil {
		e.closer.Close()
		e.closer = nil
		e.logger = nil
	}
}
