package selfupdate

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	lzip "github.com/sorairolake/lzip-go"
	"github.com/ulikunitz/xz"
)

// Archive formats a bundle may use.
const (
	FormatZip    = "zip"
	FormatTar    = "tar"
	FormatTarGz  = "tar.gz"
	FormatTarXz  = "tar.xz"
	FormatTarBz2 = "tar.bz2"
	FormatTarZst = "tar.zst"
	FormatTarLz  = "tar.lz"
)

var magics = []struct {
	format string
	offset int
	magic  []byte
}{
	{FormatZip, 0, []byte("PK\x03\x04")},
	{FormatZip, 0, []byte("PK\x05\x06")},
	{FormatTarGz, 0, []byte{0x1f, 0x8b}},
	{FormatTarXz, 0, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}},
	{FormatTarBz2, 0, []byte("BZh")},
	{FormatTarZst, 0, []byte{0x28, 0xb5, 0x2f, 0xfd}},
	{FormatTarLz, 0, []byte("LZIP")},
	{FormatTar, 257, []byte("ustar")},
}

// DetectFormat identifies a bundle by its leading bytes.
func DetectFormat(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("failed to read bundle header: %w", err)
	}
	head = head[:n]

	for _, m := range magics {
		end := m.offset + len(m.magic)
		if len(head) >= end && bytes.Equal(head[m.offset:end], m.magic) {
			return m.format, nil
		}
	}
	return "", fmt.Errorf("unrecognized bundle format")
}

// Extract unpacks the archive at path into dest. Entries that would land
// outside dest, and symlinks pointing outside it, are rejected.
func Extract(path, dest, format string) error {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("failed to create extraction directory: %w", err)
	}
	if format == FormatZip {
		return extractZip(path, dest)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open bundle: %w", err)
	}
	defer f.Close()

	var r io.Reader
	switch format {
	case FormatTar:
		r = f
	case FormatTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	case FormatTarXz:
		if r, err = xz.NewReader(f); err != nil {
			return fmt.Errorf("failed to create xz reader: %w", err)
		}
	case FormatTarBz2:
		r = bzip2.NewReader(f)
	case FormatTarZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	case FormatTarLz:
		if r, err = lzip.NewReader(f); err != nil {
			return fmt.Errorf("failed to create lzip reader: %w", err)
		}
	default:
		return fmt.Errorf("unsupported bundle format: %q", format)
	}
	return extractTar(tar.NewReader(r), dest)
}

// within reports whether target is dest or below it.
func within(target, dest string) bool {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return false
	}
	return absTarget == absDest || strings.HasPrefix(absTarget, absDest+string(os.PathSeparator))
}

// entryPath maps an archive entry name to its place under dest.
func entryPath(name, dest string) (string, error) {
	name = strings.TrimPrefix(strings.ReplaceAll(name, `\`, "/"), "./")
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return "", fmt.Errorf("archive entry has an absolute path: %s", name)
	}
	target := filepath.Join(dest, filepath.FromSlash(name))
	if !within(target, dest) {
		return "", fmt.Errorf("archive entry escapes destination directory: %s", name)
	}
	return target, nil
}

func checkSymlink(linkTarget, location, dest string) error {
	if filepath.IsAbs(linkTarget) || strings.HasPrefix(linkTarget, "/") {
		return fmt.Errorf("absolute symlink target not allowed: %s -> %s", location, linkTarget)
	}
	resolved := filepath.Join(filepath.Dir(location), linkTarget)
	if !within(resolved, dest) {
		return fmt.Errorf("symlink escapes destination directory: %s -> %s", location, linkTarget)
	}
	return nil
}

func extractTar(tr *tar.Reader, dest string) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar header: %w", err)
		}
		if hdr.Name == "./" || hdr.Name == "." {
			continue
		}

		target, err := entryPath(hdr.Name, dest)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := checkSymlink(hdr.Linkname, target, dest); err != nil {
				return err
			}
			if err := makeSymlink(hdr.Linkname, target); err != nil {
				return err
			}
		default:
			// Hard links, devices and FIFOs have no place in a bundle.
		}
	}
}

func extractZip(path, dest string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		target, err := entryPath(f.Name, dest)
		if err != nil {
			return err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case mode&os.ModeSymlink != 0:
			link, err := readZipEntry(f, 4096)
			if err != nil {
				return err
			}
			if err := checkSymlink(string(link), target, dest); err != nil {
				return err
			}
			if err := makeSymlink(string(link), target); err != nil {
				return err
			}
		default:
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("failed to open %s in zip: %w", f.Name, err)
			}
			perm := mode.Perm()
			if perm == 0 {
				perm = 0644
			}
			err = writeFile(target, rc, perm)
			rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func readZipEntry(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s in zip: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, limit))
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0200)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return out.Close()
}

func makeSymlink(linkTarget, location string) error {
	if err := os.MkdirAll(filepath.Dir(location), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	tmp := location + ".tmp"
	os.Remove(tmp)
	if err := os.Symlink(linkTarget, tmp); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}
	if err := os.Rename(tmp, location); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to create symlink: %w", err)
	}
	return nil
}

// bundleRoot returns the directory holding the bundle's files. An archive
// whose only entry is a directory, as branch archives are, is unwrapped.
func bundleRoot(extracted string) (string, error) {
	entries, err := os.ReadDir(extracted)
	if err != nil {
		return "", err
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(extracted, entries[0].Name()), nil
	}
	return extracted, nil
}
