// Package bundle appends the editor front end to the pagelayer binary as a
// zip archive, so a single file can serve the whole editor.
//
// Layout: binary | zip | offset (8) | size (8) | magic (8), little endian.
package bundle

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

const (
	Magic      = "PGLAYER1"
	FooterSize = 24
)

// ErrNotBundled is returned when a binary carries no front end.
var ErrNotBundled = errors.New("binary is not bundled")

// editor backups and lock files
var ignored = regexp.MustCompile(`^(|.*/)((#|\.#)[^/]*|[^/]*~)$`)

type footer struct {
	Offset int64
	Size   int64
	Magic  [8]byte
}

func readFooter(f *os.File) (footer, int64, bool, error) {
	var ft footer
	info, err := f.Stat()
	if err != nil {
		return ft, 0, false, err
	}
	size := info.Size()
	if size < FooterSize {
		return ft, size, false, nil
	}
	if _, err := f.Seek(size-FooterSize, io.SeekStart); err != nil {
		return ft, size, false, err
	}
	if err := binary.Read(f, binary.LittleEndian, &ft); err != nil {
		return ft, size, false, nil
	}
	ok := string(ft.Magic[:]) == Magic && ft.Offset >= 0 && ft.Offset+ft.Size+FooterSize == size
	return ft, size, ok, nil
}

// Create writes to out a copy of binPath carrying siteDir. An existing
// bundle in binPath is replaced.
func Create(binPath, siteDir, out string) error {
	src, err := os.Open(binPath)
	if err != nil {
		return err
	}
	defer src.Close()
	ft, size, bundled, err := readFooter(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", binPath, err)
	}
	if bundled {
		size = ft.Offset
	}

	var archive bytes.Buffer
	zw := zip.NewWriter(&archive)
	if err := addDir(zw, siteDir); err != nil {
		zw.Close()
		return fmt.Errorf("archive %s: %w", siteDir, err)
	}
	if err := zw.Close(); err != nil {
		return err
	}

	dst, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	defer dst.Close()
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.CopyN(dst, src, size); err != nil {
		return fmt.Errorf("copy binary: %w", err)
	}
	if _, err := dst.Write(archive.Bytes()); err != nil {
		return err
	}
	ft = footer{Offset: size, Size: int64(archive.Len())}
	copy(ft.Magic[:], Magic)
	if err := binary.Write(dst, binary.LittleEndian, ft); err != nil {
		return err
	}
	return dst.Close()
}

// addDir stores regular files under dir, with slash separated names.
func addDir(zw *zip.Writer, dir string) error {
	return filepath.WalkDir(dir, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if e.IsDir() || !e.Type().IsRegular() || ignored.MatchString(name) {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
}

// Open returns the front end carried by the binary at binPath, or
// ErrNotBundled.
func Open(binPath string) (fs.FS, error) {
	f, err := os.Open(binPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ft, _, ok, err := readFooter(f)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotBundled
	}
	data := make([]byte, ft.Size)
	if _, err := f.ReadAt(data, ft.Offset); err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), ft.Size)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	return zr, nil
}

// Self returns the front end carried by the running executable.
func Self() (fs.FS, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return Open(exe)
}
