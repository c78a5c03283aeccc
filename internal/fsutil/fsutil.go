// Package fsutil holds the small filesystem primitives shared by the table
// store, the event log, the materializer and the transaction guard.
package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/roach88/strata/internal/errs"
)

// WriteFileAtomic writes data to a temp file beside path and renames it into
// place, creating parent folders as needed. The temp file never survives a
// failed write.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.IO("create folder for", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return errs.IO("write", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errs.IO("replace", path, err)
	}
	return nil
}

// Exists reports whether path exists. Errors other than "not exist" count
// as existing so callers never treat an unreadable path as absent.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// IsDir reports whether path is an existing directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// CopyTree copies every file under src into dst, creating folders and
// overwriting files that already exist. Files present only in dst are left
// alone.
func CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errs.IO("read", path, err)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errs.IO("create", target, err)
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return CopyFile(path, target)
	})
}

// CopyFile copies one regular file, replacing dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errs.IO("open", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errs.IO("stat", src, err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errs.IO("write", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errs.IO("write", dst, err)
	}
	if err := out.Close(); err != nil {
		return errs.IO("write", dst, err)
	}
	return nil
}
