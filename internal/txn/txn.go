// Package txn snapshots files and folders before a multi-file edit and puts
// them back byte for byte if the edit fails.
//
// A path that did not exist at capture time is deleted on restore, so a
// state-year folder created during a failed operation disappears with it.
// Folders are captured recursively, including empty sub-folders and file
// permissions.
//
// Callers use the scoped form:
//
//	tx, err := txn.Begin(paths...)
//	if err != nil {
//		return err
//	}
//	defer tx.Abort()
//	... edit files ...
//	tx.Commit()
//
// Abort after Commit is a no-op, so the deferred call only restores when
// the function unwinds early.
package txn

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/strata/internal/errs"
)

// entry is the captured state of one path.
type entry struct {
	path    string
	existed bool
	isDir   bool
	mode    fs.FileMode
	data    []byte
	dirs    []dirItem
	files   []fileItem
}

type dirItem struct {
	rel  string
	mode fs.FileMode
}

type fileItem struct {
	rel  string
	mode fs.FileMode
	data []byte
}

// Snapshot holds the captured bytes of a set of paths.
type Snapshot struct {
	entries []*entry
}

// Capture records the current content of every path, or that it is absent.
// Duplicate paths are captured once.
func Capture(paths ...string) (*Snapshot, error) {
	s := &Snapshot{}
	seen := map[string]bool{}
	for _, p := range paths {
		p = filepath.Clean(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		e, err := capture(p)
		if err != nil {
			return nil, err
		}
		s.entries = append(s.entries, e)
	}
	return s, nil
}

// Paths returns the captured paths in capture order.
func (s *Snapshot) Paths() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.path
	}
	return out
}

func capture(path string) (*entry, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &entry{path: path}, nil
	}
	if err != nil {
		return nil, errs.IO("stat", path, err)
	}

	e := &entry{path: path, existed: true, isDir: info.IsDir(), mode: info.Mode().Perm()}
	if !e.isDir {
		e.data, err = os.ReadFile(path)
		if err != nil {
			return nil, errs.IO("snapshot", path, err)
		}
		return e, nil
	}

	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return errs.IO("snapshot", p, werr)
		}
		if p == path {
			return nil
		}
		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return errs.IO("stat", p, err)
		}
		if d.IsDir() {
			e.dirs = append(e.dirs, dirItem{rel: rel, mode: info.Mode().Perm()})
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return errs.IO("snapshot", p, err)
		}
		e.files = append(e.files, fileItem{rel: rel, mode: info.Mode().Perm(), data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Restore puts every captured path back. It keeps going after a failure so
// that as much as possible is restored, and returns every failure joined.
func (s *Snapshot) Restore() error {
	var failures []error
	for i := len(s.entries) - 1; i >= 0; i-- {
		if err := s.entries[i].restore(); err != nil {
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}

func (e *entry) restore() error {
	if err := os.RemoveAll(e.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errs.IO("remove", e.path, err)
	}
	if !e.existed {
		return nil
	}
	if !e.isDir {
		if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
			return errs.IO("create folder for", e.path, err)
		}
		if err := os.WriteFile(e.path, e.data, e.mode); err != nil {
			return errs.IO("restore", e.path, err)
		}
		return nil
	}

	if err := os.MkdirAll(e.path, e.mode); err != nil {
		return errs.IO("restore", e.path, err)
	}
	// parents sort before children
	sort.Slice(e.dirs, func(i, j int) bool { return e.dirs[i].rel < e.dirs[j].rel })
	for _, d := range e.dirs {
		target := filepath.Join(e.path, d.rel)
		if err := os.MkdirAll(target, d.mode); err != nil {
			return errs.IO("restore", target, err)
		}
	}
	for _, f := range e.files {
		target := filepath.Join(e.path, f.rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return errs.IO("restore", target, err)
		}
		if err := os.WriteFile(target, f.data, f.mode); err != nil {
			return errs.IO("restore", target, err)
		}
	}
	return nil
}

// Tx is a scoped snapshot whose only exits are Commit and Abort.
type Tx struct {
	snap *Snapshot
	done bool
	// OnRestoreError is called when Abort fails to restore a path.
	OnRestoreError func(error)
}

// Begin captures paths and returns an open transaction.
func Begin(paths ...string) (*Tx, error) {
	snap, err := Capture(paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot: %w", err)
	}
	return &Tx{snap: snap}, nil
}

// Snapshot returns the captured state.
func (tx *Tx) Snapshot() *Snapshot { return tx.snap }

// Done reports whether the transaction was committed or aborted.
func (tx *Tx) Done() bool { return tx.done }

// Commit keeps every change made since Begin.
func (tx *Tx) Commit() {
	tx.done = true
}

// Abort restores every captured path. It is a no-op once the transaction
// has been committed or aborted.
func (tx *Tx) Abort() error {
	if tx.done {
		return nil
	}
	tx.done = true
	err := tx.snap.Restore()
	if err != nil && tx.OnRestoreError != nil {
		tx.OnRestoreError(err)
	}
	return err
}
