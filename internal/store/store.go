// Package store persists the observation graph as a Turtle file. The whole
// graph is loaded into memory, mutated, and written back in one piece. A
// sidecar lock file serializes condawatch processes that touch the same
// store.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/triple"
	"github.com/LISSConsulting/LISSTech.CondaWatch/internal/turtle"
)

// LockMode selects how Open locks the store.
type LockMode int

const (
	LockNone      LockMode = iota // no locking
	LockShared                    // readers
	LockExclusive                 // the load-mutate-persist section of a recording
)

func (m LockMode) String() string {
	switch m {
	case LockShared:
		return "shared"
	case LockExclusive:
		return "exclusive"
	}
	return "none"
}

// File is a Turtle store on disk. Create it with Open and release it with
// Close; the lock, if any, is held in between.
type File struct {
	Path string

	lock *os.File
}

// Open prepares the store at path, creating its directory if needed, and
// acquires the requested lock on path + ".lock". The call blocks until the
// lock is available.
func Open(path string, mode LockMode) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("store: mkdir %q: %w", filepath.Dir(path), err)
	}
	f := &File{Path: path}
	if mode == LockNone {
		return f, nil
	}

	lockPath := path + ".lock"
	lf, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("store: open lock %q: %w", lockPath, err)
	}
	if err := lockFile(lf, mode); err != nil {
		_ = lf.Close()
		return nil, fmt.Errorf("store: lock %q: %w", lockPath, err)
	}
	f.lock = lf
	logrus.WithFields(logrus.Fields{"path": path, "mode": mode}).Debug("store locked")
	return f, nil
}

// Close releases the lock. It is safe to call more than once.
func (f *File) Close() error {
	if f.lock == nil {
		return nil
	}
	lf := f.lock
	f.lock = nil
	unlockErr := unlockFile(lf)
	closeErr := lf.Close()
	if err := errors.Join(unlockErr, closeErr); err != nil {
		return fmt.Errorf("store: unlock: %w", err)
	}
	return nil
}

// Load reads the store. A missing file yields an empty graph. A file that
// does not parse is an error wrapping *turtle.ParseError; the file is left
// untouched so that history is never silently discarded.
func (f *File) Load() (*triple.Graph, error) {
	r, err := os.Open(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return triple.NewGraph(), nil
		}
		return nil, fmt.Errorf("store: open %q: %w", f.Path, err)
	}
	defer r.Close()

	g, err := turtle.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("store: parse %q: %w", f.Path, err)
	}
	logrus.WithFields(logrus.Fields{"path": f.Path, "triples": g.Len()}).Debug("store loaded")
	return g, nil
}

// Save writes g to the store. It writes a temporary file in the same
// directory and renames it into place, so readers never observe a partially
// written store.
func (f *File) Save(g *triple.Graph) error {
	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp: %w", err)
	}
	if writeErr := turtle.Write(tmp, g); writeErr != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store: write: %w", writeErr)
	}
	if syncErr := tmp.Sync(); syncErr != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store: sync: %w", syncErr)
	}
	if closeErr := tmp.Close(); closeErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: close temp: %w", closeErr)
	}
	if chmodErr := os.Chmod(tmp.Name(), 0644); chmodErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: chmod: %w", chmodErr)
	}
	if renameErr := os.Rename(tmp.Name(), f.Path); renameErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: finalize: %w", renameErr)
	}
	logrus.WithFields(logrus.Fields{"path": f.Path, "triples": g.Len()}).Debug("store saved")
	return nil
}
