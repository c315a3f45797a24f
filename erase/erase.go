// Package erase overwrites files before removing them.
//
// Each regular file is overwritten in place for a configurable number of
// passes, cycling through [Patterns], and flushed to stable storage after
// every pass before it is unlinked. Directories are processed depth first and
// removed once empty. Symlinks and other special entries are unlinked without
// following them.
//
// Overwriting in place does not defeat copy-on-write filesystems, SSD wear
// levelling or snapshots. It removes the plain-text copy from the blocks the
// file currently occupies.
package erase

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// BlockSize is the size of each overwrite write.
const BlockSize = 4096

// Patterns are the fill bytes used by successive passes. Pass i writes
// Patterns[i%len(Patterns)].
var Patterns = [...]byte{0x00, 0xFF, 0xAA, 0x55}

var (
	// ErrInvalidPasses is returned when the pass count is less than one.
	ErrInvalidPasses = errors.New("pass count must be at least 1")

	// ErrReplaced is returned when the path no longer names the file that
	// was overwritten. The file now at the path is left alone.
	ErrReplaced = errors.New("path was replaced during erase")
)

// EraseError records a failed erase step.
type EraseError struct {
	Path string // path being erased
	Op   string // "validate", "stat", "open", "lock", "overwrite", "sync", "readdir", "verify" or "remove"
	Err  error  // underlying error
}

// Error returns a human-readable description of the failure.
func (e *EraseError) Error() string {
	return fmt.Sprintf("erase %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *EraseError) Unwrap() error {
	return e.Err
}

// Eraser overwrites and removes files and directory trees.
type Eraser struct {
	passes   int
	logger   *slog.Logger
	onErased func(path string, size int64)

	// afterPass runs after each pass has been synced, with the file still open.
	afterPass func(path string, pass int) error
}

// Option configures an [Eraser].
type Option func(*Eraser)

// WithLogger sets an optional [*slog.Logger]. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Eraser) { e.logger = logger }
}

// WithOnErased registers fn to be called after each regular file is removed,
// with its path and the number of bytes overwritten per pass.
func WithOnErased(fn func(path string, size int64)) Option {
	return func(e *Eraser) { e.onErased = fn }
}

// New creates an Eraser that overwrites each file passes times.
// The pass count is checked by [Eraser.Erase].
func New(passes int, opts ...Option) *Eraser {
	e := &Eraser{passes: passes}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Path erases path with the default options.
func Path(path string, passes int) error {
	return New(passes).Erase(path)
}

// Erase overwrites and removes path. A directory is emptied depth first and
// then removed; the first failure stops the walk and leaves the directory in
// place.
func (e *Eraser) Erase(path string) error {
	if e.passes < 1 {
		return &EraseError{Path: path, Op: "validate", Err: fmt.Errorf("%w: got %d", ErrInvalidPasses, e.passes)}
	}

	return e.erase(path)
}

func (e *Eraser) erase(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return &EraseError{Path: path, Op: "stat", Err: err}
	}

	switch {
	case info.IsDir():
		return e.eraseDir(path)
	case info.Mode().IsRegular():
		return e.eraseFile(path)
	default:
		e.logDebug("unlinking special entry", "path", path, "mode", info.Mode().String())
		if err := os.Remove(path); err != nil {
			return &EraseError{Path: path, Op: "remove", Err: err}
		}

		return nil
	}
}

func (e *Eraser) eraseDir(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		return &EraseError{Path: path, Op: "readdir", Err: err}
	}

	for _, entry := range entries {
		if err := e.erase(filepath.Join(path, entry.Name())); err != nil {
			return err
		}
	}

	if err := os.Remove(path); err != nil {
		return &EraseError{Path: path, Op: "remove", Err: err}
	}
	e.logDebug("directory removed", "path", path, "entries", len(entries))

	return nil
}

func (e *Eraser) eraseFile(path string) error {
	f, err := openExclusive(path)
	if err != nil {
		return err
	}

	closed := false
	defer func() {
		if !closed {
			_ = f.Close()
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return &EraseError{Path: path, Op: "stat", Err: err}
	}
	if !info.Mode().IsRegular() {
		return &EraseError{Path: path, Op: "open", Err: fmt.Errorf("%w: now %s", ErrReplaced, info.Mode().Type())}
	}

	size := info.Size()
	block := make([]byte, BlockSize)

	for pass := range e.passes {
		if err := overwrite(f, block, Patterns[pass%len(Patterns)], size); err != nil {
			return &EraseError{Path: path, Op: "overwrite", Err: err}
		}
		if err := f.Sync(); err != nil {
			return &EraseError{Path: path, Op: "sync", Err: err}
		}
		if e.afterPass != nil {
			if err := e.afterPass(path, pass); err != nil {
				return &EraseError{Path: path, Op: "overwrite", Err: err}
			}
		}
	}

	current, err := os.Lstat(path)
	if err != nil {
		return &EraseError{Path: path, Op: "verify", Err: err}
	}
	if !os.SameFile(info, current) {
		return &EraseError{Path: path, Op: "verify", Err: ErrReplaced}
	}

	if !removeWhileOpen {
		closed = true
		if err := f.Close(); err != nil {
			return &EraseError{Path: path, Op: "remove", Err: err}
		}
	}
	if err := os.Remove(path); err != nil {
		return &EraseError{Path: path, Op: "remove", Err: err}
	}

	e.logDebug("file erased", "path", path, "size", size, "passes", e.passes)
	if e.onErased != nil {
		e.onErased(path, size)
	}

	return nil
}

// overwrite fills the first size bytes of f with pattern.
func overwrite(f *os.File, block []byte, pattern byte, size int64) error {
	for i := range block {
		block[i] = pattern
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	for remaining := size; remaining > 0; {
		n := min(remaining, int64(len(block)))
		if _, err := f.Write(block[:n]); err != nil {
			return err
		}
		remaining -= n
	}

	return nil
}

func (e *Eraser) logDebug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
