// Package writer puts rendered documents on disk. Writes are validated up
// front, land atomically through a temporary file and rename, and can be
// reported instead of performed for dry runs.
package writer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultFileMode is used when a WriteFileOp leaves Mode unset.
const DefaultFileMode fs.FileMode = 0644

// Operation is a file system change that can be checked before it runs.
//
// Validate checks the operation would succeed without performing it.
// Execute performs it and should only be called after Validate succeeds.
// Description returns a human-readable line such as "Write out/index.rst (234 bytes)".
type Operation interface {
	Validate(ctx context.Context) error
	Execute(ctx context.Context) error
	Description() string
}

// Reverter is implemented by operations that can undo a completed Execute.
type Reverter interface {
	Revert() error
}

// WriteFileOp writes Content to Path, replacing any existing file.
//
// Validation behavior:
//   - Rejects nil content (empty content is fine)
//   - Rejects a Path that names an existing directory
//   - Does not touch the file system
//
// Execution behavior:
//   - Creates parent directories if needed
//   - Writes to a temporary file in the target directory, then renames it
//     over Path, so readers never observe a partial document
//   - Remembers the previous content so Revert can restore it
type WriteFileOp struct {
	Path    string      // File path to write
	Content []byte      // File content (can be empty, must not be nil)
	Mode    fs.FileMode // File permissions, DefaultFileMode when zero

	executed bool
	previous []byte
	existed  bool
}

func (op *WriteFileOp) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if op.Path == "" {
		return errors.New("output path is empty")
	}
	if op.Content == nil {
		return fmt.Errorf("content is nil for file: %s", op.Path)
	}
	info, err := os.Stat(op.Path)
	if err == nil && info.IsDir() {
		return fmt.Errorf("output path is a directory: %s", op.Path)
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cannot stat %s: %w", op.Path, err)
	}
	return nil
}

func (op *WriteFileOp) Execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(op.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	prev, err := os.ReadFile(op.Path)
	switch {
	case err == nil:
		op.previous, op.existed = prev, true
	case errors.Is(err, fs.ErrNotExist):
		op.previous, op.existed = nil, false
	default:
		return fmt.Errorf("failed to read existing file %s: %w", op.Path, err)
	}

	if err := writeAtomic(op.Path, op.Content, op.mode()); err != nil {
		return err
	}
	op.executed = true
	return nil
}

// Revert restores the file to what it was before Execute. It is a no-op
// when Execute never completed.
func (op *WriteFileOp) Revert() error {
	if !op.executed {
		return nil
	}
	op.executed = false
	if op.existed {
		return writeAtomic(op.Path, op.previous, op.mode())
	}
	if err := os.Remove(op.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (op *WriteFileOp) Description() string {
	return fmt.Sprintf("Write %s (%d bytes)", op.Path, len(op.Content))
}

func (op *WriteFileOp) mode() fs.FileMode {
	if op.Mode == 0 {
		return DefaultFileMode
	}
	return op.Mode
}

// writeAtomic writes content next to path and renames it into place.
func writeAtomic(path string, content []byte, mode fs.FileMode) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name()) // Best effort
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync file %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("failed to set mode on %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move file into place %s: %w", path, err)
	}
	return nil
}
