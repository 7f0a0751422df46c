package applier

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FileSystem abstracts the filesystem operations an Applier needs,
// generalising the teacher's operations.FileSystem interface with an
// atomic-write primitive: WriteFileAtomic never leaves a half-written
// file in place of an existing one.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error
	Remove(path string) error
	MkdirAll(path string, perm os.FileMode) error
	Stat(path string) (os.FileInfo, error)
}

// RealFileSystem implements FileSystem against the OS, in the same
// thin-wrapper shape as the teacher's RealFileSystem.
type RealFileSystem struct{}

// NewRealFileSystem returns a FileSystem backed by actual OS calls.
func NewRealFileSystem() FileSystem {
	return &RealFileSystem{}
}

func (fs *RealFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (fs *RealFileSystem) Remove(path string) error {
	return os.Remove(path)
}

func (fs *RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (fs *RealFileSystem) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// WriteFileAtomic writes data to a process-unique temporary file in the
// same directory as path, then renames it over path. The rename is
// atomic on every platform Go targets, so a reader never observes a
// partially-written file at path.
func (fs *RealFileSystem) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("applier: creating directory %s: %w", dir, err)
	}

	tmpName := filepath.Join(dir, ".unipatch-"+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmpName, data, perm); err != nil {
		return fmt.Errorf("applier: writing temp file %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("applier: renaming %s to %s: %w", tmpName, path, err)
	}
	return nil
}
