package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Blob is a single persisted document read and written as a whole.
type Blob interface {
	Read() ([]byte, error)
	Write(data []byte) error
}

// File is a Blob backed by a path on disk. Writes go through a temp file
// and rename so a crash never leaves a half-written document.
type File struct {
	Path string
}

func (f File) Read() ([]byte, error) {
	return os.ReadFile(f.Path)
}

func (f File) Write(data []byte) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// IsNotExist reports whether err means the blob has never been written.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// MemBlob is an in-memory Blob.
type MemBlob struct {
	Data    []byte
	ReadErr error
	Writes  int
}

func (m *MemBlob) Read() ([]byte, error) {
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	if m.Data == nil {
		return nil, fs.ErrNotExist
	}
	return append([]byte(nil), m.Data...), nil
}

func (m *MemBlob) Write(data []byte) error {
	m.Data = append([]byte(nil), data...)
	m.Writes++
	return nil
}
