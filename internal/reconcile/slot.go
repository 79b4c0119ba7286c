package reconcile

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Slot is one named, durable value. Read returns (nil, nil) when nothing was written.
type Slot interface {
	Read() ([]byte, error)
	Write(b []byte) error
	Delete() error
}

type MemorySlot struct {
	mu sync.Mutex
	b  []byte
}

func NewMemorySlot() *MemorySlot { return &MemorySlot{} }

func (s *MemorySlot) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.b == nil {
		return nil, nil
	}
	return append([]byte(nil), s.b...), nil
}

func (s *MemorySlot) Write(b []byte) error {
	s.mu.Lock()
	s.b = append([]byte(nil), b...)
	s.mu.Unlock()
	return nil
}

func (s *MemorySlot) Delete() error {
	s.mu.Lock()
	s.b = nil
	s.mu.Unlock()
	return nil
}

// FileSlot keeps the value in a single file readable only by the owner.
type FileSlot struct {
	Path string
}

// HomeSlot returns a FileSlot for ~/.<name>.json.
func HomeSlot(name string) (*FileSlot, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &FileSlot{Path: filepath.Join(home, "."+name+".json")}, nil
}

func (s *FileSlot) Read() ([]byte, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return b, err
}

// Write replaces the file through a rename so a crash never leaves half a value.
func (s *FileSlot) Write(b []byte) error {
	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path)
}

func (s *FileSlot) Delete() error {
	err := os.Remove(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
