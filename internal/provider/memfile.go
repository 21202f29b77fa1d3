package provider

import (
	"os"
	"path/filepath"
	"sync"

	"gpcam/internal/copyutil"
)

// MemFile is a File held entirely in memory. Providers without a native
// file object of their own hand these out.
type MemFile struct {
	mu     sync.Mutex
	name   string
	data   []byte
	closed bool
}

func NewMemFile(name string, data []byte) *MemFile {
	return &MemFile{name: name, data: data}
}

// LoadMemFile reads a local file into a MemFile named after its base name.
func LoadMemFile(path string) (*MemFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Errorf(CodeFileNotFound, "open %s", path)
		}
		return nil, Errorf(CodeOSFailure, "open %s: %v", path, err)
	}
	return NewMemFile(filepath.Base(path), data), nil
}

func (f *MemFile) Name() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.name
}

func (f *MemFile) SetName(name string) error {
	if name == "" {
		return Errorf(CodeBadParameters, "empty file name")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.name = name
	return nil
}

func (f *MemFile) Data() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, Errorf(CodeBadParameters, "file %s is closed", f.name)
	}
	return f.data, nil
}

func (f *MemFile) Save(path string) error {
	data, err := f.Data()
	if err != nil {
		return err
	}
	if err := copyutil.WriteFileAtomic(path, data); err != nil {
		return Errorf(CodeOSFailure, "save %s: %v", path, err)
	}
	return nil
}

func (f *MemFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.data = nil
	return nil
}
