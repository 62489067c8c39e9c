package service

import (
	"path/filepath"

	"github.com/lshigami/testcert/config"
	"github.com/spf13/afero"
)

type FileStore interface {
	Write(path string, data []byte) (string, error)
	Read(path string) ([]byte, error)
}

type fileStore struct {
	fs afero.Fs
}

// NewFileStore roots all paths under CERTIFICATE_STORAGE_DIR.
func NewFileStore(cfg *config.Config) FileStore {
	return NewFileStoreWithFs(afero.NewBasePathFs(afero.NewOsFs(), cfg.Certificate.StorageDir))
}

func NewFileStoreWithFs(fs afero.Fs) FileStore {
	return &fileStore{fs: fs}
}

func (f *fileStore) Write(path string, data []byte) (string, error) {
	if err := f.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	// Written beside the target and renamed so an existing document is replaced whole or not at all.
	tmp := path + ".tmp"
	if err := afero.WriteFile(f.fs, tmp, data, 0o644); err != nil {
		_ = f.fs.Remove(tmp)
		return "", err
	}
	if err := f.fs.Rename(tmp, path); err != nil {
		_ = f.fs.Remove(tmp)
		return "", err
	}
	return path, nil
}

func (f *fileStore) Read(path string) ([]byte, error) {
	return afero.ReadFile(f.fs, path)
}
