package tokenstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// DefaultFileName is the file FileStore writes inside its folder
const DefaultFileName = "session.json"

// FileStore keeps the pair as a JSON object keyed by AccessTokenKey and
// RefreshTokenKey. The file is written with 0600 permissions via rename.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store writing DefaultFileName inside folder
func NewFileStore(folder string) *FileStore {
	return &FileStore{path: filepath.Join(folder, DefaultFileName)}
}

// Path returns the backing file location
func (fs *FileStore) Path() string {
	return fs.path
}

func (fs *FileStore) Load(_ context.Context) (Pair, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return Pair{}, nil
	}
	if err != nil {
		return Pair{}, errors.Wrap(err, "FileStore.Load ReadFile")
	}

	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return Pair{}, errors.Wrap(err, "FileStore.Load Unmarshal")
	}
	return Pair{
		AccessToken:  values[AccessTokenKey],
		RefreshToken: values[RefreshTokenKey],
	}, nil
}

func (fs *FileStore) Save(_ context.Context, pair Pair) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.Marshal(map[string]string{
		AccessTokenKey:  pair.AccessToken,
		RefreshTokenKey: pair.RefreshToken,
	})
	if err != nil {
		return errors.Wrap(err, "FileStore.Save Marshal")
	}

	if err := os.MkdirAll(filepath.Dir(fs.path), 0o700); err != nil {
		return errors.Wrap(err, "FileStore.Save MkdirAll")
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), ".session-*")
	if err != nil {
		return errors.Wrap(err, "FileStore.Save CreateTemp")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "FileStore.Save Write")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "FileStore.Save Close")
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return errors.Wrap(err, "FileStore.Save Chmod")
	}
	if err := os.Rename(tmp.Name(), fs.path); err != nil {
		return errors.Wrap(err, "FileStore.Save Rename")
	}
	return nil
}

func (fs *FileStore) Clear(_ context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "FileStore.Clear Remove")
	}
	return nil
}
