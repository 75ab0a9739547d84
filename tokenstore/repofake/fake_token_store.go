package tokenstorefake

import (
	"context"
	"sync"

	"github.com/jrsteele09/connectin-session/tokenstore"
)

var _ tokenstore.Store = (*FakeStore)(nil)

// FakeStore is an in-memory Store. LoadErr, SaveErr and ClearErr are
// returned by the matching calls when set.
type FakeStore struct {
	values map[string]string
	lock   sync.RWMutex

	LoadErr  error
	SaveErr  error
	ClearErr error
}

func NewFakeStore() *FakeStore {
	return &FakeStore{values: make(map[string]string)}
}

// NewFakeStoreWith returns a FakeStore already holding pair
func NewFakeStoreWith(pair tokenstore.Pair) *FakeStore {
	fs := NewFakeStore()
	fs.put(pair)
	return fs
}

func (fs *FakeStore) Load(_ context.Context) (tokenstore.Pair, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	if fs.LoadErr != nil {
		return tokenstore.Pair{}, fs.LoadErr
	}
	return tokenstore.Pair{
		AccessToken:  fs.values[tokenstore.AccessTokenKey],
		RefreshToken: fs.values[tokenstore.RefreshTokenKey],
	}, nil
}

func (fs *FakeStore) Save(_ context.Context, pair tokenstore.Pair) error {
	if fs.SaveErr != nil {
		return fs.SaveErr
	}
	fs.put(pair)
	return nil
}

func (fs *FakeStore) Clear(_ context.Context) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	if fs.ClearErr != nil {
		return fs.ClearErr
	}
	delete(fs.values, tokenstore.AccessTokenKey)
	delete(fs.values, tokenstore.RefreshTokenKey)
	return nil
}

// Has reports whether key currently holds a value
func (fs *FakeStore) Has(key string) bool {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	_, ok := fs.values[key]
	return ok
}

func (fs *FakeStore) put(pair tokenstore.Pair) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.values[tokenstore.AccessTokenKey] = pair.AccessToken
	fs.values[tokenstore.RefreshTokenKey] = pair.RefreshToken
}
