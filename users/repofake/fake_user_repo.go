package fakeuserrepo

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/connectin-session/internal/errors"
	"github.com/jrsteele09/connectin-session/users"
)

var _ users.AccountRepo = (*FakeAccountRepo)(nil)

type FakeAccountRepo struct {
	accounts    map[string]*users.Account
	usernameIDs map[string]string // username to account id
	lock        sync.RWMutex
}

func NewFakeAccountRepo() users.AccountRepo {
	return &FakeAccountRepo{
		accounts:    make(map[string]*users.Account),
		usernameIDs: make(map[string]string),
	}
}

func (ar *FakeAccountRepo) Upsert(account *users.Account) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	ar.accounts[account.ID] = account
	ar.usernameIDs[account.Username] = account.ID
	return nil
}

func (ar *FakeAccountRepo) GetByUsername(username string) (*users.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	id, ok := ar.usernameIDs[username]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return ar.accounts[id], nil
}

func (ar *FakeAccountRepo) GetByID(ID string) (*users.Account, error) {
	ar.lock.RLock()
	defer ar.lock.RUnlock()

	account, ok := ar.accounts[ID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return account, nil
}

func (ar *FakeAccountRepo) SetBlocked(username string, blocked bool) error {
	ar.lock.Lock()
	defer ar.lock.Unlock()

	id, ok := ar.usernameIDs[username]
	if !ok {
		return errors.ErrNotFound
	}
	ar.accounts[id].Blocked = blocked
	return nil
}
