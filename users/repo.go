package users

type AccountRepo interface {
	Upsert(account *Account) error
	GetByUsername(username string) (*Account, error)
	GetByID(ID string) (*Account, error)
	SetBlocked(username string, blocked bool) error
}
