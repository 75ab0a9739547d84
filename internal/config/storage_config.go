package config

type StorageConfig interface {
	GetTokenStore() string
	GetDataFolder() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisKeyPrefix() string
}

type Storage struct{}

var _ StorageConfig = Storage{}

// GetTokenStore selects the persisted token store: "file" or "redis"
func (Storage) GetTokenStore() string {
	return GetEnv("TOKEN_STORE", "file")
}

func (Storage) GetDataFolder() string {
	return GetEnv("FOLDER", "./data")
}

func (Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Storage) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Storage) GetRedisKeyPrefix() string {
	return GetEnv("REDIS_KEY_PREFIX", "connectin:")
}
