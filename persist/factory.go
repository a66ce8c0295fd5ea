package persist

import "fmt"

// NewStore creates a Store for the configured backend type.
func NewStore(cfg Config) (Store, error) {
	switch cfg.Type {
	case StoreTypeMemory, "":
		return NewMemoryStore(), nil
	case StoreTypeFile:
		return NewFileStore(cfg.BaseDir)
	case StoreTypeRedis:
		return NewRedisStore(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
