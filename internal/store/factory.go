package store

import (
	"fmt"

	"harbor-go/internal/config"
	"harbor-go/internal/harbor"
)

// NewFromConfig creates a Store implementation based on the storage
// config type.
func NewFromConfig(cfg config.StorageConfig, tables config.TablesConfig) (harbor.Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for sqlite storage")
		}
		return NewSQLite(cfg.Path, Tables{
			Authors:  tables.Authors,
			Posts:    tables.Posts,
			Comments: tables.Comments,
			Runs:     tables.Runs,
		})
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
