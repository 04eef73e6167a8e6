package encryption

import (
	"fmt"

	"harbor-go/internal/config"
)

// NewFromConfig creates an Encryptor based on the encryption config
// type. A nil Encryptor with a nil error means encryption is disabled.
func NewFromConfig(cfg config.EncryptionConfig) (Encryptor, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "age":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("public_key_path and private_key_path required for age encryption")
		}
		return NewAgeEncryptor(cfg), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %s", cfg.Type)
	}
}
