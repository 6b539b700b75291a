package encryption

import (
	"fmt"

	"sysync/internal/config"
	"sysync/internal/sysync"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration
// type. Type "none" returns nil: archives are stored unencrypted.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (sysync.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
