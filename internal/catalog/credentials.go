package catalog

import (
	"errors"
	"fmt"

	"github.com/z0nyx/Akidzuki-CLI/internal/crypto"
	"github.com/z0nyx/Akidzuki-CLI/internal/database"
	"gorm.io/gorm"
)

const secretPrefix = "secret:"

// CredentialStore keeps per-profile passwords encrypted in the settings
// table. Keys are the profile's name@host.
type CredentialStore struct{}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{}
}

// Get returns the stored secret for key, or "" when none is stored.
func (s *CredentialStore) Get(key string) (string, error) {
	enc, err := database.GetSetting(secretPrefix + key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load secret: %w", err)
	}
	plain, err := crypto.Decrypt(enc)
	if err != nil {
		return "", fmt.Errorf("decrypt secret for %s: %w", key, err)
	}
	return plain, nil
}

// Set stores secret under key. An empty secret deletes the entry.
func (s *CredentialStore) Set(key, secret string) error {
	if secret == "" {
		return s.Delete(key)
	}
	enc, err := crypto.Encrypt(secret)
	if err != nil {
		return err
	}
	if err := database.SetSetting(secretPrefix+key, enc); err != nil {
		return fmt.Errorf("save secret: %w", err)
	}
	return nil
}

func (s *CredentialStore) Delete(key string) error {
	if err := database.DeleteSetting(secretPrefix + key); err != nil {
		return fmt.Errorf("delete secret: %w", err)
	}
	return nil
}

// Rekey moves a secret when a profile is renamed or re-pointed.
func (s *CredentialStore) Rekey(oldKey, newKey string) error {
	if oldKey == newKey {
		return nil
	}
	secret, err := s.Get(oldKey)
	if err != nil || secret == "" {
		return err
	}
	if err := s.Set(newKey, secret); err != nil {
		return err
	}
	return s.Delete(oldKey)
}
