package prefs

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the service name parley secrets are filed under.
const DefaultKeyringService = "parley"

// KeyringStore keeps secrets in the operating system keyring
// (Secret Service, Keychain or Credential Manager).
type KeyringStore struct {
	Service string
}

// NewKeyringStore returns a KeyringStore for service, or the default service
// when service is empty.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringStore{Service: service}
}

func (k *KeyringStore) Get(key string) (string, bool, error) {
	v, err := keyring.Get(k.Service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("keyring get %s: %w", key, err)
	}
	return v, true, nil
}

func (k *KeyringStore) Set(key, value string) error {
	if err := keyring.Set(k.Service, key, value); err != nil {
		return fmt.Errorf("keyring set %s: %w", key, err)
	}
	return nil
}

func (k *KeyringStore) Delete(key string) error {
	if err := keyring.Delete(k.Service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %s: %w", key, err)
	}
	return nil
}

// Available reports whether the keyring accepts writes in this session.
func (k *KeyringStore) Available() bool {
	const probe = "__parley_probe__"
	if err := keyring.Set(k.Service, probe, "ok"); err != nil {
		return false
	}
	_ = keyring.Delete(k.Service, probe)
	return true
}
