// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Raglane Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/zalando/go-keyring"

	raglerr "github.com/raglane-dev/raglane/pkg/errors"
)

// keysIndexSuffix is appended to the service name to form the key under
// which the JSON index of stored key names is kept. go-keyring does not
// support key enumeration, so List relies on this index.
const keysIndexSuffix = "::keys-index"

// KeyringStore implements Store using the OS keyring via zalando/go-keyring.
// On macOS it uses Keychain, on Linux secret-service (D-Bus), and on Windows
// the Credential Manager.
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) Store(service, key, value string) error {
	if service == "" {
		return raglerr.New(raglerr.CodeSecretInvalidInput, "secret store: service must not be empty")
	}
	if key == "" {
		return raglerr.New(raglerr.CodeSecretInvalidInput, "secret store: key must not be empty")
	}

	if err := keyring.Set(service, key, value); err != nil {
		return raglerr.Wrapf(err, raglerr.CodeSecretBackendFailure, "storing secret %s/%s", service, key)
	}

	return s.addToIndex(service, key)
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if service == "" {
		return "", raglerr.New(raglerr.CodeSecretInvalidInput, "secret retrieve: service must not be empty")
	}
	if key == "" {
		return "", raglerr.New(raglerr.CodeSecretInvalidInput, "secret retrieve: key must not be empty")
	}

	val, err := keyring.Get(service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", raglerr.Errorf(raglerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return "", raglerr.Wrapf(err, raglerr.CodeSecretBackendFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if service == "" {
		return raglerr.New(raglerr.CodeSecretInvalidInput, "secret delete: service must not be empty")
	}
	if key == "" {
		return raglerr.New(raglerr.CodeSecretInvalidInput, "secret delete: key must not be empty")
	}

	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return raglerr.Errorf(raglerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return raglerr.Wrapf(err, raglerr.CodeSecretBackendFailure, "deleting secret %s/%s", service, key)
	}

	return s.removeFromIndex(service, key)
}

func (s *KeyringStore) List(service string) ([]string, error) {
	return s.loadIndex(service)
}

func (s *KeyringStore) loadIndex(service string) ([]string, error) {
	indexKey := service + keysIndexSuffix
	raw, err := keyring.Get(service, indexKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, raglerr.Wrapf(err, raglerr.CodeSecretBackendFailure, "loading key index for service %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, raglerr.Wrapf(err, raglerr.CodeSecretBackendFailure, "decoding key index for service %s", service)
	}

	return keys, nil
}

func (s *KeyringStore) saveIndex(service string, keys []string) error {
	indexKey := service + keysIndexSuffix

	if len(keys) == 0 {
		if delErr := keyring.Delete(service, indexKey); delErr != nil {
			slog.Debug("failed to clean up empty key index", "service", service, "error", delErr)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return raglerr.Wrapf(err, raglerr.CodeSecretBackendFailure, "encoding key index for service %s", service)
	}

	if err := keyring.Set(service, indexKey, string(data)); err != nil {
		return raglerr.Wrapf(err, raglerr.CodeSecretBackendFailure, "saving key index for service %s", service)
	}

	return nil
}

// addToIndex adds a key to the service's key index (idempotent).
func (s *KeyringStore) addToIndex(service, key string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}

	for _, k := range keys {
		if k == key {
			return nil
		}
	}

	return s.saveIndex(service, append(keys, key))
}

// removeFromIndex removes a key from the service's key index.
func (s *KeyringStore) removeFromIndex(service, key string) error {
	keys, err := s.loadIndex(service)
	if err != nil {
		return err
	}

	filtered := keys[:0]
	for _, k := range keys {
		if k != key {
			filtered = append(filtered, k)
		}
	}

	return s.saveIndex(service, filtered)
}
