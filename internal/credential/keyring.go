package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "mailscope"

// Well-known credential keys.
const (
	// KeyClientSecret holds the OAuth client secret for the configured
	// provider.
	KeyClientSecret = "oauth-client-secret"
)

// ClientSecret retrieves the stored OAuth client secret. A missing entry
// is reported as an empty string without error, so first-run setup can
// detect it.
func ClientSecret() (string, error) {
	secret, err := Get(KeyClientSecret)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", nil
		}
		return "", err
	}
	return secret, nil
}

// SetClientSecret stores the OAuth client secret.
func SetClientSecret(secret string) error {
	return Set(KeyClientSecret, secret)
}

// DeleteClientSecret removes the stored OAuth client secret. A missing
// entry is not an error, so switching to a public PKCE client is
// idempotent.
func DeleteClientSecret() error {
	if err := Delete(KeyClientSecret); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailscope/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailscope-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
