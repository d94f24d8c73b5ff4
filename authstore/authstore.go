// Package authstore resolves IMAP credentials for an account, preferring
// the platform keyring and falling back to a plaintext config value only
// when explicitly permitted.
package authstore

import (
	"fmt"

	"github.com/99designs/keyring"

	"github.com/trojita/goimap-engine/config"
)

const serviceName = "goimap-engine"

// Resolve returns the password for account's login, consulting the
// platform keyring first. If no keyring entry exists and cfg allows
// plaintext credentials, cfg.PlaintextPassword is used instead; otherwise
// Resolve fails rather than silently proceeding unauthenticated.
func Resolve(cfg *config.Config, account string) (username, password string, err error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
	})
	if err == nil {
		item, gerr := ring.Get(account)
		if gerr == nil {
			return account, string(item.Data), nil
		}
		if gerr != keyring.ErrKeyNotFound {
			if !cfg.AllowPlaintextAuth {
				return "", "", fmt.Errorf("authstore: keyring lookup for %q: %w", account, gerr)
			}
		}
	} else if !cfg.AllowPlaintextAuth {
		return "", "", fmt.Errorf("authstore: opening keyring: %w", err)
	}

	if cfg.AllowPlaintextAuth && cfg.PlaintextPassword != "" {
		return account, cfg.PlaintextPassword, nil
	}
	return "", "", fmt.Errorf("authstore: no credentials for %q", account)
}

// Store writes account's password into the platform keyring.
func Store(account, password string) error {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
	})
	if err != nil {
		return fmt.Errorf("authstore: opening keyring: %w", err)
	}
	return ring.Set(keyring.Item{
		Key:  account,
		Data: []byte(password),
	})
}

// Forget removes account's stored password, if any.
func Forget(account string) error {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
	})
	if err != nil {
		return fmt.Errorf("authstore: opening keyring: %w", err)
	}
	err = ring.Remove(account)
	if err != nil && err != keyring.ErrKeyNotFound {
		return err
	}
	return nil
}
