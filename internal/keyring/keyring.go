package keyring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/rocky/internal/constants"
)

var (
	// ErrNotFound is returned when no credentials are found in the keyring
	ErrNotFound = errors.New("credentials not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// Account names the secret slot for one storage backend. The default slot
// holds a single connection string used by whichever backend needs one.
type Account string

const (
	AccountDefault  Account = constants.DefaultKeyringUser
	AccountPostgres Account = "postgres"
	AccountRedis    Account = "redis"
)

// AccountFor picks the keyring slot for a storage DSN scheme.
func AccountFor(dsn string) Account {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return AccountPostgres
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return AccountRedis
	default:
		return AccountDefault
	}
}

// Get retrieves the connection string stored for account.
// Returns ErrNotFound if no credentials are stored.
func Get(account Account) (string, error) {
	secret, err := keyring.Get(constants.AppName, string(account))
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return secret, nil
}

// Set stores the connection string for account.
func Set(account Account, secret string) error {
	if strings.TrimSpace(secret) == "" {
		return errors.New("connection string cannot be empty")
	}
	if err := keyring.Set(constants.AppName, string(account), secret); err != nil {
		return fmt.Errorf("failed to store credentials in keyring: %w", err)
	}
	return nil
}

// Delete removes the connection string stored for account.
func Delete(account Account) error {
	if err := keyring.Delete(constants.AppName, string(account)); err != nil {
		if err == keyring.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete credentials from keyring: %w", err)
	}
	return nil
}

// Lookup returns the secret for the DSN's backend, falling back to the
// default slot. Found is false when neither slot holds anything.
func Lookup(dsn string) (secret string, found bool, err error) {
	for _, account := range []Account{AccountFor(dsn), AccountDefault} {
		secret, err := Get(account)
		if err == nil {
			return secret, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", false, err
		}
	}
	return "", false, nil
}

// IsAvailable checks if the OS keyring is available on the current system.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || err == keyring.ErrNotFound
}
