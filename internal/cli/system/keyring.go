package system

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/julianstephens/rocky/internal/cli"
	"github.com/julianstephens/rocky/internal/keyring"
	"github.com/julianstephens/rocky/internal/storage"
	"github.com/julianstephens/rocky/internal/storage/postgres"
)

// KeyringSetCmd stores a storage connection string in the OS keyring
type KeyringSetCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL or Redis connection string to store in keyring"`
}

func (cmd *KeyringSetCmd) Run(ctx *cli.Context) error {
	kind := storage.DetectKind(cmd.ConnectionString)
	switch kind {
	case storage.KindPostgres:
		if err := postgres.ValidateConnString(cmd.ConnectionString); err != nil {
			if !errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return fmt.Errorf("invalid connection string: %w", err)
			}
			// The keyring is encrypted, so a password is acceptable here.
			ctx.Println("⚠️  Warning: Connection string contains embedded credentials.")
			ctx.Println("   It will be stored as-is in the encrypted OS keyring.")
		}
	case storage.KindRedis:
		if _, err := url.Parse(cmd.ConnectionString); err != nil {
			return fmt.Errorf("invalid connection string: %w", err)
		}
	default:
		return errors.New("connection string must be a postgres:// or redis:// URL")
	}

	account := keyring.AccountFor(cmd.ConnectionString)
	if err := keyring.Set(account, cmd.ConnectionString); err != nil {
		return err
	}
	// The default slot is what storage "keyring" reads when no backend is named.
	if err := keyring.Set(keyring.AccountDefault, cmd.ConnectionString); err != nil {
		return err
	}

	ctx.Println("✓ Connection string stored successfully in OS keyring")
	ctx.Println("  Set `storage: keyring` in your config to use it")
	return nil
}

// KeyringGetCmd prints the stored connection string with the password masked
type KeyringGetCmd struct {
	Backend string `help:"Which slot to read: default, postgres or redis." enum:"default,postgres,redis" default:"default"`
}

func (cmd *KeyringGetCmd) Run(ctx *cli.Context) error {
	connStr, err := keyring.Get(accountFor(cmd.Backend))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring. Use 'rocky keyring set' to store one")
		}
		return fmt.Errorf("failed to retrieve connection string from keyring: %w", err)
	}

	ctx.Println("Connection string retrieved from keyring:")
	ctx.Println(maskPassword(connStr))
	return nil
}

// KeyringDeleteCmd removes stored connection strings
type KeyringDeleteCmd struct {
	Backend string `help:"Which slot to delete: default, postgres or redis." enum:"default,postgres,redis" default:"default"`
}

func (cmd *KeyringDeleteCmd) Run(ctx *cli.Context) error {
	if err := keyring.Delete(accountFor(cmd.Backend)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring")
		}
		return err
	}
	ctx.Println("✓ Connection string deleted from OS keyring")
	return nil
}

// KeyringStatusCmd checks the availability of the OS keyring
type KeyringStatusCmd struct{}

func (cmd *KeyringStatusCmd) Run(ctx *cli.Context) error {
	if !keyring.IsAvailable() {
		ctx.Println("❌ OS keyring is not available on this system")
		return errors.New("keyring unavailable")
	}
	ctx.Println("✓ OS keyring is available")
	for _, account := range []keyring.Account{keyring.AccountDefault, keyring.AccountPostgres, keyring.AccountRedis} {
		if _, err := keyring.Get(account); err == nil {
			ctx.Printf("✓ %s: stored\n", account)
		} else {
			ctx.Printf("ℹ %s: not stored\n", account)
		}
	}
	return nil
}

func accountFor(backend string) keyring.Account {
	switch backend {
	case "postgres":
		return keyring.AccountPostgres
	case "redis":
		return keyring.AccountRedis
	default:
		return keyring.AccountDefault
	}
}

// maskPassword hides the password of URL and key=value connection strings.
func maskPassword(connStr string) string {
	if u, err := url.Parse(connStr); err == nil && u.User != nil {
		return u.Redacted()
	}

	if strings.Contains(connStr, "password=") {
		parts := strings.Fields(connStr)
		for i, part := range parts {
			if strings.HasPrefix(part, "password=") {
				parts[i] = "password=xxxxx"
			}
		}
		return strings.Join(parts, " ")
	}
	return connStr
}
