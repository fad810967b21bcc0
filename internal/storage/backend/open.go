// Package backend selects and constructs a storage.Provider from a DSN.
package backend

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/julianstephens/rocky/internal/backup"
	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/keyring"
	"github.com/julianstephens/rocky/internal/lockfile"
	"github.com/julianstephens/rocky/internal/storage"
	"github.com/julianstephens/rocky/internal/storage/httpstore"
	"github.com/julianstephens/rocky/internal/storage/jsonfile"
	"github.com/julianstephens/rocky/internal/storage/postgres"
	"github.com/julianstephens/rocky/internal/storage/redisstore"
	"github.com/julianstephens/rocky/internal/storage/sqlite"
)

// KeyringDSN reads the full connection string from the OS keyring.
const KeyringDSN = "keyring"

var lookupSecret = keyring.Lookup

type Options struct {
	// ConfigDir holds the server lockfile and relative data files.
	ConfigDir string
	// RedisKey overrides the default document key.
	RedisKey string
	// KeepBackups bounds JSON file backups; zero keeps the default.
	KeepBackups int
}

// Resolve returns the DSN to open. ROCKY_DB_CONNECTION wins over the
// configured value and the keyword "keyring" reads it from the OS keyring.
// Trusted DSNs come from a secret store and may carry a password.
func Resolve(dsn string) (resolved string, trusted bool, err error) {
	if env := strings.TrimSpace(os.Getenv(constants.EnvDBConnection)); env != "" {
		return env, true, nil
	}
	if strings.TrimSpace(dsn) != KeyringDSN {
		return strings.TrimSpace(dsn), false, nil
	}
	secret, found, err := lookupSecret(dsn)
	if err != nil {
		return "", false, err
	}
	if !found {
		return "", false, fmt.Errorf("no connection string stored in keyring, run '%s keyring set' first", constants.AppName)
	}
	return secret, true, nil
}

// Open resolves dsn and builds the matching provider. The provider is not
// initialized.
func Open(dsn string, opts Options) (storage.Provider, error) {
	resolved, trusted, err := Resolve(dsn)
	if err != nil {
		return nil, err
	}
	if resolved == "" {
		resolved = filepath.Join(opts.ConfigDir, constants.DefaultDataFile)
	}

	switch storage.DetectKind(resolved) {
	case storage.KindPostgres:
		if !trusted {
			if err := postgres.ValidateConnString(resolved); err != nil {
				if errors.Is(err, postgres.ErrEmbeddedCredentials) {
					return nil, fmt.Errorf("%w; store the DSN with '%s keyring set' or %s instead", err, constants.AppName, constants.EnvDBConnection)
				}
				return nil, err
			}
		}
		return postgres.New(resolved), nil

	case storage.KindRedis:
		key := opts.RedisKey
		if key == "" {
			key = constants.DefaultRedisKey
		}
		return redisstore.Open(resolved, key)

	case storage.KindHTTP:
		if strings.EqualFold(resolved, storage.ServerDSN) {
			return httpstore.Discover(lockfile.Path(opts.ConfigDir)), nil
		}
		return httpstore.New(resolved), nil

	case storage.KindSQLite:
		path, err := localPath(strings.TrimPrefix(resolved, "sqlite://"), opts.ConfigDir)
		if err != nil {
			return nil, err
		}
		return sqlite.NewStore(path), nil

	default:
		path, err := localPath(resolved, opts.ConfigDir)
		if err != nil {
			return nil, err
		}
		var backupOpts []backup.Option
		if opts.KeepBackups > 0 {
			backupOpts = append(backupOpts, backup.WithKeep(opts.KeepBackups))
		}
		return jsonfile.New(path, backupOpts...), nil
	}
}

func localPath(path, configDir string) (string, error) {
	expanded, err := storage.ExpandPath(path)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(expanded) && configDir != "" && !strings.ContainsRune(expanded, filepath.Separator) {
		return filepath.Join(configDir, expanded), nil
	}
	return expanded, nil
}
