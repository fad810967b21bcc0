package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/julianstephens/rocky/internal/backup"
	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/dates"
	"github.com/julianstephens/rocky/internal/storage"
)

// ServerConfig configures `rocky serve`.
type ServerConfig struct {
	// RateLimit is the number of save requests per second allowed per client.
	RateLimit int `yaml:"rate_limit"`
	// AllowOrigins lists the CORS origins; "*" allows any.
	AllowOrigins []string `yaml:"allow_origins"`
	// BackupCron schedules backups while serving. Empty disables them.
	BackupCron string `yaml:"backup_cron"`
}

// Config is the top-level application configuration.
type Config struct {
	// Storage is the storage DSN: a JSON file path, a .db/.sqlite path,
	// postgres://, redis://, http(s):// or "server". Empty means the default
	// JSON file in the config directory.
	Storage string `yaml:"storage"`

	// RedisKey is the key holding the document on the Redis backend.
	RedisKey string `yaml:"redis_key"`

	// Listen is the save server listen address.
	Listen string `yaml:"listen"`

	// Timezone is the IANA zone used to decide what "today" is.
	Timezone string `yaml:"timezone"`

	// Debug mirrors logs to stderr at debug level.
	Debug bool `yaml:"debug"`

	// KeepBackups is how many JSON backups survive rotation.
	KeepBackups int `yaml:"keep_backups"`

	Server ServerConfig `yaml:"server"`

	// dir is the directory the config file lives in.
	dir string
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Storage:     "",
		RedisKey:    constants.DefaultRedisKey,
		Listen:      constants.DefaultListenAddr,
		Timezone:    constants.DefaultTimezone,
		KeepBackups: constants.MaxBackups,
		Server: ServerConfig{
			RateLimit:    constants.DefaultRateLimit,
			AllowOrigins: []string{"*"},
			BackupCron:   constants.DefaultBackupCron,
		},
	}
}

// Normalize fills in missing or invalid values with defaults so partially
// filled files still behave correctly.
func (c *Config) Normalize() {
	c.Storage = strings.TrimSpace(c.Storage)
	if c.RedisKey == "" {
		c.RedisKey = constants.DefaultRedisKey
	}
	if c.Listen == "" {
		c.Listen = constants.DefaultListenAddr
	}
	if c.Timezone == "" {
		c.Timezone = constants.DefaultTimezone
	}
	if _, err := dates.LoadLocation(c.Timezone); err != nil {
		c.Timezone = constants.DefaultTimezone
	}
	if c.KeepBackups <= 0 {
		c.KeepBackups = constants.MaxBackups
	}
	if c.Server.RateLimit <= 0 {
		c.Server.RateLimit = constants.DefaultRateLimit
	}
	if len(c.Server.AllowOrigins) == 0 {
		c.Server.AllowOrigins = []string{"*"}
	}
}

// Dir returns the directory holding the config file.
func (c *Config) Dir() string {
	return c.dir
}

// DefaultPath returns ~/.config/rocky/config.yaml.
func DefaultPath() (string, error) {
	dir, err := storage.ExpandPath(constants.DefaultConfigDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.ConfigFileName), nil
}

// Load reads the YAML config at path. A missing file is created with the
// defaults. Environment overrides are applied on top.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	path, err := storage.ExpandPath(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.dir = filepath.Dir(path)
	cfg.ApplyEnv()
	cfg.Normalize()
	return cfg, nil
}

// ApplyEnv loads a .env file from the working directory, if present, and
// applies the ROCKY_* overrides.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv(constants.EnvStorage); v != "" {
		c.Storage = v
	}
	if v := os.Getenv(constants.EnvListen); v != "" {
		c.Listen = v
	} else if port := os.Getenv(constants.EnvPort); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 && n < 65536 {
			host, _, err := net.SplitHostPort(c.Listen)
			if err != nil {
				host = "127.0.0.1"
			}
			c.Listen = net.JoinHostPort(host, port)
		}
	}
	if v := os.Getenv(constants.EnvTimezone); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv(constants.EnvDebug); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Debug = b
		}
	}
}

// Save writes cfg to path atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return backup.WriteFileAtomic(path, data, 0o600)
}
