package constants

import "time"

const (
	AppName            = "rocky"
	DefaultKeyringUser = "storage-connection"
	DefaultConfigDir   = "~/.config/rocky"
	DefaultDataFile    = "rocky.json"
	ConfigFileName     = "config.yaml"
	Version            = "v0.3.0"

	// DateFormat is the canonical date key layout (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// MinYear is the first year the calendar can display
	MinYear = 2025
	// MinDateKey is the first day that can be flagged as missing an entry
	MinDateKey = "2025-01-01"

	// DocumentVersion is the only document schema version understood
	DocumentVersion = 1

	// Backup constants
	MaxBackups       = 7
	BackupInterval   = 23*time.Hour + 30*time.Minute
	BackupDirName    = "backups"
	BackupFilePrefix = "rocky-"
	BackupFileSuffix = ".json"

	// Save pipeline constants
	SaveDebounce = 500 * time.Millisecond

	// Server constants
	DefaultListenAddr  = "127.0.0.1:8787"
	ServerLockfileName = "rocky-server.lock"
	DefaultBackupCron  = "@daily"
	DefaultRateLimit   = 20
	StorageKey         = "rocky"
	DefaultRedisKey    = "rocky:document"
	DefaultTimezone    = "Local"

	// Environment variables
	EnvStorage      = "ROCKY_STORAGE"
	EnvListen       = "ROCKY_LISTEN"
	EnvDebug        = "ROCKY_DEBUG"
	EnvTimezone     = "ROCKY_TIMEZONE"
	EnvDBConnection = "ROCKY_DB_CONNECTION"
	EnvPort         = "PORT"
)
