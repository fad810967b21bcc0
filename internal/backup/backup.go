package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/logger"
)

// ErrNoBackups is returned when no usable backup exists
var ErrNoBackups = errors.New("no usable backups found")

// BackupInfo contains information about a backup file
type BackupInfo struct {
	Path      string
	Timestamp time.Time
	Size      int64
}

// Manager handles backup operations for a JSON document file
type Manager struct {
	dataPath  string
	backupDir string
	keep      int
	interval  time.Duration
	now       func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithKeep sets how many backups survive rotation
func WithKeep(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.keep = n
		}
	}
}

// WithInterval sets the minimum age of the newest backup before a periodic
// backup is taken again
func WithInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.interval = d
	}
}

// WithClock overrides time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a backup manager for dataPath. Backups live in a
// "backups" directory next to it.
func NewManager(dataPath string, opts ...Option) *Manager {
	m := &Manager{
		dataPath:  dataPath,
		backupDir: filepath.Join(filepath.Dir(dataPath), constants.BackupDirName),
		keep:      constants.MaxBackups,
		interval:  constants.BackupInterval,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetBackupDir returns the backup directory path
func (m *Manager) GetBackupDir() string {
	return m.backupDir
}

func (m *Manager) ensureBackupDir() error {
	return os.MkdirAll(m.backupDir, 0700)
}

// CreateBackup copies the current data file into a new backup
func (m *Manager) CreateBackup() (string, error) {
	return m.createBackup(false)
}

func (m *Manager) createBackup(skipRotation bool) (string, error) {
	data, err := os.ReadFile(m.dataPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("data file does not exist: %s", m.dataPath)
		}
		return "", fmt.Errorf("failed to read data file: %w", err)
	}
	return m.write(data, skipRotation)
}

// Snapshot stores data as a new backup. Used for backends that are not a
// plain file on disk.
func (m *Manager) Snapshot(data []byte) (string, error) {
	if !json.Valid(data) {
		return "", errors.New("refusing to back up invalid JSON")
	}
	return m.write(data, false)
}

func (m *Manager) write(data []byte, skipRotation bool) (string, error) {
	if err := m.ensureBackupDir(); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	path, err := m.nextPath()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	if !skipRotation {
		if err := m.rotateBackups(); err != nil {
			logger.Warn("Failed to rotate old backups", "error", err)
		}
	}
	return path, nil
}

// nextPath names the backup after the current epoch second, adding a
// counter on collision.
func (m *Manager) nextPath() (string, error) {
	stamp := strconv.FormatInt(m.now().Unix(), 10)
	path := filepath.Join(m.backupDir, constants.BackupFilePrefix+stamp+constants.BackupFileSuffix)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
		if counter > 100 {
			return "", fmt.Errorf("failed to generate unique backup filename")
		}
		path = filepath.Join(m.backupDir, fmt.Sprintf("%s%s-%d%s", constants.BackupFilePrefix, stamp, counter, constants.BackupFileSuffix))
	}
}

// EnsurePeriodic backs up the data file unless the newest backup is younger
// than the configured interval. It reports whether a backup was written.
func (m *Manager) EnsurePeriodic() (string, bool, error) {
	if _, err := os.Stat(m.dataPath); os.IsNotExist(err) {
		return "", false, nil
	}
	latest, ok, err := m.Latest()
	if err != nil {
		return "", false, err
	}
	if ok && m.now().Sub(latest.Timestamp) < m.interval {
		return "", false, nil
	}
	path, err := m.CreateBackup()
	if err != nil {
		return "", false, err
	}
	return path, true, nil
}

// ListBackups returns all available backups, newest first
func (m *Manager) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []BackupInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ts, ok := parseBackupName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Path:      filepath.Join(m.backupDir, entry.Name()),
			Timestamp: ts,
			Size:      info.Size(),
		})
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].Timestamp.Equal(backups[j].Timestamp) {
			// Same second: a higher counter suffix is newer.
			if len(backups[i].Path) != len(backups[j].Path) {
				return len(backups[i].Path) > len(backups[j].Path)
			}
			return backups[i].Path > backups[j].Path
		}
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// parseBackupName extracts the timestamp from rocky-<epoch>[-N].json
func parseBackupName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, constants.BackupFilePrefix) || !strings.HasSuffix(name, constants.BackupFileSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, constants.BackupFilePrefix), constants.BackupFileSuffix)
	if i := strings.IndexByte(stamp, '-'); i >= 0 {
		stamp = stamp[:i]
	}
	secs, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}

// Latest returns the newest backup, if any
func (m *Manager) Latest() (BackupInfo, bool, error) {
	backups, err := m.ListBackups()
	if err != nil || len(backups) == 0 {
		return BackupInfo{}, false, err
	}
	return backups[0], true, nil
}

// LatestValid returns the contents of the newest backup that holds valid JSON.
func (m *Manager) LatestValid() ([]byte, BackupInfo, error) {
	backups, err := m.ListBackups()
	if err != nil {
		return nil, BackupInfo{}, err
	}
	for _, b := range backups {
		data, err := ReadBackup(b.Path)
		if err != nil {
			logger.Warn("Skipping unreadable backup", "path", b.Path, "error", err)
			continue
		}
		return data, b, nil
	}
	return nil, BackupInfo{}, ErrNoBackups
}

// ReadBackup reads a backup file and checks that it holds valid JSON
func ReadBackup(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("backup %s is not valid JSON", filepath.Base(path))
	}
	return data, nil
}

func (m *Manager) rotateBackups() error {
	backups, err := m.ListBackups()
	if err != nil {
		return err
	}
	for i := m.keep; i < len(backups); i++ {
		if err := os.Remove(backups[i].Path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", backups[i].Path, err)
		}
	}
	return nil
}

// RestoreBackup replaces the data file with the contents of a backup. The
// current file is backed up first.
func (m *Manager) RestoreBackup(backupPath string) error {
	data, err := ReadBackup(backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("backup file does not exist: %s", backupPath)
		}
		return fmt.Errorf("backup file is corrupted or invalid: %w", err)
	}

	if _, err := os.Stat(m.dataPath); err == nil {
		current, err := m.createBackup(true)
		if err != nil {
			return fmt.Errorf("failed to backup current data before restore: %w", err)
		}
		logger.Info("Backed up current data before restore", "path", current)
	}

	return WriteFileAtomic(m.dataPath, data, 0600)
}

// WriteFileAtomic writes data to a sibling temp file and renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		// Some platforms refuse to rename over an existing file.
		_ = os.Remove(path)
		if err := os.Rename(tmp, path); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}
