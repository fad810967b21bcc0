package backups

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/julianstephens/rocky/internal/backup"
	"github.com/julianstephens/rocky/internal/cli"
	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/storage"
	"github.com/julianstephens/rocky/internal/storage/jsonfile"
	"github.com/julianstephens/rocky/internal/validation"
)

// snapshotDir holds backups for backends that are not a JSON file.
const snapshotDir = "snapshots"

var errNothingStored = errors.New("nothing stored yet")

// manager returns the backup manager for the configured store. JSON file
// stores keep backups next to the file; other backends snapshot their
// document into the config directory.
func manager(ctx *cli.Context) (*backup.Manager, storage.Provider, error) {
	store, err := ctx.Store()
	if err != nil {
		return nil, nil, err
	}
	if fs, ok := store.(*jsonfile.Store); ok {
		return fs.Backups(), store, nil
	}
	path := filepath.Join(ctx.Config.Dir(), snapshotDir, constants.DefaultDataFile)
	return backup.NewManager(path, backup.WithKeep(ctx.Config.KeepBackups)), store, nil
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	mgr, store, err := manager(ctx)
	if err != nil {
		return err
	}

	var backupPath string
	if _, ok := store.(*jsonfile.Store); ok {
		backupPath, err = mgr.CreateBackup()
	} else {
		backupPath, err = snapshot(ctx, mgr, store)
	}
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	ctx.Printf("✓ Backup created: %s\n", filepath.Base(backupPath))
	return nil
}

func snapshot(ctx *cli.Context, mgr *backup.Manager, store storage.Provider) (string, error) {
	if err := store.Init(ctx.Ctx()); err != nil {
		return "", err
	}
	data, err := store.Load(ctx.Ctx())
	if errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("%w at %s", errNothingStored, store.Location())
	}
	if err != nil {
		return "", err
	}
	return mgr.Snapshot(data)
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	mgr, _, err := manager(ctx)
	if err != nil {
		return err
	}
	backups, err := mgr.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(backups) == 0 {
		ctx.Println("No backups found.")
		ctx.Printf("Backups are stored in: %s\n", mgr.GetBackupDir())
		return nil
	}

	ctx.Printf("Available backups (%d total, keeping most recent %d):\n\n", len(backups), ctx.Config.KeepBackups)
	for _, b := range backups {
		sizeKB := float64(b.Size) / 1024.0
		timestamp := b.Timestamp.Format("2006-01-02 15:04:05")
		ctx.Printf("  %s  %s  (%.1f KB)\n", timestamp, filepath.Base(b.Path), sizeKB)
	}
	ctx.Printf("\nBackup directory: %s\n", mgr.GetBackupDir())
	return nil
}

type BackupRestoreCmd struct {
	BackupFile string `arg:"" help:"Path or filename of the backup to restore."`
	Yes        bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	mgr, store, err := manager(ctx)
	if err != nil {
		return err
	}
	backupPath, err := resolve(c.BackupFile, mgr.GetBackupDir())
	if err != nil {
		return err
	}

	if !c.Yes {
		ctx.Println("⚠️  WARNING: This will replace your stored document with the backup.")
		ctx.Println("⚠️  Stop the TUI and any running save server before restoring.")
		ctx.Println("A backup of the current document will be created first.")
		ctx.Printf("\nRestore from: %s\n", backupPath)
		ctx.Printf("Continue? [y/N]: ")

		response, err := bufio.NewReader(ctx.In).ReadString('\n')
		if err != nil && response == "" {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			ctx.Println("Restore cancelled.")
			return nil
		}
	}

	if _, ok := store.(*jsonfile.Store); ok {
		if err := mgr.RestoreBackup(backupPath); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
	} else if err := restoreInto(ctx, mgr, store, backupPath); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	ctx.Println("✓ Document restored successfully!")
	return nil
}

// restoreInto validates the backup and saves it through the provider,
// snapshotting whatever is currently stored first.
func restoreInto(ctx *cli.Context, mgr *backup.Manager, store storage.Provider, path string) error {
	data, err := backup.ReadBackup(path)
	if err != nil {
		return err
	}
	result, err := validation.ValidateJSON(data)
	if err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("backup is not a valid document:\n%s", result.FormatReport())
	}

	if current, err := snapshot(ctx, mgr, store); err == nil {
		ctx.Printf("Backed up current document: %s\n", filepath.Base(current))
	} else if !errors.Is(err, errNothingStored) {
		return fmt.Errorf("failed to back up current document: %w", err)
	}
	return store.Save(ctx.Ctx(), result.Data)
}

// resolve finds the backup as an absolute path, a path relative to the
// working directory, or a file name inside the backup directory.
func resolve(name, backupDir string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("backup file not found: %s", name)
		}
		return name, nil
	}
	if _, err := os.Stat(name); err == nil {
		abs, err := filepath.Abs(name)
		if err != nil {
			return "", fmt.Errorf("failed to resolve backup path: %w", err)
		}
		return abs, nil
	}
	candidate := filepath.Join(backupDir, name)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", fmt.Errorf("backup file not found: tried current directory and %s", backupDir)
}
