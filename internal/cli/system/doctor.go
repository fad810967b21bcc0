package system

import (
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/rocky/internal/cli"
	"github.com/julianstephens/rocky/internal/dates"
	"github.com/julianstephens/rocky/internal/keyring"
	"github.com/julianstephens/rocky/internal/lockfile"
	"github.com/julianstephens/rocky/internal/storage"
	"github.com/julianstephens/rocky/internal/storage/jsonfile"
	"github.com/julianstephens/rocky/internal/validation"
)

type DoctorCmd struct{}

type checkLevel int

const (
	levelOK checkLevel = iota
	levelWarn
	levelFail
	levelSkip
)

// checkResult is the outcome of one diagnostic.
type checkResult struct {
	level  checkLevel
	detail string
}

func passed(detail string) checkResult { return checkResult{levelOK, detail} }
func warned(detail string) checkResult { return checkResult{levelWarn, detail} }
func skipped(detail string) checkResult { return checkResult{levelSkip, detail} }
func failed(err error) checkResult { return checkResult{levelFail, err.Error()} }

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	ctx.Println("Running diagnostics...")
	ctx.Println()

	var raw []byte
	reachable := false
	store, storeErr := ctx.Store()

	checks := []struct {
		name string
		run  func() checkResult
	}{
		{"Clock/timezone", func() checkResult {
			return checkTimezone(ctx)
		}},
		{"Storage reachable", func() checkResult {
			if storeErr != nil {
				return failed(storeErr)
			}
			data, err := store.Load(ctx.Ctx())
			if errors.Is(err, storage.ErrNotFound) {
				reachable = true
				return warned(fmt.Sprintf("no document stored yet at %s; run 'rocky init'", store.Location()))
			}
			if err != nil {
				return failed(err)
			}
			raw, reachable = data, true
			return passed(store.Location())
		}},
		{"Data validation", func() checkResult {
			if raw == nil {
				return skipped("nothing to validate")
			}
			result, err := validation.ValidateJSON(raw)
			if err != nil {
				return failed(err)
			}
			if !result.OK {
				return failed(fmt.Errorf("%d error(s); run 'rocky validate' for details", len(result.Errors)))
			}
			if result.HasWarnings() {
				return warned(fmt.Sprintf("%d warning(s); run 'rocky validate' for details", len(result.Warnings)))
			}
			return passed(fmt.Sprintf("%d days, %d goals", len(result.Data.Days), len(result.Data.Goals)))
		}},
		{"Backups present", func() checkResult {
			return checkBackups(store)
		}},
		{"Save history", func() checkResult {
			if !reachable {
				return skipped("storage not reachable")
			}
			return checkHistory(ctx, store)
		}},
		{"OS keyring", func() checkResult {
			if keyring.IsAvailable() {
				return passed("available")
			}
			return warned("not available; use ROCKY_DB_CONNECTION for credentials")
		}},
		{"Save server", func() checkResult {
			port, err := lockfile.Discover(lockfile.Path(ctx.Config.Dir()))
			if errors.Is(err, lockfile.ErrNotRunning) {
				return passed("not running")
			}
			if err != nil {
				return warned(err.Error())
			}
			return passed(fmt.Sprintf("running on port %d", port))
		}},
	}

	hasError := false
	for _, c := range checks {
		res := c.run()
		switch res.level {
		case levelOK:
			ctx.Printf("✓ %s: OK", c.name)
		case levelWarn:
			ctx.Printf("⚠ %s: WARNING", c.name)
		case levelFail:
			ctx.Printf("❌ %s: FAIL", c.name)
			hasError = true
		case levelSkip:
			ctx.Printf("⊘ %s: SKIPPED", c.name)
		}
		if res.detail != "" {
			ctx.Printf("\n   %s", res.detail)
		}
		ctx.Println()
	}

	ctx.Println()
	if hasError {
		ctx.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}
	ctx.Println("All diagnostics passed!")
	return nil
}

func checkTimezone(ctx *cli.Context) checkResult {
	loc, err := dates.LoadLocation(ctx.Config.Timezone)
	if err != nil {
		return failed(err)
	}
	now := ctx.Now()
	if now.Year() < 2000 {
		return failed(fmt.Errorf("system clock looks wrong: %s", now.Format(time.RFC3339)))
	}
	return passed(fmt.Sprintf("%s, today is %s", loc, ctx.Today()))
}

func checkBackups(store storage.Provider) checkResult {
	js, isFile := store.(*jsonfile.Store)
	if !isFile {
		return skipped("backend keeps no file backups")
	}
	backups, err := js.Backups().ListBackups()
	if err != nil {
		return failed(err)
	}
	if len(backups) == 0 {
		return warned("no backups yet in " + js.Backups().GetBackupDir())
	}
	latest := backups[0]
	return passed(fmt.Sprintf("%d backup(s), latest %s", len(backups), latest.Timestamp.Format("2006-01-02 15:04")))
}

func checkHistory(ctx *cli.Context, store storage.Provider) checkResult {
	h, isHistorian := store.(storage.Historian)
	if !isHistorian {
		return skipped("backend keeps no save history")
	}
	records, err := h.History(ctx.Ctx(), 1)
	if err != nil {
		return failed(err)
	}
	if len(records) == 0 {
		return warned("no saves recorded")
	}
	return passed(fmt.Sprintf("last save %s (%d bytes)", records[0].SavedAt.Local().Format("2006-01-02 15:04:05"), records[0].Size))
}
