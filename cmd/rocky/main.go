package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/rocky/internal/cli"
	"github.com/julianstephens/rocky/internal/cli/backups"
	"github.com/julianstephens/rocky/internal/cli/days"
	"github.com/julianstephens/rocky/internal/cli/goals"
	"github.com/julianstephens/rocky/internal/cli/reports"
	"github.com/julianstephens/rocky/internal/cli/system"
	"github.com/julianstephens/rocky/internal/config"
	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/errors"
	"github.com/julianstephens/rocky/internal/logger"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file path." type:"path" default:"~/.config/rocky/config.yaml" env:"ROCKY_CONFIG"`
	Storage string `help:"Storage DSN: a JSON file, a .db file, postgres://, redis://, http(s)://, or 'server'. Overrides the config file."`
	Debug   bool   `help:"Mirror debug logs to stderr."`

	Init     system.InitCmd     `cmd:"" help:"Initialize rocky storage."`
	Validate system.ValidateCmd `cmd:"" help:"Validate the stored document or a JSON file."`
	Doctor   system.DoctorCmd   `cmd:"" help:"Run health checks and diagnostics."`
	Serve    system.ServeCmd    `cmd:"" help:"Run the local save server."`
	Tui      system.TuiCmd      `cmd:"" help:"Launch the interactive calendar." default:"1"`
	Day      struct {
		Show days.DayShowCmd `cmd:"" help:"Show one day." default:"withargs"`
		Set  days.DaySetCmd  `cmd:"" help:"Create or update a day entry."`
		List days.DayListCmd `cmd:"" help:"List the entries of a year."`
	} `cmd:"" help:"Read and write day entries."`
	Goal struct {
		Add       goals.GoalAddCmd       `cmd:"" help:"Add a new goal."`
		List      goals.GoalListCmd      `cmd:"" help:"List goals with completion rates." default:"1"`
		Edit      goals.GoalEditCmd      `cmd:"" help:"Edit a goal."`
		Archive   goals.GoalArchiveCmd   `cmd:"" help:"Mark a goal completed."`
		Unarchive goals.GoalUnarchiveCmd `cmd:"" help:"Resume tracking a completed goal."`
		Delete    goals.GoalDeleteCmd    `cmd:"" help:"Delete a goal and its completion marks."`
		Mark      goals.GoalMarkCmd      `cmd:"" help:"Toggle a goal for a day."`
		Log       goals.GoalLogCmd       `cmd:"" help:"Show a goal's recent history."`
	} `cmd:"" help:"Manage goals."`
	Calendar days.CalendarCmd     `cmd:"" help:"Print the year calendar."`
	Stats    reports.StatsCmd     `cmd:"" help:"Summarize a year."`
	Export   reports.ExportCmd    `cmd:"" help:"Export the diary."`
	Sample   system.SampleCmd     `cmd:"" help:"Load the sample document."`
	Backup   struct {
		Create  backups.BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
		List    backups.BackupListCmd    `cmd:"" help:"List available backups."`
		Restore backups.BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
	} `cmd:"" help:"Manage document backups."`
	Keyring struct {
		Set    system.KeyringSetCmd    `cmd:"" help:"Store a connection string in the OS keyring."`
		Get    system.KeyringGetCmd    `cmd:"" help:"Show the stored connection string (password masked)."`
		Delete system.KeyringDeleteCmd `cmd:"" help:"Remove a stored connection string."`
		Status system.KeyringStatusCmd `cmd:"" help:"Show which connection strings are stored." default:"1"`
	} `cmd:"" help:"Manage database credentials in the OS keyring."`
}

func main() {
	os.Exit(run())
}

func run() int {
	kctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("A personal diary and habit tracker for the terminal"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return errors.Report(os.Stderr, fmt.Errorf("failed to load config: %w", err))
	}
	if CLI.Storage != "" {
		cfg.Storage = CLI.Storage
	}
	if CLI.Debug {
		cfg.Debug = true
	}
	if err := logger.Init(logger.Config{Debug: cfg.Debug, ConfigDir: cfg.Dir(), Stderr: cfg.Debug}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}

	base, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCtx := cli.NewContext(base, cfg, CLI.Config)
	err = kctx.Run(appCtx)
	if closeErr := appCtx.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return errors.Report(os.Stderr, err)
}
