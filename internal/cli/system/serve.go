package system

import (
	"errors"
	"fmt"

	"github.com/julianstephens/rocky/internal/cli"
	"github.com/julianstephens/rocky/internal/lockfile"
	"github.com/julianstephens/rocky/internal/logger"
	"github.com/julianstephens/rocky/internal/server"
	"github.com/julianstephens/rocky/internal/storage/httpstore"
)

type ServeCmd struct {
	Listen     string `help:"Address to listen on (overrides config)."`
	BackupCron string `help:"Backup schedule while serving, e.g. @daily. Use 'off' to disable."`
}

func (c *ServeCmd) Run(ctx *cli.Context) error {
	if err := logger.Init(logger.Config{
		Debug:     ctx.Config.Debug,
		ConfigDir: ctx.Config.Dir(),
		Stderr:    true,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	store, err := ctx.Store()
	if err != nil {
		return err
	}
	if _, isHTTP := store.(*httpstore.Store); isHTTP {
		return errors.New("the save server cannot use the HTTP backend; configure a file, database or redis storage")
	}
	if err := store.Init(ctx.Ctx()); err != nil {
		return err
	}

	opts := server.Options{
		Listen:       ctx.Config.Listen,
		RateLimit:    ctx.Config.Server.RateLimit,
		AllowOrigins: ctx.Config.Server.AllowOrigins,
		BackupCron:   ctx.Config.Server.BackupCron,
		LockPath:     lockfile.Path(ctx.Config.Dir()),
	}
	if c.Listen != "" {
		opts.Listen = c.Listen
	}
	switch c.BackupCron {
	case "":
	case "off":
		opts.BackupCron = ""
	default:
		opts.BackupCron = c.BackupCron
	}

	if port, err := lockfile.Discover(opts.LockPath); err == nil {
		return fmt.Errorf("a save server is already running on port %d", port)
	}

	ctx.Printf("rocky data API on http://%s (storage: %s)\n", opts.Listen, store.Location())
	return server.New(store, opts).Run(ctx.Ctx())
}
