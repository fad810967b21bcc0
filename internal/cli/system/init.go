package system

import (
	"errors"
	"fmt"

	"github.com/julianstephens/rocky/internal/cli"
	"github.com/julianstephens/rocky/internal/config"
	"github.com/julianstephens/rocky/internal/storage"
	"github.com/julianstephens/rocky/internal/storage/backend"
	"github.com/julianstephens/rocky/internal/validation"
)

type InitCmd struct {
	Source string `help:"Storage DSN to copy an existing document from."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if err := config.Save(ctx.ConfigPath, ctx.Config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	store, err := ctx.Store()
	if err != nil {
		return err
	}
	if err := store.Init(ctx.Ctx()); err != nil {
		return err
	}
	ctx.Printf("Initialized rocky storage at: %s\n", store.Location())
	ctx.Printf("Config: %s\n", ctx.ConfigPath)

	if c.Source != "" {
		ctx.Printf("Copying document from: %s\n", c.Source)
		if err := c.copyFrom(ctx, store); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		ctx.Println("Migration completed successfully!")
	}
	return nil
}

func (c *InitCmd) copyFrom(ctx *cli.Context, dst storage.Provider) error {
	src, err := backend.Open(c.Source, ctx.BackendOptions())
	if err != nil {
		return err
	}
	defer src.Close()

	raw, err := src.Load(ctx.Ctx())
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("source %s holds no document", src.Location())
	}
	if err != nil {
		return err
	}

	result, err := validation.ValidateJSON(raw)
	if err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("source document is invalid:\n%s", result.FormatReport())
	}
	if err := dst.Save(ctx.Ctx(), result.Data); err != nil {
		return err
	}
	ctx.Printf("Copied %d days and %d goals\n", len(result.Data.Days), len(result.Data.Goals))
	return nil
}
