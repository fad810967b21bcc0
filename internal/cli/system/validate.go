package system

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/rocky/internal/cli"
	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/storage"
	"github.com/julianstephens/rocky/internal/validation"
)

type ValidateCmd struct {
	File   string `arg:"" optional:"" help:"JSON file to check instead of the configured storage." type:"path"`
	Strict bool   `help:"Treat warnings, including an unexpected version, as failures."`
}

func (cmd *ValidateCmd) Run(ctx *cli.Context) error {
	data, source, err := cmd.read(ctx)
	if err != nil {
		return err
	}
	if data == nil {
		ctx.Printf("No document stored yet at %s.\n", source)
		return nil
	}

	var opts []validation.Option
	if cmd.Strict {
		opts = append(opts, validation.WithVersionPolicy(validation.StrictVersion{Want: constants.DocumentVersion}))
	}
	result, err := validation.New(opts...).ValidateJSON(data)
	if err != nil {
		return err
	}

	ctx.Printf("Validating %s\n\n", source)
	ctx.Printf("%s", result.FormatReport())
	if !result.OK {
		return fmt.Errorf("validation failed with %d error(s)", len(result.Errors))
	}
	if cmd.Strict && result.HasWarnings() {
		return fmt.Errorf("validation failed with %d warning(s)", len(result.Warnings))
	}
	ctx.Printf("\n%d days, %d goals\n", len(result.Data.Days), len(result.Data.Goals))
	return nil
}

func (cmd *ValidateCmd) read(ctx *cli.Context) ([]byte, string, error) {
	if cmd.File != "" {
		data, err := os.ReadFile(cmd.File)
		if err != nil {
			return nil, cmd.File, fmt.Errorf("failed to read %s: %w", cmd.File, err)
		}
		return data, cmd.File, nil
	}

	store, err := ctx.Store()
	if err != nil {
		return nil, "", err
	}
	raw, err := store.Load(ctx.Ctx())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, store.Location(), nil
	}
	if err != nil {
		return nil, store.Location(), fmt.Errorf("failed to load storage: %w", err)
	}
	return raw, store.Location(), nil
}
