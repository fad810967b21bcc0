package system

import (
	"fmt"

	"github.com/julianstephens/rocky/internal/cli"
	"github.com/julianstephens/rocky/internal/export"
)

type SampleCmd struct {
	Force bool `help:"Replace an existing non-empty document."`
}

func (c *SampleCmd) Run(ctx *cli.Context) error {
	sess, _, err := ctx.Session()
	if err != nil {
		return err
	}
	if !sess.Document().IsEmpty() && !c.Force {
		return fmt.Errorf("storage already holds data; use --force to replace it")
	}

	doc := export.Sample(ctx.Now())
	if err := sess.Replace(doc); err != nil {
		return err
	}
	if err := ctx.Commit(); err != nil {
		return err
	}
	ctx.Printf("✓ Wrote sample data: %d goals, %d days\n", len(doc.Goals), len(doc.Days))
	return nil
}
