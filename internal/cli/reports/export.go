package reports

import (
	"bytes"
	"fmt"

	"github.com/julianstephens/rocky/internal/backup"
	"github.com/julianstephens/rocky/internal/cli"
	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/export"
)

type ExportCmd struct {
	ICS ExportICSCmd `cmd:"" name:"ics" help:"Export day entries as an iCalendar feed."`
}

type ExportICSCmd struct {
	Output string `short:"o" default:"-" help:"File to write, or - for stdout."`
	Year   int    `help:"Only export this year."`
}

func (c *ExportICSCmd) Run(ctx *cli.Context) error {
	if c.Year != 0 && c.Year < constants.MinYear {
		return fmt.Errorf("year must be %d or later", constants.MinYear)
	}
	sess, _, err := ctx.Session()
	if err != nil {
		return err
	}
	opts := export.ICSOptions{Year: c.Year, Stamp: ctx.Now()}

	if c.Output == "-" || c.Output == "" {
		_, err := export.ICS(ctx.Out, sess.Document(), opts)
		return err
	}

	var buf bytes.Buffer
	count, err := export.ICS(&buf, sess.Document(), opts)
	if err != nil {
		return fmt.Errorf("failed to render calendar: %w", err)
	}
	if err := backup.WriteFileAtomic(c.Output, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.Output, err)
	}
	ctx.Printf("✓ Exported %d day(s) to %s\n", count, c.Output)
	return nil
}
