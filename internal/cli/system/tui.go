package system

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/rocky/internal/cli"
	"github.com/julianstephens/rocky/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *cli.Context) error {
	sess, report, err := ctx.LenientSession()
	if err != nil {
		return err
	}

	p := tea.NewProgram(tui.NewModel(sess, report, tui.WithClock(ctx.Now)), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui failed: %w", err)
	}
	return ctx.Commit()
}
