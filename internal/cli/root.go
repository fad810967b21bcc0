package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/julianstephens/rocky/internal/config"
	"github.com/julianstephens/rocky/internal/constants"
	"github.com/julianstephens/rocky/internal/dates"
	"github.com/julianstephens/rocky/internal/logger"
	"github.com/julianstephens/rocky/internal/models"
	"github.com/julianstephens/rocky/internal/session"
	"github.com/julianstephens/rocky/internal/storage"
	"github.com/julianstephens/rocky/internal/storage/backend"
)

// Context is shared by every command. The store and session are opened
// on first use so commands that never touch data stay fast.
type Context struct {
	Config     *config.Config
	ConfigPath string
	Out        io.Writer
	In         io.Reader
	Now        func() time.Time

	base    context.Context
	store   storage.Provider
	session *session.Session
	report  session.LoadReport
}

// NewContext wires a command context. Out and In default to the standard
// streams and Now to the configured timezone's clock.
func NewContext(base context.Context, cfg *config.Config, configPath string) *Context {
	if base == nil {
		base = context.Background()
	}
	c := &Context{
		Config:     cfg,
		ConfigPath: configPath,
		Out:        os.Stdout,
		In:         os.Stdin,
		base:       base,
	}
	c.Now = func() time.Time {
		now, err := dates.NowIn(cfg.Timezone)
		if err != nil {
			return time.Now()
		}
		return now
	}
	return c
}

// Ctx returns the command's cancellation context.
func (c *Context) Ctx() context.Context {
	return c.base
}

// Printf writes to the command output.
func (c *Context) Printf(format string, args ...interface{}) {
	fmt.Fprintf(c.Out, format, args...)
}

// Println writes a line to the command output.
func (c *Context) Println(args ...interface{}) {
	fmt.Fprintln(c.Out, args...)
}

// Today is the current date key in the configured timezone.
func (c *Context) Today() string {
	return dates.TodayKey(c.Now())
}

// Store opens the configured provider without initializing it.
func (c *Context) Store() (storage.Provider, error) {
	if c.store != nil {
		return c.store, nil
	}
	store, err := backend.Open(c.Config.Storage, c.BackendOptions())
	if err != nil {
		return nil, err
	}
	logger.Debug("Storage selected", "location", store.Location())
	c.store = store
	return store, nil
}

// BackendOptions carries the config into backend.Open.
func (c *Context) BackendOptions() backend.Options {
	return backend.Options{
		ConfigDir:   c.Config.Dir(),
		RedisKey:    c.Config.RedisKey,
		KeepBackups: c.Config.KeepBackups,
	}
}

// SetStore replaces the provider. Tests use it to inject a store.
func (c *Context) SetStore(store storage.Provider) {
	c.store = store
}

// Session loads the document into an editing session once per command.
// An invalid stored document is an error so commands never overwrite it.
func (c *Context) Session() (*session.Session, session.LoadReport, error) {
	return c.openSession(true)
}

// LenientSession is Session for the TUI: an invalid stored document falls
// back to an empty one and is reported through the LoadReport.
func (c *Context) LenientSession() (*session.Session, session.LoadReport, error) {
	return c.openSession(false)
}

func (c *Context) openSession(strict bool) (*session.Session, session.LoadReport, error) {
	if c.session != nil {
		return c.session, c.report, nil
	}
	store, err := c.Store()
	if err != nil {
		return nil, session.LoadReport{}, err
	}

	sess := session.New(store,
		session.WithClock(c.Now),
		session.WithOnSaveError(func(err error) {
			logger.Error("Autosave failed", "error", err)
		}),
	)
	report, err := sess.Load(c.base)
	if err != nil {
		return nil, report, err
	}
	for _, w := range report.Warnings {
		logger.Warn("Document warning", "warning", w)
	}
	if strict && report.Fallback {
		return nil, report, fmt.Errorf("stored document is invalid (%s); run '%s validate' for details",
			strings.Join(report.Errors, "; "), constants.AppName)
	}
	c.session, c.report = sess, report
	return sess, report, nil
}

// Commit flushes pending session changes to storage.
func (c *Context) Commit() error {
	if c.session == nil {
		return nil
	}
	if err := c.session.Flush(c.base); err != nil {
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// Close flushes the session and releases the store.
func (c *Context) Close() error {
	var firstErr error
	if c.session != nil {
		if err := c.session.Close(c.base); err != nil {
			firstErr = fmt.Errorf("failed to save: %w", err)
		}
		c.session = nil
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		c.store = nil
	}
	return firstErr
}

// ParseDate accepts YYYY-MM-DD, "today" or "yesterday". Empty means today.
func (c *Context) ParseDate(arg string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(arg)) {
	case "", "today":
		return c.Today(), nil
	case "yesterday":
		return dates.AddDays(c.Today(), -1), nil
	}
	if !dates.IsDateKey(arg) {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD, today or yesterday", arg)
	}
	return arg, nil
}

// ResolveGoal finds a goal by id, or by a case-insensitive title that
// matches exactly one goal.
func ResolveGoal(doc models.Document, ref string) (models.Goal, error) {
	if g, ok := doc.Goal(ref); ok {
		return g, nil
	}
	var matches []models.Goal
	for _, g := range doc.Goals {
		if strings.EqualFold(g.Title, strings.TrimSpace(ref)) {
			matches = append(matches, g)
		}
	}
	switch len(matches) {
	case 0:
		return models.Goal{}, fmt.Errorf("%w: %s", session.ErrUnknownGoal, ref)
	case 1:
		return matches[0], nil
	}
	return models.Goal{}, fmt.Errorf("title %q matches %d goals; use the id", ref, len(matches))
}
