// Package scheduler runs the periodic sync trigger on a cron expression.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
)

// Cron owns a single job whose expression can be swapped at runtime.
type Cron struct {
	mu    sync.Mutex
	cron  *cron.Cron
	job   func()
	entry cron.EntryID
	expr  string
}

func New(job func()) *Cron {
	return &Cron{
		cron: cron.New(),
		job:  job,
	}
}

// Validate reports whether expr is a standard five-field cron expression.
func Validate(expr string) error {
	if _, err := cron.ParseStandard(strings.TrimSpace(expr)); err != nil {
		return fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return nil
}

func (c *Cron) Validate(expr string) error {
	return Validate(expr)
}

func (c *Cron) Start(expr string) error {
	if err := c.Reschedule(expr); err != nil {
		return err
	}
	c.cron.Start()
	return nil
}

// Reschedule replaces the job's expression. On error the previous schedule stays armed.
func (c *Cron) Reschedule(expr string) error {
	expr = strings.TrimSpace(expr)
	if err := Validate(expr); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, err := c.cron.AddFunc(expr, c.job)
	if err != nil {
		return fmt.Errorf("schedule cron job: %w", err)
	}
	if c.entry != 0 {
		c.cron.Remove(c.entry)
	}
	previous := c.expr
	c.entry = entry
	c.expr = expr
	if previous != "" && previous != expr {
		slog.Info("cron_rescheduled", "from", previous, "to", expr)
	}
	return nil
}

func (c *Cron) Expression() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expr
}

// Stop halts scheduling and waits for a running job until ctx is done.
func (c *Cron) Stop(ctx context.Context) {
	done := c.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
