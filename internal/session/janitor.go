package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultIdleTimeout is how long a session may sit without inbound activity
// before the janitor destroys it.
const DefaultIdleTimeout = 10 * time.Minute

// DefaultSweepSpec is the janitor's default cron schedule.
const DefaultSweepSpec = "@every 1m"

// Janitor periodically evicts idle sessions from a Registry. It is the
// external cleanup task behind the idle-timeout part of the session
// lifecycle; goodbye-driven destruction happens inline in the coordinator.
type Janitor struct {
	registry    *Registry
	idleTimeout time.Duration
	cron        *cron.Cron
	entryID     cron.EntryID
}

// NewJanitor creates a janitor sweeping registry on the given cron spec.
// Zero values fall back to DefaultIdleTimeout and DefaultSweepSpec.
func NewJanitor(registry *Registry, idleTimeout time.Duration, sweepSpec string) (*Janitor, error) {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if sweepSpec == "" {
		sweepSpec = DefaultSweepSpec
	}

	j := &Janitor{
		registry:    registry,
		idleTimeout: idleTimeout,
		cron:        cron.New(),
	}
	entryID, err := j.cron.AddFunc(sweepSpec, j.sweep)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule session sweep %q: %w", sweepSpec, err)
	}
	j.entryID = entryID
	return j, nil
}

// Start begins the background sweep schedule.
func (j *Janitor) Start() {
	slog.Info("Janitor.Start: session janitor started", "idle_timeout", j.idleTimeout)
	j.cron.Start()
}

// Stop halts the sweep schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	slog.Info("Janitor.Stop: session janitor stopped")
}

func (j *Janitor) sweep() {
	removed := j.registry.SweepIdle(j.idleTimeout)
	slog.Debug("Janitor.sweep: sweep completed", "removed", removed, "active", j.registry.Len())
}
