package session

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

const DefaultSweepSchedule = "@every 1m"

// Sweeper is anything that can drop expired sessions.
type Sweeper interface {
	Sweep() int
}

// StartSweeper runs s.Sweep on the given cron schedule until the returned cron is stopped.
func StartSweeper(s Sweeper, schedule string) (*cron.Cron, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { s.Sweep() }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()

	slog.Info("SESSION: Sweeper started", "schedule", schedule)
	return c, nil
}
