package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/marcus-crane/explorer/config"
	"github.com/marcus-crane/explorer/events"
	"github.com/marcus-crane/explorer/gallery"
	"github.com/marcus-crane/explorer/session"
)

const sweepInterval = time.Minute

func SetupInBackground(cfg config.Config, registry *gallery.Registry, hub *events.Hub, sweeper session.Sweeper) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	// The sweeper is an interface that may be nil, which gocron can't pass
	// as a task argument
	lifetime := cfg.SessionLifetime()
	_, err = s.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(func() {
			SweepIdleSessions(registry, hub, sweeper, lifetime)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// SweepIdleSessions releases galleries nobody has touched within lifetime.
// Stores that can't expire values themselves are swept as well.
func SweepIdleSessions(registry *gallery.Registry, hub *events.Hub, sweeper session.Sweeper, lifetime time.Duration) {
	ctx := context.Background()
	idleSince := time.Now().Add(-lifetime)

	dropped, err := registry.SweepIdle(ctx, idleSince)
	if err != nil {
		slog.Error("Failed to release idle galleries", slog.String("error", err.Error()))
	}
	for _, id := range dropped {
		if hub != nil {
			hub.Close(id)
		}
	}

	var swept int64
	if sweeper != nil {
		swept, err = sweeper.Sweep(ctx, idleSince)
		if err != nil {
			slog.Error("Failed to sweep session store", slog.String("error", err.Error()))
		}
	}

	if len(dropped) > 0 || swept > 0 {
		slog.Info("Swept idle sessions",
			slog.Int("galleries", len(dropped)),
			slog.Int64("values", swept),
		)
	}
}
