package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sakif/homepage/internal/metrics"
	"github.com/sakif/homepage/internal/repository"
)

const (
	DefaultPruneSchedule = "@every 10m"

	// PresenceRetention is how long a stale presence row is kept around so
	// NameFor can still answer for a returning visitor.
	PresenceRetention = 24 * time.Hour

	pruneTimeout = 30 * time.Second
)

// PruneResult counts the rows removed by one Janitor run.
type PruneResult struct {
	Sessions int64
	Mutes    int64
	Presence int64
}

// Janitor deletes rows that every reader already treats as gone: expired
// sessions, expired mutes and long-stale presence records.
type Janitor struct {
	sessions   repository.SessionRepository
	moderation repository.ModerationRepository
	presence   repository.PresenceRepository
	logger     *slog.Logger
	now        func() time.Time

	cron *cron.Cron
}

func NewJanitor(
	sessions repository.SessionRepository,
	moderation repository.ModerationRepository,
	presence repository.PresenceRepository,
	logger *slog.Logger,
) *Janitor {
	return &Janitor{
		sessions:   sessions,
		moderation: moderation,
		presence:   presence,
		logger:     logger,
		now:        time.Now,
	}
}

// RunOnce prunes every table and reports what it removed. It keeps going
// after a failure so one broken table does not starve the others.
func (j *Janitor) RunOnce(ctx context.Context) (PruneResult, error) {
	var res PruneResult
	now := j.now()
	nowMs := now.UnixMilli()

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	n, err := j.sessions.DeleteExpiredSessions(ctx, nowMs)
	keep(err)
	res.Sessions = n

	n, err = j.moderation.DeleteExpiredMutes(ctx, nowMs)
	keep(err)
	res.Mutes = n

	n, err = j.presence.DeleteStalePresence(ctx, now.Add(-PresenceRetention).UnixMilli())
	keep(err)
	res.Presence = n

	metrics.JanitorPruned.WithLabelValues("sessions").Add(float64(res.Sessions))
	metrics.JanitorPruned.WithLabelValues("basement_muted_users").Add(float64(res.Mutes))
	metrics.JanitorPruned.WithLabelValues("basement_users").Add(float64(res.Presence))

	if firstErr != nil {
		return res, fmt.Errorf("service/janitor: %w", firstErr)
	}
	return res, nil
}

// Start schedules RunOnce on schedule (standard cron syntax or "@every 10m").
// Overlapping runs are skipped.
func (j *Janitor) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultPruneSchedule
	}
	c := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
		defer cancel()

		res, err := j.RunOnce(ctx)
		if err != nil {
			j.logger.Error("prune failed", slog.String("error", err.Error()))
			return
		}
		j.logger.Debug("prune finished",
			slog.Int64("sessions", res.Sessions),
			slog.Int64("mutes", res.Mutes),
			slog.Int64("presence", res.Presence),
		)
	})
	if err != nil {
		return fmt.Errorf("service/janitor: invalid schedule %q: %w", schedule, err)
	}
	j.cron = c
	c.Start()
	return nil
}

// Stop halts the schedule and waits for a running prune to finish.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}
