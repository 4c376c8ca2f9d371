// Package retention periodically prunes the audit history store, adapted
// from the teacher's internal/scheduler/scheduler.go cron wiring — the
// same cron.Cron + fx lifecycle wrapping, repurposed from scheduled log
// ingestion to scheduled audit-log pruning. This is an ambient operations
// concern, not a form of runtime schema refresh: the FieldMap cache built
// by internal/schema.CachedExtractor is never touched here.
package retention

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"

	"queryforge/internal/history"
)

// NewScheduler schedules a periodic prune of history records older than
// maxAge, using the same five-field-plus-seconds cron parser the teacher
// configures.
func NewScheduler(lc fx.Lifecycle, store history.Store, schedule string, maxAge time.Duration) *cron.Cron {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.DowOptional | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))

	_, err := c.AddFunc(schedule, func() {
		go func() {
			cutoff := time.Now().UTC().Add(-maxAge)
			deleted, err := store.PruneOlderThan(context.Background(), cutoff)
			if err != nil {
				log.Error().Err(err).Msg("error during scheduled history retention sweep")
				return
			}
			log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("history retention sweep completed")
		}()
	})
	if err != nil {
		log.Error().Err(err).Str("schedule", schedule).Msg("failed to add retention cron job")
		return c
	}
	log.Info().Str("schedule", schedule).Msg("scheduled history retention sweep")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msg("starting retention scheduler")
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("stopping retention scheduler")
			stopCtx := c.Stop()
			select {
			case <-stopCtx.Done():
				log.Info().Msg("retention scheduler stopped gracefully")
				return nil
			case <-ctx.Done():
				log.Error().Msg("context cancelled while waiting for retention scheduler to stop")
				return ctx.Err()
			}
		},
	})

	return c
}
