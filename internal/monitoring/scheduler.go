package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/quill-be/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler runs periodic housekeeping jobs on a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	eventSvc  services.EventServiceProvider
	retention time.Duration
}

// NewScheduler creates a scheduler that prunes events older than retention
// according to the standard cron expression spec.
func NewScheduler(eventSvc services.EventServiceProvider, spec string, retention time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(),
		eventSvc:  eventSvc,
		retention: retention,
	}
	if _, err := s.cron.AddFunc(spec, s.PruneEvents); err != nil {
		return nil, fmt.Errorf("invalid prune schedule %q: %w", spec, err)
	}
	return s, nil
}

// Run starts the scheduler in its own goroutine.
func (s *Scheduler) Run() {
	log.Info().Dur("retention", s.retention).Msg("Starting background scheduler...")
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Stopped background scheduler.")
}

// PruneEvents deletes events past the retention window.
func (s *Scheduler) PruneEvents() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := s.eventSvc.PruneEvents(ctx, s.retention)
	if err != nil {
		log.Error().Err(err).Msg("Scheduler: Failed to prune events")
		return
	}
	if removed == 0 {
		return
	}

	log.Info().Int64("removed", removed).Msg("Scheduler: Pruned old events")
	msg := fmt.Sprintf("Pruned %d events older than %s.", removed, s.retention)
	if err := s.eventSvc.CreateEvent(ctx, services.EventEventsPruned, "info", msg, nil); err != nil {
		log.Warn().Err(err).Msg("Scheduler: Failed to record prune event")
	}
}
