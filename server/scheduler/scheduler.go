package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattermost/mattermost/server/public/pluginapi/cluster"
	"github.com/robfig/cron/v3"

	"github.com/mattermost/mattermost-plugin-geofence/server/engine"
	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

// dormantInterval is how long a fired one-shot job sleeps before checking
// again. It never fires twice for the same instant.
const dormantInterval = 24 * time.Hour

// Handler runs the work for a wake-up.
type Handler func(reason geo.WakeupReason)

// Scheduler runs one-shot wake-ups on cluster jobs, one job per reason, and
// a periodic refresh driven by a cron schedule.
type Scheduler struct {
	jobs    JobScheduler
	handler Handler
	log     engine.Logger

	mu        sync.Mutex
	scheduled map[geo.WakeupReason]Job
	cron      *cron.Cron
}

// New creates a scheduler that calls handler when a wake-up fires.
func New(jobs JobScheduler, log engine.Logger, handler Handler) *Scheduler {
	return &Scheduler{
		jobs:      jobs,
		handler:   handler,
		log:       log,
		scheduled: make(map[geo.WakeupReason]Job),
	}
}

func jobKey(reason geo.WakeupReason) string {
	return fmt.Sprintf("geofence_wakeup_%s", reason)
}

// Schedule runs the handler for reason at the given instant, replacing any
// wake-up already scheduled for reason.
func (s *Scheduler) Schedule(at time.Time, reason geo.WakeupReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cancel(reason); err != nil {
		return err
	}

	job, err := s.jobs.Schedule(jobKey(reason), oneShotInterval(at), func() {
		// The handler may reschedule this reason, which closes this job.
		// Closing a job from its own callback deadlocks.
		go s.handler(reason)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s wake-up: %w", reason, err)
	}

	s.scheduled[reason] = job
	s.log.Debug("Wake-up scheduled", "reason", reason, "at", at.UTC().Format(time.RFC3339))
	return nil
}

// Cancel removes the wake-up scheduled for reason, if any.
func (s *Scheduler) Cancel(reason geo.WakeupReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cancel(reason)
}

func (s *Scheduler) cancel(reason geo.WakeupReason) error {
	job, ok := s.scheduled[reason]
	if !ok {
		return nil
	}
	delete(s.scheduled, reason)

	if err := job.Close(); err != nil {
		return fmt.Errorf("failed to close %s wake-up job: %w", reason, err)
	}
	return nil
}

// StartCron triggers a refresh on every tick of spec.
func (s *Scheduler) StartCron(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		s.log.Debug("Periodic refresh")
		s.handler(geo.WakeupRefresh)
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.cron.Stop()
	}
	s.cron = c
	c.Start()
	return nil
}

// Close stops the cron schedule and every scheduled wake-up.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}

	var errs []error
	for reason := range s.scheduled {
		if err := s.cancel(reason); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ValidateSchedule checks a cron schedule such as "@every 1h" or "0 * * * *".
func ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return nil
}

// oneShotInterval fires once at the given instant. The cluster scheduler
// records when the job last finished; once that is at or after the target
// the job stays dormant.
func oneShotInterval(at time.Time) cluster.NextWaitInterval {
	return func(now time.Time, metadata cluster.JobMetadata) time.Duration {
		if !metadata.LastFinished.IsZero() && !metadata.LastFinished.Before(at) {
			return dormantInterval
		}
		if wait := at.Sub(now); wait > 0 {
			return wait
		}
		return 0
	}
}
