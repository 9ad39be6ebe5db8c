// Package retention prunes usage, privacy, and session rows older
// than the configured horizon on a nightly schedule.
package retention

import (
	"time"

	cronlib "github.com/robfig/cron/v3"

	. "github.com/AuraCoreDynamics/aurarouter/internal/logging"
)

// purgeSchedule runs daily in the quiet hours.
const purgeSchedule = "0 3 * * *"

// Purger is any store that can drop rows older than a cutoff.
type Purger interface {
	PurgeBefore(cutoff time.Time) (int64, error)
}

// Service owns the cron runner. Zero retention days disables purging
// entirely; the service then never starts a job.
type Service struct {
	days    int
	purgers map[string]Purger
	cron    *cronlib.Cron
}

// New builds a retention service over named purgers. The names only
// appear in logs.
func New(days int, purgers map[string]Purger) *Service {
	return &Service{
		days:    days,
		purgers: purgers,
		cron:    cronlib.New(),
	}
}

// Start schedules the nightly purge. No-op when retention is disabled.
func (s *Service) Start() error {
	if s.days <= 0 {
		L_debug("retention disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(purgeSchedule, s.RunOnce); err != nil {
		return err
	}
	s.cron.Start()
	L_info("retention scheduled", "days", s.days, "schedule", purgeSchedule)
	return nil
}

// Stop halts the scheduler; a purge already running completes.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunOnce purges every store immediately. Also the cron job body.
func (s *Service) RunOnce() {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.days)
	for name, p := range s.purgers {
		n, err := p.PurgeBefore(cutoff)
		if err != nil {
			L_warn("retention purge failed", "store", name, "error", err)
			continue
		}
		if n > 0 {
			L_info("retention purged", "store", name, "rows", n, "cutoff", cutoff)
		}
	}
}
