package application

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs the fixed-period background jobs between Start and Stop.
type Scheduler struct {
	cron    *cron.Cron
	log     zerolog.Logger
	entries []cron.EntryID
}

func newScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:  log,
	}
}

func (s *Scheduler) every(name string, interval time.Duration, job func()) error {
	id, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), job)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.entries = append(s.entries, id)
	s.log.Debug().Str("job", name).Dur("interval", interval).Msg("background job scheduled")
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish and unregisters every job, so the
// next Start schedules a fresh set.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.clear()
}

func (s *Scheduler) clear() {
	for _, id := range s.entries {
		s.cron.Remove(id)
	}
	s.entries = nil
}

func (s *Scheduler) jobs() int {
	return len(s.cron.Entries())
}
