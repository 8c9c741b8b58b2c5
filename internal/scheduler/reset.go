// Package scheduler runs the periodic reset of the booking state.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// ResetInterval is how often the booking state returns to the initial
// snapshot.  It is fixed at build time.
const ResetInterval = 2 * time.Hour

// resetTimeout bounds a single scheduled reset, which includes one snapshot
// write.
const resetTimeout = time.Minute

// Resetter is implemented by the booking service.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ResetScheduler fires Reset on a fixed interval regardless of traffic.
type ResetScheduler struct {
	sched gocron.Scheduler
	job   gocron.Job
}

// NewResetScheduler registers the reset job.  Runs never overlap: if a reset
// is still going when the next tick arrives, that tick is skipped.
func NewResetScheduler(r Resetter, every time.Duration, log *logrus.Entry) (*ResetScheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	log = log.WithField("component", "reset-scheduler")
	job, err := sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
			defer cancel()
			if err := r.Reset(ctx); err != nil {
				log.WithError(err).Error("scheduled reset failed")
				return
			}
			log.Info("scheduled reset done")
		}),
		gocron.WithName("booking-reset"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("register reset job: %w", err)
	}
	log.WithField("every", every.String()).Info("reset job registered")
	return &ResetScheduler{sched: sched, job: job}, nil
}

// Start begins ticking.  The first reset happens one interval from now.
func (s *ResetScheduler) Start() { s.sched.Start() }

// NextRun reports when the reset job fires next.
func (s *ResetScheduler) NextRun() (time.Time, error) { return s.job.NextRun() }

// Shutdown stops the scheduler and waits for a running reset to finish.
func (s *ResetScheduler) Shutdown() error { return s.sched.Shutdown() }
