package matchmaker

import (
	"context"

	"github.com/go-co-op/gocron/v2"
)

// RegisterTick schedules the admission pass every TickInterval. Singleton
// mode drops a firing that lands while the previous pass still runs; the
// in-flight guard inside Tick covers manual invocations the scheduler cannot
// see.
func (s *Service) RegisterTick(sched gocron.Scheduler) error {
	_, err := sched.NewJob(
		gocron.DurationJob(s.cfg.TickInterval),
		gocron.NewTask(func() {
			s.Tick(context.Background())
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}
