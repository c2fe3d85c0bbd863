package app

import (
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// StartSweeper schedules SweepIdle every interval. Call Shutdown on the
// returned scheduler to stop it.
func StartSweeper(service *GameService, clock clockwork.Clock, interval, idle time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("create sweeper: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if n := service.SweepIdle(idle); n > 0 {
				log.Printf("sweeper removed %d idle sessions", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule sweeper: %w", err)
	}

	sched.Start()
	return sched, nil
}
