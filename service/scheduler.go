package service

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/tcriess/lightspeed-roster/globals"
)

// Scheduler periodically fills all rosters.
type Scheduler struct {
	cronRunner *cron.Cron
}

// NewScheduler registers FillAll under the cron spec, f.e. "@every 5m" or "*/10 * * * *".
func NewScheduler(svc *Service, spec string) (*Scheduler, error) {
	cronRunner := cron.New(cron.WithLocation(svc.Location()), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := cronRunner.AddFunc(spec, func() {
		moves, err := svc.FillAll(context.Background())
		if err != nil {
			globals.AppLogger.Error("could not fill rosters", "error", err)
		}
		for channelID, m := range moves {
			globals.AppLogger.Info("filled roster", "channel", channelID, "promoted", len(m))
		}
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{cronRunner: cronRunner}, nil
}

func (s *Scheduler) Start() {
	s.cronRunner.Start()
}

// Stop stops the scheduler and waits for a running fill.
func (s *Scheduler) Stop() {
	<-s.cronRunner.Stop().Done()
}
