package rituals

import (
	"context"
	"fmt"
	"time"

	"github.com/deskhub/deskhub/pkg/logger"
	"github.com/robfig/cron/v3"
)

const passTimeout = 10 * time.Minute

// Scheduler rolls every owner's ritual horizon forward on a cron schedule.
type Scheduler struct {
	svc  *Service
	cron *cron.Cron
}

// NewScheduler parses spec (standard cron or descriptors such as "@daily").
func NewScheduler(svc *Service, spec string, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))
	s := &Scheduler{svc: svc, cron: c}
	if _, err := c.AddFunc(spec, s.pass); err != nil {
		return nil, fmt.Errorf("ritual schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) pass() {
	ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
	defer cancel()
	applied, failed, err := s.svc.RunAll(ctx)
	if err != nil {
		logger.Errorf("rituals: scheduled pass: %v", err)
		return
	}
	logger.Infof("rituals: scheduled pass applied=%d failed=%d", applied, failed)
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits for a running pass or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
