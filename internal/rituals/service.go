package rituals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deskhub/deskhub/internal/calendar"
	"github.com/deskhub/deskhub/internal/store"
	"github.com/deskhub/deskhub/pkg/logger"
	"github.com/deskhub/deskhub/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson"
)

const runsShown = 20

type Service struct {
	settings store.Collection[Settings]
	runs     store.Collection[Run]
	tasks    store.Collection[calendar.Task]
	horizon  int
	now      func() time.Time
}

// NewService wires the settings and run log collections to the calendar's task
// collection. horizon is the default number of days planned ahead.
func NewService(settings store.Collection[Settings], runs store.Collection[Run], tasks store.Collection[calendar.Task], horizon int) *Service {
	return &Service{settings: settings, runs: runs, tasks: tasks, horizon: horizon, now: time.Now}
}

// GetSettings returns the owner's stored settings, or the defaults when none
// were saved yet.
func (s *Service) GetSettings(ctx context.Context, tenant, owner string) (*Settings, error) {
	cur, err := s.settings.Get(ctx, tenant, SettingsID(tenant, owner))
	if errors.Is(err, store.ErrNotFound) {
		def := DefaultSettings(owner, s.horizon)
		def.TenantID = tenant
		return &def, nil
	}
	return cur, err
}

// SaveSettings validates and stores the settings, then regenerates the owner's
// future ritual tasks.
func (s *Service) SaveSettings(ctx context.Context, tenant, owner string, in Settings) (*Settings, *Run, error) {
	if in.HorizonDays == 0 {
		in.HorizonDays = s.horizon
	}
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}
	in.OwnerID = owner
	id := SettingsID(tenant, owner)

	saved, err := s.settings.Update(ctx, tenant, id, bson.M{
		"ownerId":     in.OwnerID,
		"timezone":    in.Timezone,
		"horizonDays": in.HorizonDays,
		"daily":       in.Daily,
		"weekly":      in.Weekly,
	})
	if errors.Is(err, store.ErrNotFound) {
		in.Meta = store.Meta{ID: id, TenantID: tenant}
		if err = s.settings.Insert(ctx, &in); err == nil {
			saved = &in
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("save ritual settings: %w", err)
	}
	run, err := s.apply(ctx, tenant, saved, TriggerSettings)
	return saved, run, err
}

// Apply regenerates the owner's ritual tasks from their current settings.
func (s *Service) Apply(ctx context.Context, tenant, owner string) (*Run, error) {
	st, err := s.GetSettings(ctx, tenant, owner)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, tenant, st, TriggerManual)
}

// apply replaces every ritual task of the owner that starts at or after now
// with a freshly generated set. Past ritual tasks are left alone.
func (s *Service) apply(ctx context.Context, tenant string, st *Settings, trigger string) (*Run, error) {
	now := s.now()
	tasks, err := Generate(*st, now)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		t.TenantID = tenant
	}

	q := store.ForTenant(tenant).
		Where("ownerId", st.OwnerID).
		Where("kind", string(calendar.KindRitual)).
		Between("start", store.Now(now), time.Time{})
	removed, applyErr := s.tasks.ReplaceWhere(ctx, q, tasks)

	run := &Run{OwnerID: st.OwnerID, Trigger: trigger, Status: RunOK}
	run.TenantID = tenant
	if applyErr != nil {
		run.Status, run.Error = RunFailed, applyErr.Error()
	} else {
		run.Generated, run.Removed = len(tasks), removed
		for _, t := range tasks {
			metrics.RitualTasksGenerated.WithLabelValues(t.Ritual).Inc()
		}
	}
	if err := s.runs.Insert(ctx, run); err != nil {
		logger.Warnf("rituals: record run for %s: %v", st.OwnerID, err)
	}
	logger.Debugf("rituals: %s", run)
	if applyErr != nil {
		return run, fmt.Errorf("replace ritual tasks: %w", applyErr)
	}
	return run, nil
}

// ListRuns returns the owner's most recent runs, newest first.
func (s *Service) ListRuns(ctx context.Context, tenant, owner string) ([]*Run, error) {
	return s.runs.Find(ctx, store.ForTenant(tenant).Where("ownerId", owner).SortBy("-createdAt").Take(runsShown))
}

// RunAll applies every stored settings record across all tenants. Failures are
// logged and counted; the pass continues with the next owner.
func (s *Service) RunAll(ctx context.Context) (applied, failed int, err error) {
	all, err := s.settings.Find(ctx, store.Everywhere())
	if err != nil {
		return 0, 0, fmt.Errorf("load ritual settings: %w", err)
	}
	for _, st := range all {
		if ctx.Err() != nil {
			return applied, failed, ctx.Err()
		}
		if _, err := s.apply(ctx, st.TenantID, st, TriggerSchedule); err != nil {
			logger.Errorf("rituals: apply for %s/%s: %v", st.TenantID, st.OwnerID, err)
			failed++
			continue
		}
		applied++
	}
	return applied, failed, nil
}
