package rituals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestScheduler_StartStopLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	s, err := NewScheduler(f.svc, "@every 1h", nil)
	require.NoError(t, err)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestScheduler_PassAppliesStoredSettings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _, err := f.svc.SaveSettings(ctx, "t1", "u1", DefaultSettings("u1", 7))
	require.NoError(t, err)

	s, err := NewScheduler(f.svc, "@daily", time.UTC)
	require.NoError(t, err)
	s.pass()

	runs, err := f.svc.ListRuns(ctx, "t1", "u1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

func TestNewScheduler_RejectsBadSpec(t *testing.T) {
	_, err := NewScheduler(newFixture(t).svc, "every tuesday", nil)
	require.Error(t, err)
}
