package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nine = time.Date(2026, 4, 7, 9, 0, 0, 0, time.UTC)

func TestService_CreateDefaults(t *testing.T) {
	svc := NewService(store.NewMemoryCollection[Task]())
	task, err := svc.Create(context.Background(), "t1", "u1", &Task{Title: " Call bank ", Start: nine})
	require.NoError(t, err)
	assert.Equal(t, "Call bank", task.Title)
	assert.Equal(t, KindTask, task.Kind)
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.Equal(t, "u1", task.OwnerID)
	assert.Equal(t, nine.Add(DefaultDuration), task.End)
}

func TestService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemoryCollection[Task]())

	cases := map[string]*Task{
		"no title":    {Start: nine},
		"no start":    {Title: "x"},
		"end first":   {Title: "x", Start: nine, End: nine.Add(-time.Minute)},
		"ritual kind": {Title: "x", Start: nine, Kind: KindRitual},
		"bad prio":    {Title: "x", Start: nine, Priority: "urgent"},
	}
	for name, task := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, "t1", "u1", task)
			require.ErrorIs(t, err, httpx.ErrInvalid)
		})
	}
	_, err := svc.Create(ctx, "t1", "u1", &Task{Title: "x", Start: nine, End: nine.Add(-time.Minute)})
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestService_MoveKeepsDuration(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemoryCollection[Task]())
	task, err := svc.Create(ctx, "t1", "u1", &Task{Title: "Workshop", Kind: KindEvent, Start: nine, End: nine.Add(90 * time.Minute)})
	require.NoError(t, err)

	moved, err := svc.Move(ctx, "t1", task.ID, nine.AddDate(0, 0, 2).Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, nine.AddDate(0, 0, 2).Add(time.Hour), moved.Start)
	assert.Equal(t, 90*time.Minute, moved.Duration())

	newStart := nine.Add(3 * time.Hour)
	updated, err := svc.Update(ctx, "t1", task.ID, Patch{Start: &newStart})
	require.NoError(t, err)
	assert.Equal(t, newStart.Add(90*time.Minute), updated.End)

	_, err = svc.Move(ctx, "t2", task.ID, nine)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_RitualTasksOnlyToggleDone(t *testing.T) {
	ctx := context.Background()
	coll := store.NewMemoryCollection[Task]()
	svc := NewService(coll)
	ritual := &Task{OwnerID: "u1", Title: "Daily planning", Kind: KindRitual, Ritual: "daily", Start: nine, End: nine.Add(15 * time.Minute)}
	ritual.TenantID = "t1"
	require.NoError(t, coll.Insert(ctx, ritual))

	title := "renamed"
	_, err := svc.Update(ctx, "t1", ritual.ID, Patch{Title: &title})
	require.ErrorIs(t, err, ErrRitualLocked)
	require.ErrorIs(t, err, httpx.ErrState)
	_, err = svc.Move(ctx, "t1", ritual.ID, nine.Add(time.Hour))
	require.ErrorIs(t, err, ErrRitualLocked)
	require.ErrorIs(t, svc.Delete(ctx, "t1", ritual.ID), ErrRitualLocked)

	yes := true
	done, err := svc.Update(ctx, "t1", ritual.ID, Patch{Done: &yes})
	require.NoError(t, err)
	assert.True(t, done.Done)

	undone, err := svc.SetDone(ctx, "t1", ritual.ID, false)
	require.NoError(t, err)
	assert.False(t, undone.Done)
}

func TestService_ListFilters(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemoryCollection[Task]())
	mk := func(owner, title string, start time.Time, project string) *Task {
		task, err := svc.Create(ctx, "t1", owner, &Task{Title: title, Start: start, ProjectID: project})
		require.NoError(t, err)
		return task
	}
	mk("u1", "b", nine.Add(time.Hour), "p1")
	first := mk("u1", "a", nine, "")
	mk("u2", "c", nine.AddDate(0, 0, 1), "p1")
	_, err := svc.SetDone(ctx, "t1", first.ID, true)
	require.NoError(t, err)

	today, err := svc.List(ctx, "t1", ListFilter{From: nine, To: nine.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, today, 2)
	assert.Equal(t, "a", today[0].Title)

	proj, err := svc.List(ctx, "t1", ListFilter{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Len(t, proj, 2)

	due, err := svc.Due(ctx, "t1", "u1", nine, nine.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "b", due[0].Title)
}
