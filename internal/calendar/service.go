package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/internal/store"
	"go.mongodb.org/mongo-driver/bson"
)

type Service struct {
	tasks store.Collection[Task]
}

func NewService(c store.Collection[Task]) *Service {
	return &Service{tasks: c}
}

// Tasks exposes the collection to packages that write tasks in bulk.
func (s *Service) Tasks() store.Collection[Task] { return s.tasks }

func validKind(k Kind) bool {
	return k == KindTask || k == KindEvent
}

func validPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func normalizeTimes(start, end time.Time) (time.Time, time.Time, error) {
	if start.IsZero() {
		return start, end, httpx.Invalidf("start is required")
	}
	start = store.Now(start)
	if end.IsZero() {
		end = start.Add(DefaultDuration)
	}
	end = store.Now(end)
	if end.Before(start) {
		return start, end, ErrInvalidRange
	}
	return start, end, nil
}

// Create stores a task or event for the owner. Ritual tasks cannot be created
// through here.
func (s *Service) Create(ctx context.Context, tenant, owner string, t *Task) (*Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return nil, httpx.Invalidf("title is required")
	}
	if t.Kind == "" {
		t.Kind = KindTask
	}
	if !validKind(t.Kind) {
		return nil, httpx.Invalidf("kind must be task or event")
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if !validPriority(t.Priority) {
		return nil, httpx.Invalidf("priority must be low, medium or high")
	}
	var err error
	if t.Start, t.End, err = normalizeTimes(t.Start, t.End); err != nil {
		return nil, err
	}
	t.Meta = store.Meta{TenantID: tenant}
	t.Ritual = ""
	if t.OwnerID == "" {
		t.OwnerID = owner
	}
	if err := s.tasks.Insert(ctx, t); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, tenant, id string) (*Task, error) {
	return s.tasks.Get(ctx, tenant, id)
}

func (s *Service) List(ctx context.Context, tenant string, f ListFilter) ([]*Task, error) {
	q := store.ForTenant(tenant).SortBy("start").Take(f.Limit)
	if !f.From.IsZero() || !f.To.IsZero() {
		q = q.Between("start", f.From, f.To)
	}
	if f.OwnerID != "" {
		q = q.Where("ownerId", f.OwnerID)
	}
	if f.ProjectID != "" {
		q = q.Where("projectId", f.ProjectID)
	}
	if f.ContactID != "" {
		q = q.Where("contactId", f.ContactID)
	}
	if f.Kind != "" {
		q = q.Where("kind", string(f.Kind))
	}
	if f.Done != nil {
		q = q.Where("done", *f.Done)
	}
	return s.tasks.Find(ctx, q)
}

func (s *Service) Update(ctx context.Context, tenant, id string, p Patch) (*Task, error) {
	cur, err := s.tasks.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if cur.Kind == KindRitual && !p.onlyDone() {
		return nil, ErrRitualLocked
	}
	set := bson.M{}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, httpx.Invalidf("title is required")
		}
		set["title"] = title
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Kind != nil {
		if !validKind(*p.Kind) {
			return nil, httpx.Invalidf("kind must be task or event")
		}
		set["kind"] = string(*p.Kind)
	}
	if p.Priority != nil {
		if !validPriority(*p.Priority) {
			return nil, httpx.Invalidf("priority must be low, medium or high")
		}
		set["priority"] = string(*p.Priority)
	}
	if p.AllDay != nil {
		set["allDay"] = *p.AllDay
	}
	if p.Done != nil {
		set["done"] = *p.Done
	}
	if p.ProjectID != nil {
		set["projectId"] = *p.ProjectID
	}
	if p.ContactID != nil {
		set["contactId"] = *p.ContactID
	}
	if p.Start != nil || p.End != nil {
		start, end := cur.Start, cur.End
		if p.Start != nil {
			// a new start without a new end keeps the duration
			end = p.Start.Add(cur.Duration())
			start = *p.Start
		}
		if p.End != nil {
			end = *p.End
		}
		if start, end, err = normalizeTimes(start, end); err != nil {
			return nil, err
		}
		set["start"], set["end"] = start, end
	}
	return s.tasks.Update(ctx, tenant, id, set)
}

// Move shifts a task to a new start, keeping its duration. This is what a
// calendar drop does.
func (s *Service) Move(ctx context.Context, tenant, id string, start time.Time) (*Task, error) {
	if start.IsZero() {
		return nil, httpx.Invalidf("start is required")
	}
	cur, err := s.tasks.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if cur.Kind == KindRitual {
		return nil, ErrRitualLocked
	}
	start = store.Now(start)
	return s.tasks.Update(ctx, tenant, id, bson.M{"start": start, "end": start.Add(cur.Duration())})
}

func (s *Service) SetDone(ctx context.Context, tenant, id string, done bool) (*Task, error) {
	return s.tasks.Update(ctx, tenant, id, bson.M{"done": done})
}

func (s *Service) Delete(ctx context.Context, tenant, id string) error {
	cur, err := s.tasks.Get(ctx, tenant, id)
	if err != nil {
		return err
	}
	if cur.Kind == KindRitual {
		return ErrRitualLocked
	}
	return s.tasks.Delete(ctx, tenant, id)
}

// Due returns the owner's open tasks starting in [from, to).
func (s *Service) Due(ctx context.Context, tenant, owner string, from, to time.Time) ([]*Task, error) {
	done := false
	return s.List(ctx, tenant, ListFilter{From: from, To: to, OwnerID: owner, Done: &done})
}
