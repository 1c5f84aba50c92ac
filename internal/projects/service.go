package projects

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
	projects store.Collection[Project]
}

func NewService(c store.Collection[Project]) *Service {
	return &Service{projects: c}
}

func checkSchedule(start, due *time.Time) error {
	if start != nil && due != nil && due.Before(*start) {
		return httpx.Invalidf("dueDate must not be before startDate")
	}
	return nil
}

func normalizeDate(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	n := store.Now(*t)
	return &n
}

func (s *Service) Create(ctx context.Context, tenant string, p *Project) (*Project, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, httpx.Invalidf("name is required")
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	if !p.Status.Valid() {
		return nil, httpx.Invalidf("unknown status %q", p.Status)
	}
	if p.BudgetCents < 0 {
		return nil, httpx.Invalidf("budgetCents must not be negative")
	}
	p.StartDate, p.DueDate = normalizeDate(p.StartDate), normalizeDate(p.DueDate)
	if err := checkSchedule(p.StartDate, p.DueDate); err != nil {
		return nil, err
	}
	p.Meta = store.Meta{TenantID: tenant}
	if err := s.projects.Insert(ctx, p); err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, tenant, id string) (*Project, error) {
	return s.projects.Get(ctx, tenant, id)
}

func (s *Service) List(ctx context.Context, tenant string, f ListFilter) ([]*Project, error) {
	q := store.ForTenant(tenant).Matching(f.Search, "name", "description").SortBy("name")
	if f.Status != "" {
		q = q.Where("status", string(f.Status))
	}
	if f.ContactID != "" {
		q = q.Where("contactId", f.ContactID)
	}
	return s.projects.Find(ctx, q)
}

func (s *Service) Update(ctx context.Context, tenant, id string, p Patch) (*Project, error) {
	cur, err := s.projects.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	set := bson.M{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, httpx.Invalidf("name is required")
		}
		set["name"] = name
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.ContactID != nil {
		set["contactId"] = *p.ContactID
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return nil, httpx.Invalidf("unknown status %q", *p.Status)
		}
		set["status"] = string(*p.Status)
	}
	if p.BudgetCents != nil {
		if *p.BudgetCents < 0 {
			return nil, httpx.Invalidf("budgetCents must not be negative")
		}
		set["budgetCents"] = *p.BudgetCents
	}
	start, due := cur.StartDate, cur.DueDate
	if p.StartDate != nil {
		start = normalizeDate(p.StartDate)
		set["startDate"] = start
	}
	if p.DueDate != nil {
		due = normalizeDate(p.DueDate)
		set["dueDate"] = due
	}
	if err := checkSchedule(start, due); err != nil {
		return nil, err
	}
	return s.projects.Update(ctx, tenant, id, set)
}

func (s *Service) Delete(ctx context.Context, tenant, id string) error {
	return s.projects.Delete(ctx, tenant, id)
}
