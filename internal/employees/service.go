package employees

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/internal/store"
	"go.mongodb.org/mongo-driver/bson"
)

type Service struct {
	employees store.Collection[Employee]
}

func NewService(c store.Collection[Employee]) *Service {
	return &Service{employees: c}
}

func checkEmail(email string) error {
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return httpx.Invalidf("email %q is not a valid address", email)
	}
	return nil
}

// Create stores a new employee. Callers decide Active; the HTTP layer
// defaults it to true.
func (s *Service) Create(ctx context.Context, tenant string, e *Employee) (*Employee, error) {
	e.FullName = strings.TrimSpace(e.FullName)
	e.Email = strings.TrimSpace(e.Email)
	e.Department = strings.TrimSpace(e.Department)
	if e.FullName == "" {
		return nil, httpx.Invalidf("fullName is required")
	}
	if err := checkEmail(e.Email); err != nil {
		return nil, err
	}
	if e.HourlyCostCents < 0 {
		return nil, httpx.Invalidf("hourlyCostCents must not be negative")
	}
	if e.HireDate != nil {
		d := store.Now(*e.HireDate)
		e.HireDate = &d
	}
	e.Meta = store.Meta{TenantID: tenant}
	if err := s.employees.Insert(ctx, e); err != nil {
		return nil, fmt.Errorf("insert employee: %w", err)
	}
	return e, nil
}

func (s *Service) Get(ctx context.Context, tenant, id string) (*Employee, error) {
	return s.employees.Get(ctx, tenant, id)
}

func (s *Service) List(ctx context.Context, tenant string, f ListFilter) ([]*Employee, error) {
	q := store.ForTenant(tenant).Matching(f.Search, "fullName", "email", "position").SortBy("fullName")
	if f.Department != "" {
		q = q.Where("department", f.Department)
	}
	if f.Active != nil {
		q = q.Where("active", *f.Active)
	}
	return s.employees.Find(ctx, q)
}

func (s *Service) Update(ctx context.Context, tenant, id string, p Patch) (*Employee, error) {
	set := bson.M{}
	if p.FullName != nil {
		name := strings.TrimSpace(*p.FullName)
		if name == "" {
			return nil, httpx.Invalidf("fullName is required")
		}
		set["fullName"] = name
	}
	if p.Email != nil {
		email := strings.TrimSpace(*p.Email)
		if err := checkEmail(email); err != nil {
			return nil, err
		}
		set["email"] = email
	}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	if p.Position != nil {
		set["position"] = *p.Position
	}
	if p.Department != nil {
		set["department"] = strings.TrimSpace(*p.Department)
	}
	if p.HireDate != nil {
		set["hireDate"] = store.Now(*p.HireDate)
	}
	if p.Active != nil {
		set["active"] = *p.Active
	}
	if p.HourlyCostCents != nil {
		if *p.HourlyCostCents < 0 {
			return nil, httpx.Invalidf("hourlyCostCents must not be negative")
		}
		set["hourlyCostCents"] = *p.HourlyCostCents
	}
	return s.employees.Update(ctx, tenant, id, set)
}

func (s *Service) Delete(ctx context.Context, tenant, id string) error {
	return s.employees.Delete(ctx, tenant, id)
}
