package accounting

import (
	"context"
	"fmt"
	"time"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/internal/store"
)

type TimeLogFilter struct {
	AccountID string
	ProjectID string
	From, To  time.Time
	Unbilled  bool
}

func (s *Service) CreateTimeLog(ctx context.Context, tenant, user string, l *TimeLog) (*TimeLog, error) {
	if l.Minutes <= 0 {
		return nil, httpx.Invalidf("minutes must be positive")
	}
	if _, err := s.requireAccount(ctx, tenant, l.AccountID); err != nil {
		return nil, err
	}
	if l.Date.IsZero() {
		l.Date = s.now()
	}
	l.Date = store.Now(l.Date)
	l.ID, l.InvoiceID = "", ""
	l.TenantID = tenant
	if l.UserID == "" {
		l.UserID = user
	}
	if err := s.st.TimeLogs.Insert(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) ListTimeLogs(ctx context.Context, tenant string, f TimeLogFilter) ([]*TimeLog, error) {
	q := store.ForTenant(tenant).SortBy("date")
	if f.AccountID != "" {
		q = q.Where("accountId", f.AccountID)
	}
	if f.ProjectID != "" {
		q = q.Where("projectId", f.ProjectID)
	}
	if f.Unbilled {
		q = q.Where("invoiceId", "")
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		q = q.Between("date", f.From, f.To)
	}
	return s.st.TimeLogs.Find(ctx, q)
}

// DeleteTimeLog removes an unbilled entry; invoiced time is part of the invoice.
func (s *Service) DeleteTimeLog(ctx context.Context, tenant, id string) error {
	l, err := s.st.TimeLogs.Get(ctx, tenant, id)
	if err != nil {
		return err
	}
	if l.InvoiceID != "" {
		return fmt.Errorf("%w: time log is billed on invoice %s", httpx.ErrState, l.InvoiceID)
	}
	return s.st.TimeLogs.Delete(ctx, tenant, id)
}
