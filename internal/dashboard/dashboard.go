// Package dashboard assembles the caller's overview from the other services.
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/deskhub/deskhub/internal/accounting"
	"github.com/deskhub/deskhub/internal/calendar"
	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/pkg/middleware"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	upcomingDays  = 7
	upcomingLimit = 10
)

type ContactCounter interface {
	Count(ctx context.Context, tenant string) (int64, error)
}

type Calendar interface {
	Due(ctx context.Context, tenant, owner string, from, to time.Time) ([]*calendar.Task, error)
	List(ctx context.Context, tenant string, f calendar.ListFilter) ([]*calendar.Task, error)
}

type Ledger interface {
	Summary(ctx context.Context, tenant string, from, to time.Time) (*accounting.Summary, error)
}

type FileCounter interface {
	CountFiles(ctx context.Context, tenant string) (int64, error)
}

type Overview struct {
	Contacts  int64               `json:"contacts"`
	DueToday  []*calendar.Task    `json:"dueToday"`
	Upcoming  []*calendar.Task    `json:"upcoming"`
	Invoices  *accounting.Summary `json:"invoices"`
	Files     int64               `json:"files"`
	Generated time.Time           `json:"generatedAt"`
}

type Service struct {
	contacts ContactCounter
	calendar Calendar
	ledger   Ledger
	files    FileCounter
	now      func() time.Time
}

func NewService(contacts ContactCounter, cal Calendar, ledger Ledger, files FileCounter) *Service {
	return &Service{contacts: contacts, calendar: cal, ledger: ledger, files: files, now: time.Now}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Overview queries all sources concurrently; the first failure cancels the rest.
// Day and month boundaries are taken in loc.
func (s *Service) Overview(ctx context.Context, tenant, user string, loc *time.Location) (*Overview, error) {
	now := s.now().In(loc)
	today := startOfDay(now)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	out := &Overview{Generated: now.UTC()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.contacts.Count(ctx, tenant)
		if err != nil {
			return fmt.Errorf("count contacts: %w", err)
		}
		out.Contacts = n
		return nil
	})
	g.Go(func() error {
		due, err := s.calendar.Due(ctx, tenant, user, today, today.AddDate(0, 0, 1))
		if err != nil {
			return fmt.Errorf("tasks due today: %w", err)
		}
		out.DueToday = due
		return nil
	})
	g.Go(func() error {
		events, err := s.calendar.List(ctx, tenant, calendar.ListFilter{
			From:  now,
			To:    now.AddDate(0, 0, upcomingDays),
			Kind:  calendar.KindEvent,
			Limit: upcomingLimit,
		})
		if err != nil {
			return fmt.Errorf("upcoming events: %w", err)
		}
		out.Upcoming = events
		return nil
	})
	g.Go(func() error {
		sum, err := s.ledger.Summary(ctx, tenant, monthStart, monthStart.AddDate(0, 1, 0))
		if err != nil {
			return fmt.Errorf("invoice summary: %w", err)
		}
		out.Invoices = sum
		return nil
	})
	g.Go(func() error {
		n, err := s.files.CountFiles(ctx, tenant)
		if err != nil {
			return fmt.Errorf("count files: %w", err)
		}
		out.Files = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/dashboard", h.get)
}

func (h *Handler) get(c *gin.Context) {
	loc := time.UTC
	if tz := c.Query("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			httpx.Abort(c, httpx.Invalidf("unknown time zone %q", tz))
			return
		}
		loc = l
	}
	tenant, user := middleware.Identity(c)
	o, err := h.svc.Overview(c.Request.Context(), tenant, user, loc)
	if err != nil {
		httpx.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
