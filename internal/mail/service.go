package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/internal/store"
	"github.com/deskhub/deskhub/pkg/logger"
	"github.com/deskhub/deskhub/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson"
)

type Service struct {
	messages store.Collection[Message]
	mailer   Mailer
	from     string
	now      func() time.Time
}

func NewService(messages store.Collection[Message], mailer Mailer, from string) *Service {
	return &Service{messages: messages, mailer: mailer, from: from, now: time.Now}
}

func (s *Service) CreateDraft(ctx context.Context, tenant, owner string, d Draft) (*Message, error) {
	to, err := cleanAddresses("to", d.To)
	if err != nil {
		return nil, err
	}
	cc, err := cleanAddresses("cc", d.Cc)
	if err != nil {
		return nil, err
	}
	m := &Message{
		OwnerID: owner, To: to, Cc: cc, Subject: strings.TrimSpace(d.Subject),
		Body: d.Body, ContactID: d.ContactID, Status: StatusDraft,
	}
	m.TenantID = tenant
	if err := s.messages.Insert(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) Get(ctx context.Context, tenant, id string) (*Message, error) {
	return s.messages.Get(ctx, tenant, id)
}

func (s *Service) List(ctx context.Context, tenant string, status Status) ([]*Message, error) {
	q := store.ForTenant(tenant).SortBy("-updatedAt")
	if status != "" {
		q = q.Where("status", string(status))
	}
	return s.messages.Find(ctx, q)
}

func (s *Service) UpdateDraft(ctx context.Context, tenant, id string, p Patch) (*Message, error) {
	cur, err := s.messages.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if cur.Status != StatusDraft {
		return nil, ErrNotEditable
	}
	set := bson.M{}
	if p.To != nil {
		to, err := cleanAddresses("to", *p.To)
		if err != nil {
			return nil, err
		}
		set["to"] = to
	}
	if p.Cc != nil {
		cc, err := cleanAddresses("cc", *p.Cc)
		if err != nil {
			return nil, err
		}
		set["cc"] = cc
	}
	if p.Subject != nil {
		set["subject"] = strings.TrimSpace(*p.Subject)
	}
	if p.Body != nil {
		set["body"] = *p.Body
	}
	if p.ContactID != nil {
		set["contactId"] = *p.ContactID
	}
	return s.messages.Update(ctx, tenant, id, set)
}

// Send delivers a draft or retries a failed message. The outcome is stored on
// the message; a delivery failure is not an error of the call.
func (s *Service) Send(ctx context.Context, tenant, id string) (*Message, error) {
	m, err := s.messages.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if m.Status == StatusSent {
		return nil, fmt.Errorf("%w: message was already sent", httpx.ErrState)
	}
	if err := m.sendable(); err != nil {
		return nil, err
	}
	if err := s.mailer.Send(ctx, s.from, m); err != nil {
		logger.Warnf("mail: send %s failed: %v", m.ID, err)
		metrics.MailSent.WithLabelValues("failed").Inc()
		return s.messages.Update(ctx, tenant, id, bson.M{"status": string(StatusFailed), "error": err.Error()})
	}
	metrics.MailSent.WithLabelValues("sent").Inc()
	sentAt := store.Now(s.now())
	return s.messages.Update(ctx, tenant, id, bson.M{"status": string(StatusSent), "sentAt": sentAt, "error": ""})
}

func (s *Service) Delete(ctx context.Context, tenant, id string) error {
	return s.messages.Delete(ctx, tenant, id)
}
