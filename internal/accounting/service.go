package accounting

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
	st  Stores
	seq Sequencer
	now func() time.Time
}

// NewService builds the accounting service. A nil sequencer falls back to
// numbering from the stored invoices.
func NewService(st Stores, seq Sequencer) *Service {
	if seq == nil {
		seq = NewStoreSequencer(st.Invoices)
	}
	return &Service{st: st, seq: seq, now: time.Now}
}

// ProvisionAccount creates the client account for a new contact.
func (s *Service) ProvisionAccount(ctx context.Context, tenant, contactID, name string) (string, error) {
	a := &ClientAccount{ContactID: contactID, Name: name, Currency: DefaultCurrency}
	a.TenantID = tenant
	if err := s.st.Accounts.Insert(ctx, a); err != nil {
		return "", err
	}
	return a.ID, nil
}

func (s *Service) RenameAccount(ctx context.Context, tenant, accountID, name string) error {
	_, err := s.st.Accounts.Update(ctx, tenant, accountID, bson.M{"name": name})
	return err
}

// RemoveAccount deletes the account and its unbilled time. Invoiced time logs
// stay with their invoices.
func (s *Service) RemoveAccount(ctx context.Context, tenant, accountID string) error {
	if err := s.st.Accounts.Delete(ctx, tenant, accountID); err != nil {
		return err
	}
	_, err := s.st.TimeLogs.DeleteWhere(ctx, store.ForTenant(tenant).Where("accountId", accountID).Where("invoiceId", ""))
	return err
}

func (s *Service) GetAccount(ctx context.Context, tenant, id string) (*ClientAccount, error) {
	return s.st.Accounts.Get(ctx, tenant, id)
}

func (s *Service) ListAccounts(ctx context.Context, tenant, search string) ([]*ClientAccount, error) {
	return s.st.Accounts.Find(ctx, store.ForTenant(tenant).Matching(search, "name").SortBy("name"))
}

type AccountPatch struct {
	HourlyRateCents *int64  `json:"hourlyRateCents"`
	Currency        *string `json:"currency"`
}

func (s *Service) UpdateAccount(ctx context.Context, tenant, id string, p AccountPatch) (*ClientAccount, error) {
	set := bson.M{}
	if p.HourlyRateCents != nil {
		if *p.HourlyRateCents < 0 {
			return nil, httpx.Invalidf("hourlyRateCents must not be negative")
		}
		set["hourlyRateCents"] = *p.HourlyRateCents
	}
	if p.Currency != nil {
		cur, err := normalizeCurrency(*p.Currency)
		if err != nil {
			return nil, err
		}
		set["currency"] = cur
	}
	return s.st.Accounts.Update(ctx, tenant, id, set)
}

func normalizeCurrency(c string) (string, error) {
	c = strings.ToUpper(strings.TrimSpace(c))
	if len(c) != 3 {
		return "", httpx.Invalidf("currency must be a three-letter code")
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", httpx.Invalidf("currency must be a three-letter code")
		}
	}
	return c, nil
}

func (s *Service) requireAccount(ctx context.Context, tenant, id string) (*ClientAccount, error) {
	if id == "" {
		return nil, httpx.Invalidf("accountId is required")
	}
	a, err := s.st.Accounts.Get(ctx, tenant, id)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", id, err)
	}
	return a, nil
}
