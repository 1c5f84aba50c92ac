package contacts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/internal/store"
	"github.com/deskhub/deskhub/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
)

type Service struct {
	contacts store.Collection[Contact]
	accounts AccountProvisioner
}

func NewService(c store.Collection[Contact], accounts AccountProvisioner) *Service {
	return &Service{contacts: c, accounts: accounts}
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]bool{}
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return httpx.Invalidf("email %q is not a valid address", email)
	}
	return nil
}

// Create stores the contact and provisions its client account. The contact is
// removed again when provisioning fails.
func (s *Service) Create(ctx context.Context, tenant string, c *Contact) (*Contact, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	if c.Name == "" {
		return nil, httpx.Invalidf("name is required")
	}
	if err := validateEmail(c.Email); err != nil {
		return nil, err
	}
	c.Tags = normalizeTags(c.Tags)
	c.ID, c.ClientAccountID = "", ""
	c.TenantID = tenant
	if err := s.contacts.Insert(ctx, c); err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}

	accountID, err := s.accounts.ProvisionAccount(ctx, tenant, c.ID, c.Name)
	if err != nil {
		if derr := s.contacts.Delete(ctx, tenant, c.ID); derr != nil {
			logger.Errorf("contacts: rollback of %s failed: %v", c.ID, derr)
		}
		return nil, fmt.Errorf("provision client account: %w", err)
	}
	updated, err := s.contacts.Update(ctx, tenant, c.ID, bson.M{"clientAccountId": accountID})
	if err != nil {
		return nil, fmt.Errorf("link client account: %w", err)
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, tenant, id string) (*Contact, error) {
	return s.contacts.Get(ctx, tenant, id)
}

func (s *Service) List(ctx context.Context, tenant string, f ListFilter) ([]*Contact, error) {
	q := store.ForTenant(tenant).Matching(f.Search, "name", "email", "company").SortBy("name").Take(f.Limit)
	if tag := strings.ToLower(strings.TrimSpace(f.Tag)); tag != "" {
		q = q.Where("tags", tag)
	}
	return s.contacts.Find(ctx, q)
}

func (s *Service) Count(ctx context.Context, tenant string) (int64, error) {
	return s.contacts.Count(ctx, store.ForTenant(tenant))
}

// Update applies the patch; a new name is carried over to the client account.
func (s *Service) Update(ctx context.Context, tenant, id string, p Patch) (*Contact, error) {
	cur, err := s.contacts.Get(ctx, tenant, id)
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
	if p.Email != nil {
		email := strings.TrimSpace(*p.Email)
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		set["email"] = email
	}
	if p.Phone != nil {
		set["phone"] = *p.Phone
	}
	if p.Company != nil {
		set["company"] = *p.Company
	}
	if p.Address != nil {
		set["address"] = *p.Address
	}
	if p.Notes != nil {
		set["notes"] = *p.Notes
	}
	if p.Tags != nil {
		set["tags"] = normalizeTags(*p.Tags)
	}
	updated, err := s.contacts.Update(ctx, tenant, id, set)
	if err != nil {
		return nil, err
	}
	if updated.Name != cur.Name && updated.ClientAccountID != "" {
		if err := s.accounts.RenameAccount(ctx, tenant, updated.ClientAccountID, updated.Name); err != nil {
			return nil, fmt.Errorf("rename client account: %w", err)
		}
	}
	return updated, nil
}

// Delete removes the contact and its client account.
func (s *Service) Delete(ctx context.Context, tenant, id string) error {
	cur, err := s.contacts.Get(ctx, tenant, id)
	if err != nil {
		return err
	}
	if cur.ClientAccountID != "" {
		err := s.accounts.RemoveAccount(ctx, tenant, cur.ClientAccountID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("remove client account: %w", err)
		}
	}
	return s.contacts.Delete(ctx, tenant, id)
}
