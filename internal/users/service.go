package users

import (
	"context"
	"strings"

	"github.com/deskhub/deskhub/internal/models"
)

// Service maps identity-provider claims onto stored users.
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// UpsertFromClaims creates or refreshes the user named by the sub claim and
// returns nil when the claims carry no subject.
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	sub := claimString(claims, "sub")
	if sub == "" {
		return nil, nil
	}
	u := &models.User{
		Sub:    sub,
		Email:  strings.ToLower(claimString(claims, "email")),
		Name:   displayName(claims),
		Tenant: models.TenantFromClaims(claims),
	}
	return s.repo.UpsertBySub(ctx, u)
}

func (s *Service) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	return s.repo.GetBySub(ctx, sub)
}

// displayName falls back from name to given/family name, then to the login.
func displayName(claims map[string]interface{}) string {
	if n := claimString(claims, "name"); n != "" {
		return n
	}
	full := strings.TrimSpace(claimString(claims, "given_name") + " " + claimString(claims, "family_name"))
	if full != "" {
		return full
	}
	return claimString(claims, "preferred_username")
}

func claimString(claims map[string]interface{}, key string) string {
	v, _ := claims[key].(string)
	return strings.TrimSpace(v)
}
