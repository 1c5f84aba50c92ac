// Package oidc verifies ID tokens issued by the Keycloak realm users sign in with.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/deskhub/deskhub/internal/config"
	"github.com/deskhub/deskhub/pkg/middleware"
)

// Verifier checks ID token signatures against the realm's published keys.
type Verifier struct {
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
}

// NewVerifier discovers the realm configured in kc. Without a client id the
// audience check is skipped so tokens minted for any realm client pass.
func NewVerifier(ctx context.Context, kc config.KeycloakConfig) (*Verifier, error) {
	if kc.URL == "" {
		return nil, errors.New("keycloak url not configured")
	}
	provider, err := oidc.NewProvider(ctx, Issuer(kc.URL, kc.Realm))
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	cfg := &oidc.Config{ClientID: kc.ClientID, SkipClientIDCheck: kc.ClientID == ""}
	return &Verifier{provider: provider, verifier: provider.Verifier(cfg)}, nil
}

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	if idToken.Subject == "" {
		return nil, errors.New("id token has no subject")
	}
	return idToken, nil
}

// TokenURL is the token endpoint advertised by the provider's discovery document.
func (v *Verifier) TokenURL() string {
	return v.provider.Endpoint().TokenURL
}

// Issuer builds the Keycloak realm issuer URL.
func Issuer(baseURL, realm string) string {
	if realm == "" {
		return baseURL
	}
	return strings.TrimRight(baseURL, "/") + "/realms/" + realm
}

// TokenEndpoint is the conventional Keycloak token endpoint of a realm.
func TokenEndpoint(baseURL, realm string) string {
	return Issuer(baseURL, realm) + "/protocol/openid-connect/token"
}
