package oidc

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/deskhub/deskhub/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(s string) string {
	return "hdr." + base64.RawURLEncoding.EncodeToString([]byte(s)) + ".sig"
}

func TestInsecureVerifier_DecodesPayload(t *testing.T) {
	tok, err := NewInsecureVerifier().Verify(context.Background(), payload(`{"sub":"u1","org_id":"acme"}`))
	require.NoError(t, err)

	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	assert.Equal(t, "u1", claims["sub"])
	assert.Equal(t, "acme", claims["org_id"])
}

func TestInsecureVerifier_Rejects(t *testing.T) {
	v := NewInsecureVerifier()
	v.now = func() time.Time { return time.Unix(2000, 0) }

	for name, raw := range map[string]string{
		"not a jwt":   "garbage",
		"two parts":   "a.b",
		"bad base64":  "hdr.!!!.sig",
		"not json":    "hdr." + base64.RawURLEncoding.EncodeToString([]byte("nope")) + ".sig",
		"expired":     payload(`{"sub":"u1","exp":1999}`),
		"expires now": payload(`{"sub":"u1","exp":2000}`),
	} {
		_, err := v.Verify(context.Background(), raw)
		assert.Error(t, err, name)
	}

	_, err := v.Verify(context.Background(), payload(`{"sub":"u1","exp":2001}`))
	assert.NoError(t, err)
}

func TestIssuer(t *testing.T) {
	assert.Equal(t, "http://kc:8080/realms/deskhub", Issuer("http://kc:8080/", "deskhub"))
	assert.Equal(t, "http://kc:8080/realms/x", Issuer("http://kc:8080/realms/x", ""))
	assert.Equal(t, "http://kc:8080/realms/deskhub/protocol/openid-connect/token", TokenEndpoint("http://kc:8080", "deskhub"))
}

func TestNewVerifier_RequiresURL(t *testing.T) {
	_, err := NewVerifier(context.Background(), config.KeycloakConfig{})
	assert.Error(t, err)
}
