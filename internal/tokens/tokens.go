package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/deskhub/deskhub/internal/config"
	"github.com/deskhub/deskhub/internal/models"
	"github.com/deskhub/deskhub/pkg/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is the iss claim of every access token this service mints.
const Issuer = "deskhub"

// GenerateAccessToken signs an HS256 access token for u. Users without a
// tenant act in their personal workspace.
func GenerateAccessToken(cfg *config.Config, u *models.User, ttl time.Duration) (string, error) {
	tenant := u.Tenant
	if tenant == "" {
		tenant = u.Sub
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":    Issuer,
		"jti":    uuid.NewString(),
		"sub":    u.Sub,
		"name":   u.Name,
		"email":  u.Email,
		"tenant": tenant,
		"iat":    now.Unix(),
		"exp":    now.Add(ttl).Unix(),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(cfg.JWT.Secret))
}

// Verifier checks access tokens issued by GenerateAccessToken.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier { return &Verifier{secret: []byte(secret)} }

type claimsToken struct {
	claims jwt.MapClaims
}

func (t *claimsToken) Claims(v interface{}) error {
	m, ok := v.(*map[string]interface{})
	if !ok {
		return errors.New("claims: unsupported target type")
	}
	*m = map[string]interface{}(t.claims)
	return nil
}

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	if len(v.secret) == 0 {
		return nil, errors.New("jwt secret not configured")
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(Issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return &claimsToken{claims: claims}, nil
}
