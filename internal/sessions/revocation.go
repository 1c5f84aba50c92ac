package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "revoked:access:"

// revocations holds access tokens invalidated before they expire. Nil disables
// revocation; tokens then stay valid until their exp claim.
var revocations *redis.Client

// SetRevocationClient configures the Redis client backing access-token revocation.
func SetRevocationClient(c *redis.Client) {
	revocations = c
}

// RevocationKey is the Redis key for token. Only the SHA-256 digest is stored.
func RevocationKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return revokedPrefix + hex.EncodeToString(sum[:])
}

// RevokeAccessToken rejects token until expiresAt. Tokens already expired are
// not stored.
func RevokeAccessToken(ctx context.Context, token string, expiresAt time.Time) error {
	if revocations == nil {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return revocations.Set(ctx, RevocationKey(token), expiresAt.UTC().Format(time.RFC3339), ttl).Err()
}

func IsAccessTokenRevoked(ctx context.Context, token string) (bool, error) {
	if revocations == nil {
		return false, nil
	}
	n, err := revocations.Exists(ctx, RevocationKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
