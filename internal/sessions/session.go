package sessions

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Session is a refresh session. Only the digest of the refresh token is
// persisted; the token itself is handed to the client once.
type Session struct {
	ID        string    `bson:"_id" json:"id"`
	Sub       string    `bson:"sub" json:"sub"`
	Tenant    string    `bson:"tenant" json:"tenant"`
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

func (s *Session) Expired(now time.Time) bool { return !now.Before(s.ExpiresAt) }

// Digest returns the storage id for a refresh token.
func Digest(refresh string) string {
	sum := sha256.Sum256([]byte(refresh))
	return hex.EncodeToString(sum[:])
}
