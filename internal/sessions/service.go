package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Service issues, validates and rotates refresh sessions.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(r Repository) *Service { return &Service{repo: r, now: time.Now} }

// CreateSession stores a new refresh session and returns the refresh token.
func (s *Service) CreateSession(ctx context.Context, sub, tenant string, ttl time.Duration) (string, error) {
	token, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	sess := &Session{
		ID:        Digest(token),
		Sub:       sub,
		Tenant:    tenant,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", err
	}
	return token, nil
}

// ValidateRefresh returns the session for a live refresh token, or nil.
func (s *Service) ValidateRefresh(ctx context.Context, refresh string) (*Session, error) {
	sess, err := s.repo.Get(ctx, Digest(refresh))
	if err != nil || sess == nil {
		return nil, err
	}
	if sess.Expired(s.now()) {
		_ = s.repo.Delete(ctx, sess.ID)
		return nil, nil
	}
	return sess, nil
}

// Rotate redeems a refresh token for a new one. Each token is redeemable once;
// unknown or expired tokens yield ("", nil, nil).
func (s *Service) Rotate(ctx context.Context, refresh string, ttl time.Duration) (string, *Session, error) {
	sess, err := s.repo.Take(ctx, Digest(refresh))
	if err != nil || sess == nil || sess.Expired(s.now()) {
		return "", nil, err
	}
	next, err := s.CreateSession(ctx, sess.Sub, sess.Tenant, ttl)
	if err != nil {
		return "", nil, err
	}
	return next, sess, nil
}

func (s *Service) DeleteRefresh(ctx context.Context, refresh string) error {
	return s.repo.Delete(ctx, Digest(refresh))
}

// EndAll removes every session of sub and reports how many were removed.
func (s *Service) EndAll(ctx context.Context, sub string) (int64, error) {
	return s.repo.DeleteBySub(ctx, sub)
}

func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
