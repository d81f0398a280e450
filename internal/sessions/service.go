package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/openlearn/openlearn/backend/go-services/pkg/logger"
)

// ErrInvalidRefresh is returned for unknown, used or expired refresh tokens.
var ErrInvalidRefresh = errors.New("invalid refresh token")

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(r Repository) *Service { return &Service{repo: r, now: time.Now} }

func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (s *Service) create(ctx context.Context, sub, username string, generation int, ttl time.Duration) (string, error) {
	token, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	sess := &Session{
		RefreshToken: token,
		Sub:          sub,
		Username:     username,
		Generation:   generation,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", err
	}
	return token, nil
}

// CreateSession starts a session for a user who just logged in and returns
// its refresh token.
func (s *Service) CreateSession(ctx context.Context, sub, username string, ttl time.Duration) (string, error) {
	return s.create(ctx, sub, username, 0, ttl)
}

// Rotate consumes refresh and issues its successor. The returned session is
// the consumed one.
func (s *Service) Rotate(ctx context.Context, refresh string, ttl time.Duration) (*Session, string, error) {
	sess, err := s.repo.Take(ctx, refresh)
	if err != nil {
		return nil, "", err
	}
	if sess == nil || sess.expired(s.now().UTC()) {
		return nil, "", ErrInvalidRefresh
	}
	next, err := s.create(ctx, sess.Sub, sess.Username, sess.Generation+1, ttl)
	if err != nil {
		return nil, "", err
	}
	logger.With("user", sess.Sub, "generation", sess.Generation+1).Debugf("refresh token rotated")
	return sess, next, nil
}

// Revoke ends the session of refresh. Unknown tokens are ignored.
func (s *Service) Revoke(ctx context.Context, refresh string) error {
	return s.repo.DeleteByRefresh(ctx, refresh)
}
