package users

import (
	"context"

	"github.com/openlearn/openlearn/backend/go-services/internal/models"
)

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// UpsertFromClaims creates or updates a user using OIDC claims map. The
// username comes from preferred_username and falls back to the email.
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	username, _ := claims["preferred_username"].(string)
	if sub == "" {
		return nil, nil
	}
	if username == "" {
		username = email
	}
	u := &models.User{
		Sub:      sub,
		Email:    email,
		Name:     name,
		Username: username,
	}
	return s.repo.UpsertBySub(ctx, u)
}

func (s *Service) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	return s.repo.GetBySub(ctx, sub)
}

// GetByUsername returns (nil, nil) for unknown usernames.
func (s *Service) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *Service) AddRole(ctx context.Context, sub, role string) error {
	return s.repo.AddRole(ctx, sub, role)
}

// RecordTranslationTutorialStarted marks the tutorial as started for sub.
func (s *Service) RecordTranslationTutorialStarted(ctx context.Context, sub string) error {
	return s.repo.SetTranslationTutorialStarted(ctx, sub)
}
