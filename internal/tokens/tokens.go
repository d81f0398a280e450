// Package tokens issues and checks the HS256 access tokens handed out by the
// auth endpoints.
package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/openlearn/openlearn/backend/go-services/internal/config"
	"github.com/openlearn/openlearn/backend/go-services/internal/models"
	"github.com/openlearn/openlearn/backend/go-services/pkg/middleware"
)

// Issuer is the iss claim of every locally issued token.
const Issuer = "openlearn"

var ErrNoExpiry = errors.New("token has no exp claim")

// AccessClaims carries the user's roles so handlers authorize without a
// user lookup.
type AccessClaims struct {
	Name     string   `json:"name,omitempty"`
	Email    string   `json:"email,omitempty"`
	Username string   `json:"username,omitempty"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

var now = time.Now

func GenerateAccessToken(cfg *config.Config, u *models.User, ttl time.Duration) (string, error) {
	issued := now()
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	claims := AccessClaims{
		Name:     u.Name,
		Email:    u.Email,
		Username: u.Username,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   u.Sub,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWT.Secret))
}

// Verifier checks tokens from GenerateAccessToken and satisfies
// middleware.Verifier.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(Issuer),
			jwt.WithTimeFunc(func() time.Time { return now() }),
		),
	}
}

type accessToken struct{ claims *AccessClaims }

// Claims exposes the token as the flat map the middleware stores.
func (t accessToken) Claims(v interface{}) error {
	data, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (v *Verifier) Verify(_ context.Context, raw string) (middleware.Token, error) {
	claims := &AccessClaims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}); err != nil {
		return nil, err
	}
	if claims.ExpiresAt == nil {
		return nil, ErrNoExpiry
	}
	return accessToken{claims: claims}, nil
}
