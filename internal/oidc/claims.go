package oidc

import (
	"context"
	"errors"

	"github.com/openlearn/openlearn/backend/go-services/pkg/middleware"
)

// NormalizeClaims lifts Keycloak realm roles (realm_access.roles) into a
// top-level "roles" claim and fills "username" from preferred_username, so
// Keycloak tokens look like locally issued access tokens.
func NormalizeClaims(claims map[string]interface{}) map[string]interface{} {
	if claims == nil {
		return nil
	}
	if _, ok := claims["roles"]; !ok {
		roles := []interface{}{}
		if ra, ok := claims["realm_access"].(map[string]interface{}); ok {
			if list, ok := ra["roles"].([]interface{}); ok {
				roles = list
			}
		}
		claims["roles"] = roles
	}
	if _, ok := claims["username"]; !ok {
		if u, ok := claims["preferred_username"].(string); ok {
			claims["username"] = u
		}
	}
	return claims
}

type normalizedToken struct {
	inner middleware.Token
}

func (t normalizedToken) Claims(v interface{}) error {
	m, ok := v.(*map[string]interface{})
	if !ok {
		return t.inner.Claims(v)
	}
	if err := t.inner.Claims(m); err != nil {
		return err
	}
	*m = NormalizeClaims(*m)
	return nil
}

// Chain tries each verifier in order and returns the first token that
// verifies. Claims decoded into a map are normalized.
type Chain []middleware.Verifier

var ErrNoVerifier = errors.New("no verifier accepted the token")

func (c Chain) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	err := ErrNoVerifier
	for _, v := range c {
		if v == nil {
			continue
		}
		tok, verr := v.Verify(ctx, raw)
		if verr == nil {
			return normalizedToken{inner: tok}, nil
		}
		err = verr
	}
	return nil, err
}
