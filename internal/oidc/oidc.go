package oidc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/openlearn/openlearn/backend/go-services/internal/config"
	"github.com/openlearn/openlearn/backend/go-services/pkg/logger"
	"github.com/openlearn/openlearn/backend/go-services/pkg/middleware"
)

// Issuer returns the Keycloak realm issuer URL. Without a realm the URL is
// taken as the issuer itself.
func Issuer(kc config.KeycloakConfig) string {
	if kc.Realm == "" {
		return kc.URL
	}
	return strings.TrimRight(kc.URL, "/") + "/realms/" + kc.Realm
}

// Verifier checks Keycloak ID tokens. Provider discovery happens on first
// use and is retried until it succeeds, so the API can start before
// Keycloak does.
type Verifier struct {
	issuer   string
	clientID string

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
}

func NewVerifier(issuer, clientID string) *Verifier {
	return &Verifier{issuer: issuer, clientID: clientID}
}

// NewKeycloakVerifier builds a verifier for the configured realm and tries
// discovery once; a failure is logged and retried on the next Verify.
func NewKeycloakVerifier(ctx context.Context, kc config.KeycloakConfig) *Verifier {
	v := NewVerifier(Issuer(kc), kc.ClientID)
	if _, err := v.idTokenVerifier(ctx); err != nil {
		logger.With("issuer", v.issuer).Warnf("%v", err)
	}
	return v
}

func (v *Verifier) idTokenVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.verifier != nil {
		return v.verifier, nil
	}
	provider, err := oidc.NewProvider(ctx, v.issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	v.verifier = provider.Verifier(&oidc.Config{ClientID: v.clientID})
	return v.verifier, nil
}

// Verify checks raw and returns a token whose map claims are normalized.
func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	ver, err := v.idTokenVerifier(ctx)
	if err != nil {
		return nil, err
	}
	idToken, err := ver.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	return normalizedToken{inner: idToken}, nil
}

// VerifyClaims verifies raw with ver and returns its normalized claims.
func VerifyClaims(ctx context.Context, ver middleware.Verifier, raw string) (map[string]interface{}, error) {
	tok, err := ver.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	var claims map[string]interface{}
	if err := tok.Claims(&claims); err != nil {
		return nil, err
	}
	return NormalizeClaims(claims), nil
}
