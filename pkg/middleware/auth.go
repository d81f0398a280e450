package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openlearn/openlearn/backend/go-services/internal/sessions"
	"github.com/openlearn/openlearn/backend/go-services/pkg/logger"
)

// ClaimsKey is the gin context key holding the verified claims map.
const ClaimsKey = "claims"

// CronSecretHeader carries the shared secret of cron requests.
const CronSecretHeader = "X-Cron-Secret"

// Token is a verified token whose claims can be decoded.
type Token interface {
	Claims(v interface{}) error
}

// Verifier turns a raw bearer token into a Token.
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

type authError struct {
	status int
	msg    string
}

var (
	errNoHeader  = &authError{http.StatusUnauthorized, "missing Authorization header"}
	errBadHeader = &authError{http.StatusUnauthorized, "invalid Authorization header"}
	errRevoked   = &authError{http.StatusUnauthorized, "token revoked"}
	errInvalid   = &authError{http.StatusUnauthorized, "invalid token"}
	errClaims    = &authError{http.StatusUnauthorized, "failed to parse claims"}
)

func bearer(header string) (string, *authError) {
	if header == "" {
		return "", errNoHeader
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errBadHeader
	}
	return token, nil
}

func authenticate(ctx context.Context, ver Verifier, header string) (map[string]interface{}, *authError) {
	token, aerr := bearer(header)
	if aerr != nil {
		return nil, aerr
	}
	revoked, err := sessions.IsAccessTokenBlacklisted(ctx, token)
	if err != nil {
		logger.Warnf("blacklist lookup failed: %v", err)
	}
	if revoked {
		return nil, errRevoked
	}
	tok, err := ver.Verify(ctx, token)
	if err != nil {
		logger.With("error", err.Error()).Debugf("bearer token rejected")
		return nil, errInvalid
	}
	var claims map[string]interface{}
	if err := tok.Claims(&claims); err != nil {
		return nil, errClaims
	}
	return claims, nil
}

func authHandler(ver Verifier, optional bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if optional && header == "" {
			c.Next()
			return
		}
		claims, aerr := authenticate(c.Request.Context(), ver, header)
		if aerr != nil {
			c.AbortWithStatusJSON(aerr.status, gin.H{"error": aerr.msg})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// AuthMiddleware requires a valid Bearer token and stores its claims under
// ClaimsKey.
func AuthMiddleware(ver Verifier) gin.HandlerFunc { return authHandler(ver, false) }

// OptionalAuth sets claims when a Bearer token is present and lets anonymous
// requests through. A bad token is still rejected.
func OptionalAuth(ver Verifier) gin.HandlerFunc { return authHandler(ver, true) }

// RequireRole rejects requests whose claims carry none of roles. It must run
// after AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, r := range roles {
			if HasRole(c, r) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "You do not have credentials to access this page."})
	}
}

// CronGuard checks the shared cron secret. An empty secret leaves the routes
// open, which is only allowed outside prod.
func CronGuard(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(CronSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid cron secret"})
			return
		}
		c.Next()
	}
}

// Claims returns the verified claims, or nil for anonymous requests.
func Claims(c *gin.Context) map[string]interface{} {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]interface{})
	return m
}

// UserID returns the "sub" claim, or "" for anonymous requests.
func UserID(c *gin.Context) string {
	sub, _ := Claims(c)["sub"].(string)
	return sub
}

// Roles returns the "roles" claim as strings.
func Roles(c *gin.Context) []string {
	var out []string
	switch v := Claims(c)["roles"].(type) {
	case []string:
		out = append(out, v...)
	case []interface{}:
		for _, r := range v {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func HasRole(c *gin.Context, role string) bool {
	for _, r := range Roles(c) {
		if r == role {
			return true
		}
	}
	return false
}
