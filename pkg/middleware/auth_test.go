package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearn/openlearn/backend/go-services/internal/sessions"
)

type mapToken map[string]interface{}

func (t mapToken) Claims(v interface{}) error {
	p, ok := v.(*map[string]interface{})
	if !ok {
		return errors.New("unsupported claims target")
	}
	*p = t
	return nil
}

// stubVerifier knows a fixed set of raw tokens.
type stubVerifier map[string]mapToken

func (s stubVerifier) Verify(_ context.Context, raw string) (Token, error) {
	if tok, ok := s[raw]; ok {
		return tok, nil
	}
	return nil, errors.New("unknown token")
}

var verifier = stubVerifier{
	"learner": {"sub": "user1", "email": "l@example.com"},
	"curator": {"sub": "admin1", "roles": []interface{}{"curriculum_admin"}},
}

func serve(authz string, handlers ...gin.HandlerFunc) (int, map[string]interface{}) {
	gin.SetMode(gin.TestMode)
	g := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sub": UserID(c), "roles": Roles(c)})
	})
	g.GET("/", handlers...)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w.Code, body
}

func TestAuthMiddleware(t *testing.T) {
	cases := []struct {
		header string
		status int
		want   string
	}{
		{"", http.StatusUnauthorized, "missing Authorization header"},
		{"learner", http.StatusUnauthorized, "invalid Authorization header"},
		{"Basic learner", http.StatusUnauthorized, "invalid Authorization header"},
		{"Bearer ", http.StatusUnauthorized, "invalid Authorization header"},
		{"Bearer forged", http.StatusUnauthorized, "invalid token"},
		{"Bearer learner", http.StatusOK, ""},
		{"bearer learner", http.StatusOK, ""},
	}
	for _, tc := range cases {
		status, body := serve(tc.header, AuthMiddleware(verifier))
		require.Equal(t, tc.status, status, tc.header)
		if tc.want != "" {
			assert.Equal(t, tc.want, body["error"], tc.header)
		} else {
			assert.Equal(t, "user1", body["sub"])
		}
	}
}

func TestAuthMiddleware_RevokedToken(t *testing.T) {
	m := miniredis.RunT(t)
	sessions.SetBlacklistClient(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	t.Cleanup(func() { sessions.SetBlacklistClient(nil) })

	require.NoError(t, sessions.BlacklistAccessToken(context.Background(), "learner", 5*time.Second))
	status, body := serve("Bearer learner", AuthMiddleware(verifier))
	require.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "token revoked", body["error"])

	status, _ = serve("Bearer curator", AuthMiddleware(verifier))
	assert.Equal(t, http.StatusOK, status)
}

func TestOptionalAuth(t *testing.T) {
	status, body := serve("", OptionalAuth(verifier))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "", body["sub"])

	_, body = serve("Bearer learner", OptionalAuth(verifier))
	assert.Equal(t, "user1", body["sub"])

	status, _ = serve("Bearer forged", OptionalAuth(verifier))
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRequireRole(t *testing.T) {
	requireAdmin := RequireRole("admin", "curriculum_admin")
	status, body := serve("Bearer learner", AuthMiddleware(verifier), requireAdmin)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "You do not have credentials to access this page.", body["error"])

	status, body = serve("Bearer curator", AuthMiddleware(verifier), requireAdmin)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []interface{}{"curriculum_admin"}, body["roles"])
}

func TestCronGuard(t *testing.T) {
	g := gin.New()
	g.GET("/locked", CronGuard("s3cret"), func(c *gin.Context) { c.Status(http.StatusOK) })
	g.GET("/open", CronGuard(""), func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, tc := range []struct {
		path, secret string
		status       int
	}{
		{"/locked", "", http.StatusUnauthorized},
		{"/locked", "guess", http.StatusUnauthorized},
		{"/locked", "s3cret", http.StatusOK},
		{"/open", "", http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.secret != "" {
			req.Header.Set(CronSecretHeader, tc.secret)
		}
		w := httptest.NewRecorder()
		g.ServeHTTP(w, req)
		assert.Equal(t, tc.status, w.Code, tc.path+" "+tc.secret)
	}
}
