package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearn/openlearn/backend/go-services/internal/exploration/repository"
	"github.com/openlearn/openlearn/backend/go-services/internal/exploration/service"
	"github.com/openlearn/openlearn/backend/go-services/internal/snapshot"
	"github.com/openlearn/openlearn/backend/go-services/pkg/middleware"
)

// headerAuth trusts X-User and X-Roles; tests only.
func headerAuth(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.GetHeader("X-User")
		if user == "" {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
				return
			}
			c.Next()
			return
		}
		roles := []interface{}{}
		if r := c.GetHeader("X-Roles"); r != "" {
			roles = append(roles, r)
		}
		c.Set(middleware.ClaimsKey, map[string]interface{}{"sub": user, "roles": roles})
		c.Next()
	}
}

func do(g *gin.Engine, method, path, user, roles, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	if roles != "" {
		req.Header.Set("X-Roles", roles)
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func TestExplorationHandler_Flow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.New(repository.NewMemoryRepo(), snapshot.NewMemoryStore())
	g := gin.New()
	RegisterExplorationRoutes(g, svc, headerAuth(true), headerAuth(false))

	w := do(g, http.MethodPost, "/api/v1/explorations", "", "", `{"title":"T","category":"C"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(g, http.MethodPost, "/api/v1/explorations", "u1", "", `{"title":"Fractions","category":"Math"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created["exploration_id"].(string)

	w = do(g, http.MethodGet, "/api/v1/explorations/"+id, "", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(g, http.MethodGet, "/api/v1/explorations/"+id, "u1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"can_edit":true`)

	w = do(g, http.MethodGet, "/api/v1/explorations?ids="+id+",missing", "", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"summaries":[]}`, w.Body.String())

	// no objective yet, so strict validation fails
	w = do(g, http.MethodPut, "/api/v1/explorations/"+id+"/status", "u1", "", `{"status":"public"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "An objective must be specified")

	_, err := svc.UpdateWithChangeList(context.Background(), id, "u1", []map[string]interface{}{
		{"cmd": "edit_exploration_property", "property_name": "objective", "new_value": "Learn fractions"},
	}, "objective")
	require.NoError(t, err)

	w = do(g, http.MethodPut, "/api/v1/explorations/"+id+"/status", "u2", "", `{"status":"public"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(g, http.MethodPut, "/api/v1/explorations/"+id+"/status", "u1", "", `{"status":"public"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(g, http.MethodGet, "/api/v1/explorations", "", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"activity_type":"exploration"`)

	w = do(g, http.MethodPost, "/api/v1/explorations/"+id+"/rating", "u3", "", `{"user_rating":4}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"4":1`)
	w = do(g, http.MethodPost, "/api/v1/explorations/"+id+"/rating", "u3", "", `{"user_rating":9}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(g, http.MethodPut, "/api/v1/explorations/"+id+"/status", "u1", "", `{"status":"private"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(g, http.MethodPut, "/api/v1/explorations/"+id+"/status", "mod", "moderator", `{"status":"private"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(g, http.MethodGet, "/api/v1/explorations/nope", "u1", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
