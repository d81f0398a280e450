package handlers

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger serves a Swagger UI page and the OpenAPI document of the
// public API.
// - GET /swagger/index.html
// - GET /swagger/doc.json
func RegisterSwagger(rg *gin.Engine) {
	doc := openAPIDoc()
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, doc)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>openlearn API - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

type apiRoute struct {
	method  string
	path    string
	tag     string
	summary string
	auth    bool
}

var apiRoutes = []apiRoute{
	{"post", "/auth/login", "auth", "Log in with a password or an authorization code", false},
	{"post", "/auth/refresh", "auth", "Refresh the access token", false},
	{"post", "/auth/logout", "auth", "Invalidate the refresh token", false},
	{"get", "/auth/me", "auth", "Current user", true},
	{"post", "/api/v1/admin/users/:username/roles", "auth", "Grant a role to a user", true},

	{"get", "/api/v1/collections", "collections", "List collection summaries", false},
	{"post", "/api/v1/collections", "collections", "Create a collection", true},
	{"post", "/api/v1/collections/import", "collections", "Import a collection from YAML", true},
	{"get", "/api/v1/collections/:id", "collections", "Get a collection", false},
	{"put", "/api/v1/collections/:id", "collections", "Apply a change list to a collection", true},
	{"put", "/api/v1/collections/:id/status", "collections", "Publish or unpublish a collection", true},
	{"get", "/api/v1/collections/:id/yaml", "collections", "Collection as YAML", false},
	{"get", "/api/v1/collections/:id/export", "collections", "Presigned YAML export link", true},
	{"get", "/api/v1/collections/:id/next", "collections", "Next explorations for a learner", false},

	{"get", "/api/v1/explorations", "explorations", "List exploration summaries", false},
	{"post", "/api/v1/explorations", "explorations", "Create an exploration", true},
	{"get", "/api/v1/explorations/:id", "explorations", "Get an exploration", false},
	{"put", "/api/v1/explorations/:id/status", "explorations", "Publish or unpublish an exploration", true},
	{"post", "/api/v1/explorations/:id/rating", "explorations", "Rate an exploration", true},
	{"get", "/api/v1/explorations/:id/recommendations", "explorations", "Recommended follow-up explorations", false},

	{"put", "/createhandler/data/:exp_id", "voiceartist", "Save a voice artist change list", true},
	{"put", "/createhandler/autosave_draft/:exp_id", "voiceartist", "Autosave a draft change list", true},
	{"post", "/createhandler/autosave_draft/:exp_id", "voiceartist", "Discard the draft", true},
	{"post", "/createhandler/started_translation_tutorial_event/:exp_id", "voiceartist", "Record the translation tutorial start", true},
	{"post", "/createhandler/voiceover_upload/:exp_id", "voiceartist", "Upload a voiceover file", true},
	{"post", "/voice_artist_management_handler/exploration/:exp_id", "voiceartist", "Assign a voice artist", true},
	{"delete", "/voice_artist_management_handler/exploration/:exp_id", "voiceartist", "Remove a voice artist", true},

	{"get", "/learn/:classroom/:topic/story/:story", "stories", "Story page access check", false},
	{"get", "/story_data_handler/:classroom/:topic/:story", "stories", "Story viewer data", false},
	{"get", "/story_progress_handler/:classroom/:topic/:story/:node_id", "stories", "Redirect to the next chapter", true},
	{"post", "/story_progress_handler/:classroom/:topic/:story/:node_id", "stories", "Record chapter completion", true},
	{"post", "/api/v1/stories", "stories", "Create a story in a topic", true},
	{"get", "/api/v1/stories/:id", "stories", "Get a story", true},
	{"put", "/api/v1/stories/:id", "stories", "Apply a change list to a story", true},
	{"post", "/api/v1/topics", "stories", "Create a topic", true},
	{"put", "/api/v1/topics/:id/publish", "stories", "Publish or unpublish a topic", true},
	{"put", "/api/v1/topics/:id/stories/:story_id/publish", "stories", "Publish or unpublish a story", true},

	{"post", "/api/v1/skills", "skills", "Create a skill", true},
	{"get", "/api/v1/skills/:id", "skills", "Get a skill", true},
	{"put", "/api/v1/skills/:id", "skills", "Apply a change list to a skill", true},
	{"post", "/api/v1/skills/:id/questions", "skills", "Link questions to a skill", true},
	{"post", "/api/v1/admin/jobs/skill_commit_audit", "skills", "Audit skill commit commands", true},

	{"get", "/platform_features_evaluation_handler", "features", "Evaluate feature flags for a client", false},
	{"get", "/api/v1/admin/features", "features", "List feature flags", true},
	{"put", "/api/v1/admin/features/:name", "features", "Replace the rules of a feature flag", true},
	{"get", "/api/v1/admin/features/:name/history", "features", "Rule change history", true},
	{"get", "/api/v1/admin/topic_similarities", "features", "Topic similarities as CSV", true},
	{"put", "/api/v1/admin/topic_similarities", "features", "Update topic similarities from CSV", true},

	{"get", "/api/v1/users/me/dashboard_stats", "users", "Creator dashboard stats", true},

	{"get", "/cron/explorations/recommendations", "cron", "Recompute exploration recommendations", false},
	{"get", "/cron/explorations/search_rank", "cron", "Recompute exploration search ranks", false},
	{"get", "/cron/jobs/cleanup", "cron", "Delete finished job runs", false},
	{"get", "/cron/models/cleanup", "cron", "Delete expired drafts and old snapshot contents", false},
	{"get", "/cron/users/dashboard_stats", "cron", "Recompute creator dashboard stats", false},

	{"get", "/health", "ops", "Liveness check", false},
	{"get", "/ready", "ops", "Readiness check", false},
	{"get", "/metrics", "ops", "Prometheus metrics", false},
}

var pathParam = regexp.MustCompile(`:([a-z_]+)`)

func openAPIDoc() gin.H {
	paths := gin.H{}
	for _, rt := range apiRoutes {
		p := pathParam.ReplaceAllString(rt.path, "{$1}")
		op := gin.H{
			"summary":   rt.summary,
			"tags":      []string{rt.tag},
			"responses": gin.H{"200": gin.H{"description": "OK"}},
		}
		var params []gin.H
		for _, m := range pathParam.FindAllStringSubmatch(rt.path, -1) {
			params = append(params, gin.H{"name": m[1], "in": "path", "required": true, "schema": gin.H{"type": "string"}})
		}
		if params != nil {
			op["parameters"] = params
		}
		if rt.auth {
			op["security"] = []gin.H{{"bearerAuth": []string{}}}
			op["responses"].(gin.H)["401"] = gin.H{"description": "missing or insufficient credentials"}
		}
		item, ok := paths[p].(gin.H)
		if !ok {
			item = gin.H{}
			paths[p] = item
		}
		item[strings.ToLower(rt.method)] = op
	}
	return gin.H{
		"openapi": "3.0.0",
		"info":    gin.H{"title": "openlearn", "version": "v1"},
		"paths":   paths,
		"components": gin.H{
			"securitySchemes": gin.H{"bearerAuth": gin.H{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"}},
		},
	}
}
