package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwaggerEndpoints(t *testing.T) {
	g := gin.New()
	RegisterSwagger(g)

	w := httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest("GET", "/swagger/index.html", nil))
	require.Equal(t, 200, w.Code)
	require.Contains(t, w.Body.String(), "swagger-ui")

	w = httptest.NewRecorder()
	g.ServeHTTP(w, httptest.NewRequest("GET", "/swagger/doc.json", nil))
	require.Equal(t, 200, w.Code)

	var doc struct {
		OpenAPI string                                       `json:"openapi"`
		Paths   map[string]map[string]map[string]interface{} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.0", doc.OpenAPI)
	for _, p := range []string{"/auth/login", "/auth/refresh", "/auth/logout"} {
		assert.Contains(t, doc.Paths[p], "post", p)
	}

	task := doc.Paths["/api/v1/tasks/{id}"]
	require.Contains(t, task, "patch")
	assert.Contains(t, task["patch"], "security")
	assert.NotContains(t, doc.Paths["/health"]["get"], "security")
}

func TestOpenAPIPath(t *testing.T) {
	p, params := openAPIPath("/api/v1/folders/:id/children")
	assert.Equal(t, "/api/v1/folders/{id}/children", p)
	assert.Equal(t, []string{"id"}, params)

	p, params = openAPIPath("/health")
	assert.Equal(t, "/health", p)
	assert.Empty(t, params)
}
