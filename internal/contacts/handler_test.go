package contacts

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deskhub/deskhub/internal/store"
	"github.com/deskhub/deskhub/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newRouter(svc *Service) *gin.Engine {
	g := gin.New()
	api := g.Group("/api/v1", func(c *gin.Context) {
		tenant := c.GetHeader("X-Tenant")
		if tenant == "" {
			tenant = "t1"
		}
		middleware.SetIdentity(c, tenant, "u1")
		c.Next()
	})
	NewHandler(svc).Register(api)
	return g
}

func do(g *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func TestHandler_CRUD(t *testing.T) {
	g := newRouter(NewService(store.NewMemoryCollection[Contact](), newFakeAccounts()))

	w := do(g, http.MethodPost, "/api/v1/contacts", `{"name":"Grace Hopper","email":"grace@navy.mil","tags":["admiral"]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created Contact
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	require.NotEmpty(t, created.ClientAccountID)

	w = do(g, http.MethodGet, "/api/v1/contacts/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(g, http.MethodGet, "/api/v1/contacts?q=hopper", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []Contact
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)

	w = do(g, http.MethodPatch, "/api/v1/contacts/"+created.ID, `{"phone":"555-0100"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "555-0100")

	w = do(g, http.MethodDelete, "/api/v1/contacts/"+created.ID, "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(g, http.MethodGet, "/api/v1/contacts/"+created.ID, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_Validation(t *testing.T) {
	g := newRouter(NewService(store.NewMemoryCollection[Contact](), newFakeAccounts()))

	require.Equal(t, http.StatusBadRequest, do(g, http.MethodPost, "/api/v1/contacts", `{"email":"a@b.c"}`).Code)
	require.Equal(t, http.StatusBadRequest, do(g, http.MethodPost, "/api/v1/contacts", `{"name":"x","email":"nope"}`).Code)
	require.Equal(t, http.StatusBadRequest, do(g, http.MethodGet, "/api/v1/contacts?limit=many", "").Code)
}
