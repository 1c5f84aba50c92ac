package employees

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/internal/store"
	"github.com/deskhub/deskhub/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_ListByDepartmentAndActive(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemoryCollection[Employee]())
	for _, e := range []*Employee{
		{FullName: "Linus", Department: "eng", Active: true},
		{FullName: "Ada", Department: "eng", Active: false},
		{FullName: "Grace", Department: "ops", Active: true},
	} {
		_, err := svc.Create(ctx, "t1", e)
		require.NoError(t, err)
	}

	eng, err := svc.List(ctx, "t1", ListFilter{Department: "eng"})
	require.NoError(t, err)
	require.Len(t, eng, 2)
	assert.Equal(t, "Ada", eng[0].FullName)

	yes := true
	active, err := svc.List(ctx, "t1", ListFilter{Active: &yes})
	require.NoError(t, err)
	require.Len(t, active, 2)

	none, err := svc.List(ctx, "t2", ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestService_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemoryCollection[Employee]())

	_, err := svc.Create(ctx, "t1", &Employee{FullName: ""})
	require.ErrorIs(t, err, httpx.ErrInvalid)
	_, err = svc.Create(ctx, "t1", &Employee{FullName: "x", Email: "not-an-email"})
	require.ErrorIs(t, err, httpx.ErrInvalid)
	_, err = svc.Create(ctx, "t1", &Employee{FullName: "x", HourlyCostCents: -1})
	require.ErrorIs(t, err, httpx.ErrInvalid)

	_, err = svc.Update(ctx, "t1", "missing", Patch{})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func newRouter(svc *Service) *gin.Engine {
	g := gin.New()
	api := g.Group("/api/v1", func(c *gin.Context) {
		middleware.SetIdentity(c, "t1", "u1")
		c.Next()
	})
	NewHandler(svc).Register(api)
	return g
}

func do(g *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func TestHandler_DeactivateRoundTrip(t *testing.T) {
	g := newRouter(NewService(store.NewMemoryCollection[Employee]()))

	w := do(g, http.MethodPost, "/api/v1/employees", `{"fullName":"Margaret Hamilton","department":"eng","hireDate":"2026-01-05T00:00:00Z"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var e Employee
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.True(t, e.Active)

	w = do(g, http.MethodPatch, "/api/v1/employees/"+e.ID, `{"active":false}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(g, http.MethodGet, "/api/v1/employees?active=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	require.Equal(t, http.StatusBadRequest, do(g, http.MethodGet, "/api/v1/employees?active=maybe", "").Code)
	require.Equal(t, http.StatusBadRequest, do(g, http.MethodPost, "/api/v1/employees", `{"department":"eng"}`).Code)
	require.Equal(t, http.StatusNoContent, do(g, http.MethodDelete, "/api/v1/employees/"+e.ID, "").Code)
	require.Equal(t, http.StatusNotFound, do(g, http.MethodGet, "/api/v1/employees/"+e.ID, "").Code)
}
