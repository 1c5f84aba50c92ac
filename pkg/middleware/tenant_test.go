package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deskhub/deskhub/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func withClaims(claims map[string]interface{}) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims != nil {
			c.Set("claims", claims)
		}
		c.Next()
	}
}

func TestTenantMiddleware(t *testing.T) {
	cases := []struct {
		name       string
		claims     map[string]interface{}
		wantStatus int
		wantTenant string
	}{
		{"tenant claim", map[string]interface{}{"sub": "u1", "tenant": "acme"}, http.StatusOK, "acme"},
		{"organization", map[string]interface{}{"sub": "u1", "org_id": "org-7"}, http.StatusOK, "org-7"},
		{"personal workspace", map[string]interface{}{"sub": "u1"}, http.StatusOK, "u1"},
		{"no subject", map[string]interface{}{"tenant": "acme"}, http.StatusUnauthorized, ""},
		{"anonymous", nil, http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotTenant, gotUser string
			r := gin.New()
			r.GET("/", withClaims(tc.claims), TenantMiddleware(), func(c *gin.Context) {
				gotTenant, gotUser = Identity(c)
				c.Status(http.StatusOK)
			})
			w := serve(r, "GET", "/")
			require.Equal(t, tc.wantStatus, w.Code)
			if tc.wantStatus == http.StatusOK {
				require.Equal(t, tc.wantTenant, gotTenant)
				require.Equal(t, "u1", gotUser)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusCreated) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	w = serve(r, http.MethodPost, "/x")
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(Metrics(), RequestLogger())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	counter := metrics.HTTPRequests.WithLabelValues("GET", "/items/:id", "204")
	before := testutil.ToFloat64(counter)
	serve(r, "GET", "/items/1")
	serve(r, "GET", "/items/2")
	require.Equal(t, before+2, testutil.ToFloat64(counter))

	unmatched := metrics.HTTPRequests.WithLabelValues("GET", "unmatched", "404")
	before = testutil.ToFloat64(unmatched)
	serve(r, "GET", "/nope")
	require.Equal(t, before+1, testutil.ToFloat64(unmatched))
}
