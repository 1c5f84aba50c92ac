package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deskhub/deskhub/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestAbortMapsErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{fmt.Errorf("contact: %w", store.ErrNotFound), http.StatusNotFound, "not found"},
		{Invalidf("name is required"), http.StatusBadRequest, "invalid input: name is required"},
		{fmt.Errorf("folder: %w", store.ErrConflict), http.StatusConflict, "folder: record already exists"},
		{fmt.Errorf("%w: invoice is paid", ErrState), http.StatusConflict, "invalid state: invoice is paid"},
		{fmt.Errorf("%w: assistant", ErrUnavailable), http.StatusServiceUnavailable, "service unavailable: assistant"},
		{errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		r := gin.New()
		r.GET("/", func(c *gin.Context) { Abort(c, tc.err) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		require.Equal(t, tc.status, w.Code, tc.err.Error())
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Equal(t, tc.msg, body["error"])
	}
}

func TestQueryHelpers(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		from, err := QueryTime(c, "from")
		require.NoError(t, err)
		require.Equal(t, 2026, from.Year())
		_, err = QueryTime(c, "bad")
		require.ErrorIs(t, err, ErrInvalid)
		zero, err := QueryTime(c, "missing")
		require.NoError(t, err)
		require.True(t, zero.IsZero())

		done, err := QueryBool(c, "done")
		require.NoError(t, err)
		require.True(t, *done)
		none, err := QueryBool(c, "missing")
		require.NoError(t, err)
		require.Nil(t, none)

		n, err := QueryInt(c, "limit", 10)
		require.NoError(t, err)
		require.Equal(t, 5, n)
		d, err := QueryInt(c, "missing", 10)
		require.NoError(t, err)
		require.Equal(t, 10, d)
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/?from=2026-01-02T03:04:05Z&bad=yesterday&done=true&limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
}
