package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deskhub/deskhub/internal/calendar"
	"github.com/deskhub/deskhub/internal/config"
	"github.com/deskhub/deskhub/internal/httpx"
	"github.com/deskhub/deskhub/internal/store"
	"github.com/deskhub/deskhub/pkg/metrics"
	"github.com/deskhub/deskhub/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	reply   string
	items   string
	err     error
	system  string
	history []Turn
	input   string
	schema  *genai.Schema
}

func (f *fakeGenerator) Generate(ctx context.Context, system string, history []Turn, input string) (string, error) {
	f.system, f.history, f.input = system, history, input
	return f.reply, f.err
}

func (f *fakeGenerator) GenerateJSON(ctx context.Context, system, input string, schema *genai.Schema, out any) error {
	f.system, f.input, f.schema = system, input, schema
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.items), out)
}

var now = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func TestService_Chat(t *testing.T) {
	gen := &fakeGenerator{reply: "Send the invoice today."}
	svc := NewService(gen, calendar.NewService(store.NewMemoryCollection[calendar.Task]()))
	before := testutil.ToFloat64(metrics.AssistantRequests.WithLabelValues("chat", "ok"))

	history := make([]Turn, 25)
	for i := range history {
		history[i] = Turn{Role: "user", Text: "hi"}
	}
	reply, err := svc.Chat(context.Background(), history, "  What next?  ")
	require.NoError(t, err)
	assert.Equal(t, "Send the invoice today.", reply)
	assert.Equal(t, "What next?", gen.input)
	assert.Len(t, gen.history, maxHistory)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AssistantRequests.WithLabelValues("chat", "ok")))

	_, err = svc.Chat(context.Background(), nil, " ")
	require.ErrorIs(t, err, httpx.ErrInvalid)

	gen.err = errors.New("quota")
	_, err = svc.Chat(context.Background(), nil, "again")
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, httpx.Status(err))
}

func TestService_ExtractTasks(t *testing.T) {
	gen := &fakeGenerator{items: `[
		{"title":"Call Ada","start":"2026-06-02T10:00:00Z","durationMinutes":45},
		{"title":"Dentist","start":"2026-06-03T15:30:00+02:00"},
		{"title":"","start":"2026-06-02T10:00:00Z"},
		{"title":"Someday","start":"next week"},
		{"title":"Broken","start":"2026-06-02T10:00:00Z","durationMinutes":-5}
	]`}
	cal := calendar.NewService(store.NewMemoryCollection[calendar.Task]())
	svc := NewService(gen, cal)

	res, err := svc.ExtractTasks(context.Background(), "t1", "u1", "call Ada tomorrow at 10 for 45 minutes", now)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Skipped)
	require.Len(t, res.Tasks, 2)
	assert.Same(t, taskSchema, gen.schema)
	assert.True(t, strings.HasPrefix(gen.input, "Current time: 2026-06-01T08:00:00Z"))

	call := res.Tasks[0]
	assert.Equal(t, "Call Ada", call.Title)
	assert.Equal(t, "u1", call.OwnerID)
	assert.Equal(t, 45*time.Minute, call.Duration())
	assert.Equal(t, calendar.DefaultDuration, res.Tasks[1].Duration())
	assert.Equal(t, time.Date(2026, 6, 3, 13, 30, 0, 0, time.UTC), res.Tasks[1].Start)

	stored, err := cal.List(context.Background(), "t1", calendar.ListFilter{OwnerID: "u1"})
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestService_Disabled(t *testing.T) {
	svc := NewService(nil, calendar.NewService(store.NewMemoryCollection[calendar.Task]()))
	assert.False(t, svc.Enabled())

	_, err := svc.Chat(context.Background(), nil, "hello")
	require.ErrorIs(t, err, ErrDisabled)
	_, err = svc.ExtractTasks(context.Background(), "t1", "u1", "text", now)
	assert.Equal(t, http.StatusServiceUnavailable, httpx.Status(err))
}

func TestNewGenerator_NoKey(t *testing.T) {
	gen, err := NewGenerator(context.Background(), config.GenAIConfig{})
	require.NoError(t, err)
	assert.Nil(t, gen)
}

func newRouter(svc *Service) *gin.Engine {
	g := gin.New()
	api := g.Group("/api/v1", func(c *gin.Context) {
		middleware.SetIdentity(c, "t1", "u1")
		c.Next()
	})
	h := NewHandler(svc)
	h.now = func() time.Time { return now }
	h.Register(api)
	return g
}

func post(g *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func TestHandler(t *testing.T) {
	gen := &fakeGenerator{reply: "Hello!", items: `[{"title":"Review","start":"2026-06-01T14:00:00Z","durationMinutes":30}]`}
	g := newRouter(NewService(gen, calendar.NewService(store.NewMemoryCollection[calendar.Task]())))

	w := post(g, "/api/v1/assistant/chat", `{"history":[{"role":"model","text":"Hi"}],"message":"Hey"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"reply":"Hello!"}`, w.Body.String())
	require.Len(t, gen.history, 1)
	assert.Equal(t, "model", gen.history[0].Role)

	w = post(g, "/api/v1/assistant/chat", `{"history":[{"role":"system","text":"x"}],"message":"Hey"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(g, "/api/v1/assistant/tasks", `{"text":"review at 2pm"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res Extraction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Tasks, 1)
	assert.Equal(t, "t1", res.Tasks[0].TenantID)

	off := newRouter(NewService(nil, calendar.NewService(store.NewMemoryCollection[calendar.Task]())))
	w = post(off, "/api/v1/assistant/chat", `{"message":"Hey"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
