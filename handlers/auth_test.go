package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/deskhub/deskhub/internal/config"
	"github.com/deskhub/deskhub/internal/models"
	"github.com/deskhub/deskhub/internal/oidc"
	"github.com/deskhub/deskhub/internal/sessions"
	"github.com/deskhub/deskhub/internal/tokens"
	"github.com/deskhub/deskhub/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "auth-test-secret-32-bytes-xxxxxx"

func unsignedJWT(claims map[string]interface{}) string {
	hdr := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	b, _ := json.Marshal(claims)
	return hdr + "." + base64.RawURLEncoding.EncodeToString(b) + ".sig"
}

type authFixture struct {
	router   *gin.Engine
	users    *users.Service
	sessions *sessions.Service
	cfg      *config.Config
}

func newAuthFixture(t *testing.T, tokenURL string) *authFixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT.Secret = testSecret
	cfg.Keycloak.URL = tokenURL
	cfg.Keycloak.Realm = "deskhub"
	cfg.Keycloak.ClientID = "cid"
	cfg.Keycloak.ClientSecret = "csecret"

	f := &authFixture{
		users:    users.NewService(users.NewMemoryUserRepository()),
		sessions: sessions.NewService(sessions.NewMemoryRepository()),
		cfg:      cfg,
	}
	f.router = gin.New()
	NewAuthHandler(cfg, f.users, f.sessions, oidc.NewInsecureVerifier()).Register(f.router.Group("/"))
	return f
}

func (f *authFixture) post(path, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return got
}

func TestLogin_AuthCodeIssuesTenantScopedTokens(t *testing.T) {
	idToken := unsignedJWT(map[string]interface{}{"sub": "sub-1", "email": "ada@example.com", "name": "Ada", "tenant": "acme"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/realms/deskhub/protocol/openid-connect/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "abc", r.PostForm.Get("code"))
		assert.Equal(t, "csecret", r.PostForm.Get("client_secret"))
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "at", "id_token": idToken})
	}))
	defer srv.Close()
	f := newAuthFixture(t, srv.URL)

	w := f.post("/auth/login", `{"mode":"auth_code","code":"abc","redirect_uri":"http://localhost/cb"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode(t, w)
	assert.NotEmpty(t, got["refresh_token"])
	assert.EqualValues(t, 900, got["expires_in"])

	tok, err := tokens.NewVerifier(testSecret).Verify(context.Background(), got["access_token"].(string))
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	assert.Equal(t, "sub-1", claims["sub"])
	assert.Equal(t, "acme", claims["tenant"])

	u, err := f.users.GetBySub(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "acme", u.Tenant)
}

func TestLogin_PasswordFallsBackToBasicAuth(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.NoError(t, r.ParseForm())
		user, pass, ok := r.BasicAuth()
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized_client"}`))
			return
		}
		assert.Equal(t, "cid", user)
		assert.Equal(t, "csecret", pass)
		assert.Empty(t, r.PostForm.Get("client_secret"))
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		_ = json.NewEncoder(w).Encode(map[string]string{"id_token": unsignedJWT(map[string]interface{}{"sub": "sub-2"})})
	}))
	defer srv.Close()
	f := newAuthFixture(t, srv.URL)

	w := f.post("/auth/login", `{"mode":"password","username":"ada","password":"pw"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, calls)
}

func TestLogin_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Code not valid"}`))
	}))
	defer srv.Close()
	f := newAuthFixture(t, srv.URL)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing mode", `{}`, http.StatusBadRequest},
		{"unknown mode", `{"mode":"magic"}`, http.StatusBadRequest},
		{"auth code without redirect", `{"mode":"auth_code","code":"x"}`, http.StatusBadRequest},
		{"rejected grant", `{"mode":"auth_code","code":"x","redirect_uri":"http://cb"}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.post("/auth/login", tt.body).Code)
		})
	}

	unconfigured := newAuthFixture(t, "")
	w := unconfigured.post("/auth/login", `{"mode":"password","username":"a","password":"b"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLogin_RejectsIDTokenWithoutSubject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id_token": unsignedJWT(map[string]interface{}{"email": "x@y.z"})})
	}))
	defer srv.Close()
	f := newAuthFixture(t, srv.URL)

	w := f.post("/auth/login", `{"mode":"password","username":"a","password":"b"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefresh_RotatesRefreshToken(t *testing.T) {
	f := newAuthFixture(t, "")
	ctx := context.Background()
	_, err := f.users.UpsertFromClaims(ctx, map[string]interface{}{"sub": "sub-r", "tenant": "acme"})
	require.NoError(t, err)
	rt, err := f.sessions.CreateSession(ctx, "sub-r", "acme", time.Hour)
	require.NoError(t, err)

	w := f.post("/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, rt))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode(t, w)
	assert.NotEmpty(t, got["access_token"])
	next, _ := got["refresh_token"].(string)
	require.NotEmpty(t, next)
	assert.NotEqual(t, rt, next)

	// the old token is single-use
	w = f.post("/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, rt))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.post("/auth/refresh", fmt.Sprintf(`{"refresh_token":%q}`, next))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRefresh_InvalidRefresh(t *testing.T) {
	f := newAuthFixture(t, "")
	assert.Equal(t, http.StatusUnauthorized, f.post("/auth/refresh", `{"refresh_token":"does-not-exist"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.post("/auth/refresh", `{}`).Code)
}

func TestLogout_RevokesAccessAndDeletesRefresh(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	sessions.SetRevocationClient(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	t.Cleanup(func() { sessions.SetRevocationClient(nil) })

	f := newAuthFixture(t, "")
	ctx := context.Background()
	rt, err := f.sessions.CreateSession(ctx, "sub-1", "acme", time.Hour)
	require.NoError(t, err)
	access, err := tokens.GenerateAccessToken(f.cfg, &models.User{Sub: "sub-1", Tenant: "acme"}, 2*time.Minute)
	require.NoError(t, err)

	w := f.post("/auth/logout", fmt.Sprintf(`{"refresh_token":%q}`, rt), "Authorization", "Bearer "+access)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	sess, err := f.sessions.ValidateRefresh(ctx, rt)
	require.NoError(t, err)
	assert.Nil(t, sess)

	assert.True(t, m.Exists(sessions.RevocationKey(access)))
	ttl := m.TTL(sessions.RevocationKey(access))
	assert.True(t, ttl > 0 && ttl <= 2*time.Minute, "ttl %s", ttl)
}

func TestTokenExpiry(t *testing.T) {
	exp, err := tokenExpiry(unsignedJWT(map[string]interface{}{"sub": "s1", "exp": 1700000000}))
	require.NoError(t, err)
	assert.EqualValues(t, 1700000000, exp.Unix())

	_, err = tokenExpiry(unsignedJWT(map[string]interface{}{"sub": "s2"}))
	assert.Error(t, err)

	_, err = tokenExpiry("not.a.jwt")
	assert.Error(t, err)
}

func TestLogout_AllSessions(t *testing.T) {
	f := newAuthFixture(t, "")
	ctx := context.Background()
	first, err := f.sessions.CreateSession(ctx, "sub-9", "acme", time.Hour)
	require.NoError(t, err)
	second, err := f.sessions.CreateSession(ctx, "sub-9", "acme", time.Hour)
	require.NoError(t, err)
	other, err := f.sessions.CreateSession(ctx, "sub-10", "acme", time.Hour)
	require.NoError(t, err)

	w := f.post("/auth/logout", fmt.Sprintf(`{"refresh_token":%q,"all":true}`, first))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"sessions":2`)

	for _, rt := range []string{first, second} {
		sess, err := f.sessions.ValidateRefresh(ctx, rt)
		require.NoError(t, err)
		assert.Nil(t, sess)
	}
	sess, err := f.sessions.ValidateRefresh(ctx, other)
	require.NoError(t, err)
	assert.NotNil(t, sess)
}
