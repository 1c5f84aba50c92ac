package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deskhub/deskhub/internal/config"
	"github.com/deskhub/deskhub/internal/models"
	"github.com/deskhub/deskhub/internal/oidc"
	"github.com/deskhub/deskhub/internal/sessions"
	"github.com/deskhub/deskhub/internal/tokens"
	"github.com/deskhub/deskhub/internal/users"
	"github.com/deskhub/deskhub/pkg/logger"
	"github.com/deskhub/deskhub/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest covers the password grant (dev/testing) and the authorization code exchange.
type LoginRequest struct {
	Mode        string `json:"mode" binding:"required"` // "password" | "auth_code"
	Username    string `json:"username"`
	Password    string `json:"password"`
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
}

type AuthHandler struct {
	cfg         *config.Config
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
	idTokens    middleware.Verifier
	client      *http.Client
}

// NewAuthHandler builds the handler. idTokens verifies the id_token returned
// by the identity provider.
func NewAuthHandler(cfg *config.Config, u *users.Service, s *sessions.Service, idTokens middleware.Verifier) *AuthHandler {
	return &AuthHandler{cfg: cfg, usersSvc: u, sessionsSvc: s, idTokens: idTokens, client: &http.Client{Timeout: 15 * time.Second}}
}

func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
}

func (h *AuthHandler) accessTTL() time.Duration {
	if h.cfg.JWT.AccessTokenTTL > 0 {
		return h.cfg.JWT.AccessTokenTTL
	}
	return 15 * time.Minute
}

func (h *AuthHandler) refreshTTL() time.Duration {
	if h.cfg.JWT.RefreshTokenTTL > 0 {
		return h.cfg.JWT.RefreshTokenTTL
	}
	return 7 * 24 * time.Hour
}

// tokenURL prefers the endpoint from the provider's discovery document.
func (h *AuthHandler) tokenURL() string {
	if d, ok := h.idTokens.(interface{ TokenURL() string }); ok && d.TokenURL() != "" {
		return d.TokenURL()
	}
	return oidc.TokenEndpoint(h.cfg.Keycloak.URL, h.cfg.Keycloak.Realm)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Mode != "password" && req.Mode != "auth_code" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported mode"})
		return
	}
	if h.cfg.Keycloak.URL == "" || h.idTokens == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "identity provider not configured"})
		return
	}

	form := url.Values{}
	form.Set("client_id", h.cfg.Keycloak.ClientID)
	if h.cfg.Keycloak.ClientSecret != "" {
		form.Set("client_secret", h.cfg.Keycloak.ClientSecret)
	}
	if req.Mode == "password" {
		form.Set("grant_type", "password")
		form.Set("scope", "openid")
		form.Set("username", req.Username)
		form.Set("password", req.Password)
	} else {
		if req.Code == "" || req.RedirectURI == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "code and redirect_uri required for auth_code mode"})
			return
		}
		form.Set("grant_type", "authorization_code")
		form.Set("code", req.Code)
		form.Set("redirect_uri", req.RedirectURI)
	}

	tr, err := h.requestToken(c.Request.Context(), form)
	if err != nil {
		logger.Warnf("auth: %s token request failed: %v", req.Mode, err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}
	claims, err := h.verifyIDToken(c.Request.Context(), tr.IDToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid id token", "details": err.Error()})
		return
	}
	u, err := h.usersSvc.UpsertFromClaims(c.Request.Context(), claims)
	if err != nil {
		logger.Errorf("user upsert error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user upsert failed"})
		return
	}
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "id token has no subject"})
		return
	}
	h.issue(c, u)
}

// issue creates a refresh session and an access token for u.
func (h *AuthHandler) issue(c *gin.Context, u *models.User) {
	rft, err := h.sessionsSvc.CreateSession(c.Request.Context(), u.Sub, u.Tenant, h.refreshTTL())
	if err != nil {
		logger.Errorf("failed to create session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	access, err := tokens.GenerateAccessToken(h.cfg, u, h.accessTTL())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  access,
		"refresh_token": rft,
		"expires_in":    int(h.accessTTL().Seconds()),
		"user":          u,
	})
}

// Refresh rotates the refresh token and returns a new token pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	next, sess, err := h.sessionsSvc.Rotate(c.Request.Context(), req.RefreshToken, h.refreshTTL())
	if err != nil {
		logger.Errorf("refresh rotation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
		return
	}
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	u, err := h.usersSvc.GetBySub(c.Request.Context(), sess.Sub)
	if err != nil || u == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
		return
	}
	if u.Tenant == "" {
		u.Tenant = sess.Tenant
	}
	access, err := tokens.GenerateAccessToken(h.cfg, u, h.accessTTL())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  access,
		"refresh_token": next,
		"expires_in":    int(h.accessTTL().Seconds()),
	})
}

// Logout deletes the refresh session and revokes the presented access
// token for the rest of its lifetime. With "all" set every session of the
// user ends.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
		All          bool   `json:"all"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if at, ok := middleware.BearerToken(c.GetHeader("Authorization")); ok {
		if exp, err := tokenExpiry(at); err == nil {
			if err := sessions.RevokeAccessToken(ctx, at, exp); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke access token"})
				return
			}
		}
	}
	if req.All {
		sess, err := h.sessionsSvc.ValidateRefresh(ctx, req.RefreshToken)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}
		if sess != nil {
			ended, err := h.sessionsSvc.EndAll(ctx, sess.Sub)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove sessions"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "logged out", "sessions": ended})
			return
		}
	}
	if err := h.sessionsSvc.DeleteRefresh(ctx, req.RefreshToken); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// tokenExpiry reads the exp claim without verifying the signature; it is only
// used to size the revocation entry.
func tokenExpiry(raw string) (time.Time, error) {
	tok, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, err
	}
	exp, err := tok.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, errors.New("exp claim not present")
	}
	return exp.Time, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
}

// requestToken posts form to the token endpoint. A 401 with client_secret_post
// is retried once with HTTP Basic client authentication.
func (h *AuthHandler) requestToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	resp, err := h.postToken(ctx, form, false)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && h.cfg.Keycloak.ClientSecret != "" {
		_ = resp.Body.Close()
		logger.Debugf("auth: token endpoint rejected client_secret_post, retrying with basic auth")
		basic := url.Values{}
		for k, v := range form {
			if k != "client_secret" {
				basic[k] = v
			}
		}
		if resp, err = h.postToken(ctx, basic, true); err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tr.IDToken == "" {
		return nil, errors.New("token response has no id_token")
	}
	return &tr, nil
}

func (h *AuthHandler) postToken(ctx context.Context, form url.Values, basic bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basic {
		req.SetBasicAuth(h.cfg.Keycloak.ClientID, h.cfg.Keycloak.ClientSecret)
	}
	return h.client.Do(req)
}

func (h *AuthHandler) verifyIDToken(ctx context.Context, idToken string) (map[string]interface{}, error) {
	tok, err := h.idTokens.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}
	var claims map[string]interface{}
	if err := tok.Claims(&claims); err != nil {
		return nil, err
	}
	return claims, nil
}
