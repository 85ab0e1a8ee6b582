package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/flightcrawler/config"
)

func signToken(t *testing.T, secret string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newTestEngine(authCfg config.AdminAuthConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	debug := engine.Group("/debug")
	debug.Use(jwtBearerAuth(authCfg))
	debug.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	return engine
}

func TestJWTBearerAuth_DisabledAllowsAnyRequest(t *testing.T) {
	engine := newTestEngine(config.AdminAuthConfig{Enabled: false})
	req := httptest.NewRequest(http.MethodGet, "/debug/ping", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTBearerAuth_MissingTokenRejected(t *testing.T) {
	engine := newTestEngine(config.AdminAuthConfig{Enabled: true, Token: "secret"})
	req := httptest.NewRequest(http.MethodGet, "/debug/ping", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTBearerAuth_ValidTokenAccepted(t *testing.T) {
	engine := newTestEngine(config.AdminAuthConfig{Enabled: true, Token: "secret"})
	req := httptest.NewRequest(http.MethodGet, "/debug/ping", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "secret"))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTBearerAuth_WrongSecretRejected(t *testing.T) {
	engine := newTestEngine(config.AdminAuthConfig{Enabled: true, Token: "secret"})
	req := httptest.NewRequest(http.MethodGet, "/debug/ping", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong"))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
