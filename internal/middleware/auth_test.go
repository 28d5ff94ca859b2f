package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amrrdev/docflow/internal/jwt"
)

func newAuthRouter(enabled bool) (*gin.Engine, *jwt.Service) {
	gin.SetMode(gin.TestMode)

	svc := jwt.NewService("test-secret", time.Hour)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/protected", NewAuthMiddleware(svc, enabled).RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, GetClientID(c))
	})
	return r, svc
}

func TestRequireAuth(t *testing.T) {
	router, svc := newAuthRouter(true)
	token, err := svc.GenerateAccessToken("scanner-01")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer " + token, status: http.StatusOK, body: "scanner-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), `"code":401`)
			}
		})
	}
}

func TestRequireAuth_Disabled(t *testing.T) {
	router, _ := newAuthRouter(false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}
