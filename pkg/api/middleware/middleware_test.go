package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/last-emo-boy/uptime-monitor/pkg/auth"
	"github.com/last-emo-boy/uptime-monitor/pkg/config"
)

func testAuth(t *testing.T) *auth.Auth {
	t.Helper()
	authConfig := &config.ConsoleConfig{
		Auth: config.AuthConfig{
			JWT: config.JWTConfig{
				Secret:       "test-secret-key-for-testing",
				ExpiresHours: 24,
			},
		},
	}
	mockAuth, err := auth.NewAuth(authConfig)
	require.NoError(t, err)
	return mockAuth
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockAuth := testAuth(t)

	validToken, _, err := mockAuth.GenerateToken(1, "testuser", "user")
	require.NoError(t, err)

	tests := []struct {
		name         string
		token        string
		authHeader   string
		expectedCode int
	}{
		{
			name:         "missing token",
			token:        "",
			authHeader:   "",
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "bearer token present",
			token:        validToken,
			authHeader:   "Bearer " + validToken,
			expectedCode: http.StatusOK,
		},
		{
			name:         "query token present",
			token:        validToken,
			authHeader:   "",
			expectedCode: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(AuthMiddleware(mockAuth))
			r.GET("/protected", func(c *gin.Context) {
				if userID, exists := c.Get("user_id"); exists {
					c.JSON(http.StatusOK, gin.H{"user_id": userID})
				} else {
					c.JSON(http.StatusOK, gin.H{"message": "authenticated"})
				}
			})

			req, err := http.NewRequest("GET", "/protected", nil)
			require.NoError(t, err)

			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			if tt.token != "" && tt.authHeader == "" {
				req.URL.RawQuery = "token=" + tt.token
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedCode, w.Code)

			if tt.expectedCode == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), "error")
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockAuth := testAuth(t)

	tests := []struct {
		name         string
		userRole     string
		requiredRole string
		expectedCode int
		setContext   bool
	}{
		{
			name:         "admin role sufficient for user access",
			userRole:     "admin",
			requiredRole: "user",
			expectedCode: http.StatusOK,
			setContext:   true,
		},
		{
			name:         "user role insufficient for admin access",
			userRole:     "user",
			requiredRole: "admin",
			expectedCode: http.StatusForbidden,
			setContext:   true,
		},
		{
			name:         "missing role context",
			userRole:     "",
			requiredRole: "user",
			expectedCode: http.StatusUnauthorized,
			setContext:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(func(c *gin.Context) {
				if tt.setContext && tt.userRole != "" {
					c.Set("role", tt.userRole)
				}
				c.Next()
			})
			r.Use(RequireRole(mockAuth, tt.requiredRole))
			r.GET("/admin", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"message": "admin access granted"})
			})

			req, err := http.NewRequest("GET", "/admin", nil)
			require.NoError(t, err)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedCode, w.Code)

			if tt.expectedCode != http.StatusOK {
				assert.Contains(t, w.Body.String(), "error")
			}
		})
	}
}

func TestExtractToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name          string
		authHeader    string
		queryToken    string
		cookie        string
		expectedToken string
	}{
		{
			name:          "bearer token in header",
			authHeader:    "Bearer test-token",
			expectedToken: "test-token",
		},
		{
			name:          "query parameter token",
			queryToken:    "query-token",
			expectedToken: "query-token",
		},
		{
			name:          "invalid auth header",
			authHeader:    "Invalid format",
			expectedToken: "",
		},
		{
			name:          "cookie token",
			cookie:        "cookie-token",
			expectedToken: "cookie-token",
		},
		{
			name:          "no token provided",
			expectedToken: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/test", func(c *gin.Context) {
				token := extractToken(c)
				c.JSON(http.StatusOK, gin.H{"token": token})
			})

			req, err := http.NewRequest("GET", "/test", nil)
			require.NoError(t, err)

			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			query := req.URL.Query()
			if tt.queryToken != "" {
				query.Add("token", tt.queryToken)
			}
			req.URL.RawQuery = query.Encode()

			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{
					Name:  "auth_token",
					Value: tt.cookie,
				})
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedToken)
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(CORSMiddleware())
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "test"})
	})
	r.OPTIONS("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name         string
		method       string
		expectedCode int
		checkHeaders bool
	}{
		{
			name:         "GET request with CORS headers",
			method:       "GET",
			expectedCode: http.StatusOK,
			checkHeaders: true,
		},
		{
			name:         "OPTIONS preflight request",
			method:       "OPTIONS",
			expectedCode: http.StatusNoContent,
			checkHeaders: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, "/test", nil)
			require.NoError(t, err)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedCode, w.Code)

			if tt.checkHeaders {
				assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
				assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "GET")
			}
		})
	}
}

func TestLoggingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	middleware := LoggingMiddleware()
	assert.NotNil(t, middleware)

	r := gin.New()
	r.Use(middleware)
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "logged"})
	})

	req, err := http.NewRequest("GET", "/test", nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	middleware := RecoveryMiddleware()
	assert.NotNil(t, middleware)

	r := gin.New()
	r.Use(middleware)
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "recovered"})
	})

	req, err := http.NewRequest("GET", "/test", nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddlewareIntegration(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockAuth := testAuth(t)

	r := gin.New()
	r.Use(CORSMiddleware())
	r.Use(LoggingMiddleware())
	r.Use(RecoveryMiddleware())
	r.Use(AuthMiddleware(mockAuth))
	r.Use(RequireRole(mockAuth, "user"))

	r.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "fully protected"})
	})

	req, err := http.NewRequest("GET", "/protected", nil)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// Should be unauthorized due to missing auth
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Check CORS headers are still present
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
