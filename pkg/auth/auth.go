// Package auth issues and verifies the bearer tokens that gate the probe
// engine's control API. The monitoring engine has no login page, no user
// database, and no per-service permission model — an operator's token is
// minted out of band and carries only an identity and a role, enough to
// let pkg/httpapi's control group tell an authenticated request from an
// anonymous one.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/last-emo-boy/uptime-monitor/pkg/config"
)

// Auth issues and verifies control-API bearer tokens.
type Auth struct {
	config    *config.ConsoleConfig
	jwtSecret []byte
}

// Claims represents the JWT token claims carried by a control-API token.
type Claims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// NewAuth creates a new Auth instance.
func NewAuth(config *config.ConsoleConfig) (*Auth, error) {
	jwtSecret := []byte(config.Auth.JWT.Secret)
	if len(jwtSecret) == 0 {
		// Generate a random secret if not provided
		randomSecret := make([]byte, 32)
		if _, err := rand.Read(randomSecret); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		jwtSecret = []byte(hex.EncodeToString(randomSecret))
	}

	return &Auth{
		config:    config,
		jwtSecret: jwtSecret,
	}, nil
}

// HashPassword hashes an operator password using bcrypt, for the bootstrap
// credential an operator uses to mint their own control-API token.
func (a *Auth) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a password with its hash.
func (a *Auth) CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// GenerateToken generates a control-API JWT token for an operator.
func (a *Auth) GenerateToken(userID int, username, role string) (string, int64, error) {
	expirationTime := time.Now().Add(time.Duration(a.config.Auth.JWT.ExpiresHours) * time.Hour)

	claims := &Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "uptime-monitor",
			Subject:   fmt.Sprintf("user:%d", userID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(a.jwtSecret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, expirationTime.Unix(), nil
}

// ValidateToken validates a JWT token and returns the claims.
func (a *Auth) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// RequireRole reports whether userRole meets or exceeds requiredRole in
// the control API's two-level hierarchy.
func (a *Auth) RequireRole(userRole, requiredRole string) bool {
	roleHierarchy := map[string]int{
		"user":  1,
		"admin": 2,
	}

	userLevel := roleHierarchy[userRole]
	requiredLevel := roleHierarchy[requiredRole]

	return userLevel >= requiredLevel
}
