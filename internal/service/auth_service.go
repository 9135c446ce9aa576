package service

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/bark-labs/offerbot/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 12 * time.Hour

var (
	// ErrInvalidCredentials is returned by Authenticate on a bad username or password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	errInvalidToken       = errors.New("invalid token")
)

// AuthService guards the admin API with a single configured account.
type AuthService struct {
	enabled  bool
	username string
	password string
	secret   []byte
	now      func() time.Time
}

// Claims is the admin JWT payload.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// NewAuthService builds AuthService from config.
func NewAuthService(cfg *config.Config) *AuthService {
	ac := cfg.Auth
	username := strings.TrimSpace(ac.Username)
	if username == "" {
		username = "admin"
	}
	password := strings.TrimSpace(ac.Password)
	if password == "" {
		password = "admin123"
	}
	secret := strings.TrimSpace(ac.JWTSecret)
	if secret == "" {
		secret = "offerbot-default-secret"
	}
	return &AuthService{
		enabled:  ac.Enabled,
		username: username,
		password: password,
		secret:   []byte(secret),
		now:      time.Now,
	}
}

// Enabled reports whether the admin API requires a token.
func (a *AuthService) Enabled() bool {
	return a != nil && a.enabled
}

// Username returns the configured admin account.
func (a *AuthService) Username() string {
	if a == nil {
		return ""
	}
	return a.username
}

// Authenticate checks the credentials and issues a signed token.
// With auth disabled it returns an empty token and no error.
func (a *AuthService) Authenticate(username, password string) (string, error) {
	if !a.Enabled() {
		return "", nil
	}
	if !a.matchUsername(username) || !a.matchPassword(password) {
		return "", ErrInvalidCredentials
	}
	now := a.now()
	claims := Claims{
		Username: a.username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.username,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Validate parses token and returns its claims.
func (a *AuthService) Validate(token string) (*Claims, error) {
	if !a.Enabled() {
		return &Claims{Username: "anonymous"}, nil
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if claims, ok := parsed.Claims.(*Claims); ok && parsed.Valid {
		return claims, nil
	}
	return nil, errInvalidToken
}

func (a *AuthService) matchUsername(input string) bool {
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(input)), []byte(a.username)) == 1
}

func (a *AuthService) matchPassword(input string) bool {
	if isBcryptHash(a.password) {
		return bcrypt.CompareHashAndPassword([]byte(a.password), []byte(input)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(input), []byte(a.password)) == 1
}

func isBcryptHash(s string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
