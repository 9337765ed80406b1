package api

import (
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/sha3"

	"DHTSpectra/internal/config"
)

// Auth implements the optional password gate for the API: a SHA3-512 password
// hash compared in constant time, a short-lived HS256 token on success, and a
// bearer middleware for the protected routes.
type Auth struct {
	passwordHash string
	secret       []byte
	tokenTTL     time.Duration
}

// NewAuth creates an Auth from the API configuration. It returns nil when no
// password hash is configured, which disables authentication entirely.
func NewAuth(cfg config.APIConfig) (*Auth, error) {
	if cfg.PasswordHash == "" {
		return nil, nil
	}
	ttl, err := time.ParseDuration(cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("invalid api token_ttl: %w", err)
	}
	return &Auth{
		passwordHash: strings.ToLower(cfg.PasswordHash),
		secret:       []byte(cfg.JWTSecret),
		tokenTTL:     ttl,
	}, nil
}

// VerifyPassword hashes the candidate with SHA3-512 and compares against the
// configured digest in constant time.
func (a *Auth) VerifyPassword(password string) bool {
	sum := sha3.Sum512([]byte(password))
	digest := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(digest), []byte(a.passwordHash)) == 1
}

// IssueToken returns a signed bearer token and its expiry.
func (a *Auth) IssueToken() (string, time.Time, error) {
	expires := time.Now().Add(a.tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   "dhtspectra",
		ExpiresAt: jwt.NewNumericDate(expires),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		NotBefore: jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// ParseToken validates a bearer token.
func (a *Auth) ParseToken(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(token *jwt.Token) (interface{}, error) {
			return a.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}

// Middleware rejects requests without a valid bearer token.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if err := a.ParseToken(strings.TrimPrefix(header, prefix)); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// loginHandler exchanges the monitor password for a bearer token.
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeError(w, http.StatusBadRequest, "authentication is not enabled")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.auth.VerifyPassword(req.Password) {
		writeError(w, http.StatusUnauthorized, "wrong password")
		return
	}
	token, expires, err := s.auth.IssueToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expires})
}
