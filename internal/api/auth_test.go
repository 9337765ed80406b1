package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/sha3"

	"DHTSpectra/internal/config"
)

func authConfig(password string) *config.Config {
	sum := sha3.Sum512([]byte(password))
	cfg := testConfig()
	cfg.API.PasswordHash = hex.EncodeToString(sum[:])
	cfg.API.JWTSecret = "test-jwt-secret"
	cfg.API.TokenTTL = "1h"
	return cfg
}

func postLogin(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestAuthRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, authConfig("hunter2"))

	// 1. Data endpoints reject requests without a token.
	rec := doGET(t, srv, "/api/v1/windows")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}

	// 2. A wrong password is rejected.
	rec = postLogin(t, srv, `{"password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status = %d, want 401", rec.Code)
	}

	// 3. The right password yields a token.
	rec = postLogin(t, srv, `{"password":"hunter2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status = %d, want 200", rec.Code)
	}
	var login loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Token == "" {
		t.Fatal("login returned an empty token")
	}

	// 4. The token opens the data endpoints.
	req := httptest.NewRequest("GET", "/api/v1/windows", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	out := httptest.NewRecorder()
	srv.Router().ServeHTTP(out, req)
	if out.Code != http.StatusOK {
		t.Fatalf("with token: status = %d, want 200", out.Code)
	}

	// 5. A mangled token does not.
	req = httptest.NewRequest("GET", "/api/v1/windows", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token+"x")
	out = httptest.NewRecorder()
	srv.Router().ServeHTTP(out, req)
	if out.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", out.Code)
	}
}

func TestAuthOpenEndpointsStayOpen(t *testing.T) {
	srv, _ := newTestServer(t, authConfig("hunter2"))

	// Health, config and the dashboard never require a token.
	for _, path := range []string{"/health", "/config.json", "/"} {
		rec := doGET(t, srv, path)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestLoginDisabled(t *testing.T) {
	srv, _ := newTestServer(t, testConfig())

	rec := postLogin(t, srv, `{"password":"anything"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
