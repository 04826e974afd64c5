package identity

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	tok, err := a.IssueJWT("s1", "Ada", RoleStudent)
	if err != nil {
		t.Fatal(err)
	}
	c, err := a.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Sub != "s1" || c.Name != "Ada" || c.Role != RoleStudent {
		t.Fatalf("claims = %+v", c)
	}

	other := NewAuthService("other", time.Hour)
	if _, err := other.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong key err = %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	tok, _ := a.IssueJWT("s1", "Ada", RoleStudent)

	var seen *Claims
	h := Middleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
	}))

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantSub  string
	}{
		{"anonymous", "", http.StatusOK, ""},
		{"valid", "Bearer " + tok, http.StatusOK, "s1"},
		{"garbage", "Bearer nope", http.StatusUnauthorized, ""},
		{"basic", "Basic abc", http.StatusUnauthorized, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tc.wantCode)
			}
			got := ""
			if seen != nil {
				got = seen.Sub
			}
			if got != tc.wantSub {
				t.Errorf("sub = %q, want %q", got, tc.wantSub)
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	a := NewAuthService("secret", time.Hour)
	h := LoginHandler(a, Admin{User: "admin", PassHash: string(hash)})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin","password":"pw"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var out map[string]string
	_ = json.NewDecoder(rec.Body).Decode(&out)
	c, err := a.Parse(out["access_token"])
	if err != nil || c.Role != RoleAdmin {
		t.Fatalf("token claims = %+v, err = %v", c, err)
	}

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"admin","password":"nope"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password code = %d", rec.Code)
	}
}
