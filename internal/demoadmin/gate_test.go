package demoadmin

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	g, err := New(Config{Email: "demo@example.com", Password: "Demo-pass1", MaxAge: time.Hour})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return g
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"match", "demo@example.com", "Demo-pass1", nil},
		{"email is case-insensitive", " Demo@Example.com ", "Demo-pass1", nil},
		{"wrong password", "demo@example.com", "demo-pass1", ErrInvalidCredentials},
		{"wrong email", "other@example.com", "Demo-pass1", ErrInvalidCredentials},
		{"empty", "", "", ErrInvalidCredentials},
	}

	g := newTestGate(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			marker, err := g.Login(tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Login() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && !g.Verify(marker) {
				t.Error("issued marker should verify")
			}
		})
	}
}

func TestDisabledWithoutBothCredentials(t *testing.T) {
	for _, cfg := range []Config{{}, {Email: "demo@example.com"}, {Password: "x"}} {
		g, err := New(cfg)
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		if g.Enabled() {
			t.Errorf("Enabled() = true for %+v", cfg)
		}
		if _, err := g.Login(cfg.Email, cfg.Password); !errors.Is(err, ErrDisabled) {
			t.Errorf("Login() error = %v, want ErrDisabled", err)
		}
	}
}

func TestVerify_RejectsForgedAndExpired(t *testing.T) {
	g := newTestGate(t)
	marker, err := g.Login("demo@example.com", "Demo-pass1")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	other := newTestGate(t)
	if other.Verify(marker) {
		t.Error("marker signed by another process key must not verify")
	}

	forged, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("guessed"))
	if g.Verify(forged) {
		t.Error("forged marker must not verify")
	}

	if g.Verify("true") {
		t.Error("plain flag value must not verify")
	}

	g.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if g.Verify(marker) {
		t.Error("expired marker must not verify")
	}
}

func TestCookieRoundTrip(t *testing.T) {
	g := newTestGate(t)
	marker, _ := g.Login("demo@example.com", "Demo-pass1")

	rec := httptest.NewRecorder()
	g.SetCookie(rec, marker)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName || !cookies[0].HttpOnly {
		t.Fatalf("cookies = %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	if !g.FromRequest(req) {
		t.Error("FromRequest() = false, want true")
	}

	if g.FromRequest(httptest.NewRequest(http.MethodGet, "/", nil)) {
		t.Error("request without cookie should not pass")
	}

	rec = httptest.NewRecorder()
	g.ClearCookie(rec)
	if c := rec.Result().Cookies()[0]; c.MaxAge >= 0 {
		t.Errorf("cleared cookie MaxAge = %d, want negative", c.MaxAge)
	}
}
