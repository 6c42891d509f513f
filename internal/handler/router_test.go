package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/ministry/internal/admin"
	"github.com/hitoshi/ministry/internal/demoadmin"
	"github.com/hitoshi/ministry/internal/guard"
	"github.com/hitoshi/ministry/internal/middleware"
	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/navigator"
	"github.com/hitoshi/ministry/internal/session"
	"github.com/hitoshi/ministry/internal/testimony"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

const testCSRFToken = "csrf-test-token"

type routerFixture struct {
	client      *mockIdentity
	gate        *demoadmin.Gate
	nav         *mockNavigator
	testimonies *mockPublicTestimonies
	handler     http.Handler
}

func newRouterFixture(t *testing.T, ping pingFunc) *routerFixture {
	t.Helper()

	client := newMockIdentity()
	client.add("sess-member", "member-1")
	client.add("sess-admin", "admin-1")
	profiles := newProfiles("admin-1")

	gate, err := demoadmin.New(demoadmin.Config{Email: "demo@example.org", Password: "demo-pass"})
	if err != nil {
		t.Fatalf("demoadmin.New: %v", err)
	}

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	f := &routerFixture{
		client: client,
		gate:   gate,
		nav: &mockNavigator{navigateFn: func(_ context.Context, req navigator.Request) (*navigator.View, error) {
			return &navigator.View{Page: model.PageID(req.Page), Decision: guard.Permit}, nil
		}},
		testimonies: &mockPublicTestimonies{
			submitFn: func(_ context.Context, in testimony.SubmitInput, _ *model.Profile) (*model.Testimony, error) {
				return &model.Testimony{ID: "t1", Title: in.Title}, nil
			},
			feedFn: func(context.Context, int) ([]*model.Testimony, error) { return nil, nil },
		},
	}

	deps := &RouterDeps{
		StoreFactory:   func() *session.Store { return session.NewStore(client, profiles) },
		SessionTimeout: time.Second,
		RateLimiter:    rl,

		Navigator: f.nav,
		DemoGate:  gate,

		Posts:       &mockPublicPosts{},
		Comments:    &mockPublicComments{},
		Testimonies: f.testimonies,

		Dashboard:           &mockDashboard{data: &admin.Data{}},
		AdminPosts:          &mockAdminPosts{},
		CommentModeration:   newMockModeration(),
		TestimonyModeration: newMockModeration(),
	}
	if ping != nil {
		deps.HealthChecker = ping
	}
	f.handler = NewRouter(deps)
	return f
}

func (f *routerFixture) do(req *http.Request, sessionID string) *httptest.ResponseRecorder {
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sessionID})
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func withCSRF(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	req.Header.Set(middleware.CSRFHeaderName, testCSRFToken)
	return req
}

func TestRouter_Health(t *testing.T) {
	f := newRouterFixture(t, func(context.Context) error { return nil })
	if w := f.do(httptest.NewRequest(http.MethodGet, "/health", nil), ""); w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}

	f = newRouterFixture(t, func(context.Context) error { return errors.New("db down") })
	if w := f.do(httptest.NewRequest(http.MethodGet, "/health", nil), ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", w.Code)
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	f := newRouterFixture(t, nil)
	w := f.do(httptest.NewRequest(http.MethodGet, "/api/pages/home", nil), "")
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("headers = %v", w.Header())
	}
}

func TestRouter_AdminGate(t *testing.T) {
	tests := []struct {
		name       string
		sessionID  string
		wantStatus int
	}{
		{"anonymous", "", http.StatusForbidden},
		{"member", "sess-member", http.StatusForbidden},
		{"unknown session", "sess-gone", http.StatusForbidden},
		{"admin", "sess-admin", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t, nil)
			w := f.do(httptest.NewRequest(http.MethodGet, "/api/admin/dashboard", nil), tt.sessionID)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusForbidden {
				if body := decodeError(t, w); body.Code != model.ErrCodeAccessDenied {
					t.Errorf("code = %q", body.Code)
				}
			}
		})
	}
}

func TestRouter_DemoMarkerDoesNotOpenAdminAPI(t *testing.T) {
	f := newRouterFixture(t, nil)
	marker, err := f.gate.Login("demo@example.org", "demo-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: demoadmin.CookieName, Value: marker})
	if w := f.do(req, ""); w.Code != http.StatusForbidden {
		t.Errorf("admin API with demo marker: status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/pages/admin-dashboard", nil)
	req.AddCookie(&http.Cookie{Name: demoadmin.CookieName, Value: marker})
	if w := f.do(req, ""); w.Code != http.StatusOK {
		t.Errorf("page status = %d", w.Code)
	}
	if !f.nav.got.DemoAdmin {
		t.Error("page request should carry the demo marker")
	}
}

func TestRouter_DemoAdminLogin(t *testing.T) {
	f := newRouterFixture(t, nil)

	req := withCSRF(jsonRequest(http.MethodPost, "/api/demo-admin/login", `{"email":"demo@example.org","password":"demo-pass"}`))
	w := f.do(req, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	cookie := findCookie(w, demoadmin.CookieName)
	if cookie == nil || !f.gate.Verify(cookie.Value) {
		t.Fatalf("marker cookie = %+v", cookie)
	}

	req = withCSRF(jsonRequest(http.MethodPost, "/api/demo-admin/login", `{"email":"demo@example.org","password":"nope"}`))
	if w := f.do(req, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d", w.Code)
	}
}

func TestRouter_TestimonySubmission(t *testing.T) {
	anonymousBody := `{"author_name":"Ann","author_email":"ann@example.org","title":"Healed","content":"Story"}`
	memberBody := `{"title":"Healed","content":"Story"}`

	t.Run("missing csrf token", func(t *testing.T) {
		f := newRouterFixture(t, nil)
		w := f.do(jsonRequest(http.MethodPost, "/api/testimonies", anonymousBody), "")
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d", w.Code)
		}
		if resp := decodeError(t, w); resp.Code != "CSRF_VALIDATION_FAILED" {
			t.Errorf("code = %q", resp.Code)
		}
	})

	t.Run("anonymous visitor", func(t *testing.T) {
		f := newRouterFixture(t, nil)
		var submitter *model.Profile
		var got testimony.SubmitInput
		f.testimonies.submitFn = func(_ context.Context, in testimony.SubmitInput, p *model.Profile) (*model.Testimony, error) {
			got, submitter = in, p
			return &model.Testimony{ID: "t1", AuthorName: in.AuthorName, Title: in.Title}, nil
		}

		w := f.do(withCSRF(jsonRequest(http.MethodPost, "/api/testimonies", anonymousBody)), "")

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		if submitter != nil {
			t.Errorf("anonymous submission must not carry a profile: %+v", submitter)
		}
		if got.AuthorName != "Ann" || got.AuthorEmail != "ann@example.org" {
			t.Errorf("input = %+v", got)
		}
	})

	t.Run("unknown session is treated as anonymous", func(t *testing.T) {
		f := newRouterFixture(t, nil)
		var submitter *model.Profile
		f.testimonies.submitFn = func(_ context.Context, in testimony.SubmitInput, p *model.Profile) (*model.Testimony, error) {
			submitter = p
			return &model.Testimony{ID: "t1"}, nil
		}

		w := f.do(withCSRF(jsonRequest(http.MethodPost, "/api/testimonies", anonymousBody)), "sess-gone")

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d", w.Code)
		}
		if submitter != nil {
			t.Errorf("submitter = %+v", submitter)
		}
	})

	t.Run("member", func(t *testing.T) {
		f := newRouterFixture(t, nil)
		var submitter *model.Profile
		f.testimonies.submitFn = func(_ context.Context, in testimony.SubmitInput, p *model.Profile) (*model.Testimony, error) {
			submitter = p
			return &model.Testimony{ID: "t1", Title: in.Title}, nil
		}

		w := f.do(withCSRF(jsonRequest(http.MethodPost, "/api/testimonies", memberBody)), "sess-member")

		if w.Code != http.StatusCreated {
			t.Errorf("status = %d, body = %s", w.Code, w.Body.String())
		}
		if submitter == nil || submitter.ID != "member-1" {
			t.Errorf("submitter = %+v", submitter)
		}
	})
}

func TestRouter_SessionEndpoint(t *testing.T) {
	f := newRouterFixture(t, nil)
	w := f.do(httptest.NewRequest(http.MethodGet, "/auth/session", nil), "sess-admin")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body sessionResponse
	json.NewDecoder(w.Body).Decode(&body)
	if !body.Authenticated || !body.IsAdmin {
		t.Errorf("body = %+v", body)
	}
}

func TestRouter_CSRFTokenIssued(t *testing.T) {
	f := newRouterFixture(t, nil)
	w := f.do(httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"token"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}
