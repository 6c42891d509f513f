package navigator

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/ministry/internal/admin"
	"github.com/hitoshi/ministry/internal/guard"
	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/session"
)

// --- モック ---

type mockPosts struct {
	limits []int
	bySlug map[string]*model.BlogPost
	err    error
}

func (m *mockPosts) ListPublished(_ context.Context, limit int) ([]*model.BlogPost, error) {
	m.limits = append(m.limits, limit)
	if m.err != nil {
		return nil, m.err
	}
	return []*model.BlogPost{{ID: "p1"}}, nil
}

func (m *mockPosts) GetPublishedBySlug(_ context.Context, slug string) (*model.BlogPost, error) {
	if p, ok := m.bySlug[slug]; ok {
		return p, nil
	}
	return nil, model.NewPostNotFoundError(slug)
}

type mockComments struct{ postIDs []string }

func (m *mockComments) ListApprovedForPost(_ context.Context, postID string) ([]*model.Comment, error) {
	m.postIDs = append(m.postIDs, postID)
	return []*model.Comment{{ID: "c1", PostID: postID}}, nil
}

type mockTestimonies struct{ limits []int }

func (m *mockTestimonies) PublicFeed(_ context.Context, limit int) ([]*model.Testimony, error) {
	m.limits = append(m.limits, limit)
	return []*model.Testimony{{ID: "t1"}}, nil
}

type mockAdmin struct {
	loadCalled    bool
	summaryCalled bool
	loadErr       error
}

func (m *mockAdmin) Load(context.Context) (*admin.Data, error) {
	m.loadCalled = true
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return &admin.Data{}, nil
}

func (m *mockAdmin) Summary(context.Context) (*admin.Summary, error) {
	m.summaryCalled = true
	return &admin.Summary{PendingComments: 2}, nil
}

type fixture struct {
	nav         *Navigator
	posts       *mockPosts
	comments    *mockComments
	testimonies *mockTestimonies
	admin       *mockAdmin
}

func newFixture() *fixture {
	f := &fixture{
		posts:       &mockPosts{bySlug: map[string]*model.BlogPost{"grace": {ID: "p-grace", Slug: "grace"}}},
		comments:    &mockComments{},
		testimonies: &mockTestimonies{},
		admin:       &mockAdmin{},
	}
	f.nav = New(f.posts, f.comments, f.testimonies, f.admin)
	return f
}

var (
	anonymous = session.State{}
	loading   = session.State{Loading: true}
	member    = session.State{
		Account: &model.Account{ID: "u1", Email: "ruth@example.com", FullName: "Ruth A."},
		Profile: &model.Profile{ID: "u1", Email: "ruth@example.com", FullName: "Ruth"},
	}
	adminState = session.State{
		Account: &model.Account{ID: "u2"},
		Profile: &model.Profile{ID: "u2", IsAdmin: true},
		IsAdmin: true,
	}
)

// --- テスト ---

func TestNavigate_UnknownPageFallsBackToHome(t *testing.T) {
	for _, page := range []string{"", "contact", "ADMIN", "../admin"} {
		f := newFixture()
		view, err := f.nav.Navigate(context.Background(), Request{Page: page, State: anonymous})
		if err != nil {
			t.Fatalf("Navigate(%q) error: %v", page, err)
		}
		if view.Page != model.PageHome || view.Decision != guard.Permit {
			t.Errorf("Navigate(%q) = %s/%s, want home/permit", page, view.Page, view.Decision)
		}
	}
}

func TestNavigate_HomeLoadsLatestThree(t *testing.T) {
	f := newFixture()
	view, err := f.nav.Navigate(context.Background(), Request{Page: "home", State: anonymous})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, ok := view.Data.(*HomeData)
	if !ok {
		t.Fatalf("Data = %T", view.Data)
	}
	if len(data.Posts) != 1 || len(data.Testimonies) != 1 {
		t.Errorf("data = %+v", data)
	}
	if f.posts.limits[0] != HomeItems || f.testimonies.limits[0] != HomeItems {
		t.Errorf("limits = %v / %v, want %d", f.posts.limits, f.testimonies.limits, HomeItems)
	}
}

func TestNavigate_BlogPost(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantPage model.PageID
	}{
		{"resolvable slug", "grace", model.PageBlogPost},
		{"missing payload", "", model.PageBlog},
		{"blank payload", "  ", model.PageBlog},
		{"unknown slug", "draft-or-missing", model.PageBlog},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			view, err := f.nav.Navigate(context.Background(), Request{Page: "blog-post", Payload: tt.payload})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if view.Page != tt.wantPage {
				t.Errorf("Page = %s, want %s", view.Page, tt.wantPage)
			}
			switch tt.wantPage {
			case model.PageBlogPost:
				data := view.Data.(*PostData)
				if data.Post.ID != "p-grace" || len(f.comments.postIDs) != 1 || f.comments.postIDs[0] != "p-grace" {
					t.Errorf("post data = %+v, comment lookups = %v", data, f.comments.postIDs)
				}
			case model.PageBlog:
				if _, ok := view.Data.(*BlogData); !ok {
					t.Errorf("Data = %T, want *BlogData", view.Data)
				}
				if view.RedirectTo != model.PageBlog {
					t.Errorf("RedirectTo = %q", view.RedirectTo)
				}
			}
		})
	}
}

func TestNavigate_TestimonyRequiresAuth(t *testing.T) {
	tests := []struct {
		name         string
		state        session.State
		wantDecision guard.Decision
	}{
		{"loading", loading, guard.Wait},
		{"anonymous", anonymous, guard.Prompt},
		{"member", member, guard.Permit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			view, err := f.nav.Navigate(context.Background(), Request{Page: "testimony", State: tt.state})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if view.Decision != tt.wantDecision {
				t.Fatalf("Decision = %s, want %s", view.Decision, tt.wantDecision)
			}
			switch tt.wantDecision {
			case guard.Prompt:
				if len(view.Options) != 2 || view.Options[0] != model.PageLogin || view.Options[1] != model.PageHome {
					t.Errorf("Options = %v", view.Options)
				}
				if view.Data != nil {
					t.Error("protected content must not be rendered")
				}
			case guard.Wait:
				if view.Data != nil {
					t.Error("nothing should be rendered while loading")
				}
			case guard.Permit:
				form := view.Data.(*TestimonyFormData)
				if form.AuthorName != "Ruth" || form.AuthorEmail != "ruth@example.com" {
					t.Errorf("form = %+v, want profile values", form)
				}
			}
		})
	}
}

func TestNavigate_AdminGate(t *testing.T) {
	authedNonAdmin := member
	staleFlag := session.State{IsAdmin: true}

	tests := []struct {
		name         string
		state        session.State
		demo         bool
		wantDecision guard.Decision
	}{
		{"loading", loading, false, guard.Wait},
		{"anonymous gets denied, not a prompt", anonymous, false, guard.Denied},
		{"member", authedNonAdmin, false, guard.Denied},
		{"flag without account", staleFlag, false, guard.Denied},
		{"demo marker does not satisfy admin gate", anonymous, true, guard.Denied},
		{"admin", adminState, false, guard.Permit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			view, err := f.nav.Navigate(context.Background(), Request{Page: "admin", State: tt.state, DemoAdmin: tt.demo})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if view.Decision != tt.wantDecision {
				t.Errorf("Decision = %s, want %s", view.Decision, tt.wantDecision)
			}
			if len(view.Options) != 0 {
				t.Errorf("admin gate must not offer sign-in options: %v", view.Options)
			}
			if f.admin.loadCalled != (tt.wantDecision == guard.Permit) {
				t.Errorf("admin data loaded = %v", f.admin.loadCalled)
			}
		})
	}
}

func TestNavigate_AdminLoadFailure(t *testing.T) {
	f := newFixture()
	f.admin.loadErr = model.NewDataServiceError("list comments", errors.New("down"))

	view, err := f.nav.Navigate(context.Background(), Request{Page: "admin", State: adminState})
	if view != nil {
		t.Errorf("expected no view, got %+v", view)
	}
	var dsErr *model.DataServiceError
	if !errors.As(err, &dsErr) {
		t.Errorf("expected DataServiceError, got %v", err)
	}
}

func TestNavigate_AdminDashboardNeedsDemoMarker(t *testing.T) {
	f := newFixture()
	view, err := f.nav.Navigate(context.Background(), Request{Page: "admin-dashboard", State: adminState})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Page != model.PageAdminLogin || view.RedirectTo != model.PageAdminLogin {
		t.Errorf("view = %+v, want redirect to admin-login", view)
	}
	if f.admin.summaryCalled {
		t.Error("summary must not load without the marker")
	}

	f = newFixture()
	view, err = f.nav.Navigate(context.Background(), Request{Page: "admin-dashboard", DemoAdmin: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Page != model.PageAdminDashboard {
		t.Errorf("Page = %s", view.Page)
	}
	if s, ok := view.Data.(*admin.Summary); !ok || s.PendingComments != 2 {
		t.Errorf("Data = %+v", view.Data)
	}
}

func TestNavigate_PublicPagesIgnoreSession(t *testing.T) {
	for _, page := range []string{"about", "login", "admin-login", "blog", "testimonies"} {
		f := newFixture()
		view, err := f.nav.Navigate(context.Background(), Request{Page: page, State: loading})
		if err != nil {
			t.Fatalf("Navigate(%q) error: %v", page, err)
		}
		if view.Decision != guard.Permit || string(view.Page) != page {
			t.Errorf("Navigate(%q) = %s/%s", page, view.Page, view.Decision)
		}
	}
}

func TestNavigate_LoaderErrorPropagates(t *testing.T) {
	f := newFixture()
	f.posts.err = model.NewDataServiceError("list posts", errors.New("down"))

	if _, err := f.nav.Navigate(context.Background(), Request{Page: "blog"}); err == nil {
		t.Fatal("expected error")
	}
}
