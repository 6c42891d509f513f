package blog

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/moderation"
	"github.com/hitoshi/ministry/internal/repository"
	"github.com/hitoshi/ministry/internal/security"
)

// --- モック定義 ---

type memoryPostRepo struct {
	mu      sync.Mutex
	posts   map[string]*model.BlogPost
	listErr error
	lastQ   repository.ListQuery
}

func newMemoryPostRepo() *memoryPostRepo {
	return &memoryPostRepo{posts: map[string]*model.BlogPost{}}
}

func (r *memoryPostRepo) FindByID(_ context.Context, id string) (*model.BlogPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (r *memoryPostRepo) FindBySlug(_ context.Context, slug string) (*model.BlogPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.Slug == slug {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memoryPostRepo) List(_ context.Context, q repository.ListQuery) ([]*model.BlogPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastQ = q
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*model.BlogPost
	for _, p := range r.posts {
		if q.ApprovedOnly && !p.Publication.Approved {
			continue
		}
		copied := *p
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *memoryPostRepo) slugTaken(slug, exceptID string) bool {
	for id, p := range r.posts {
		if p.Slug == slug && id != exceptID {
			return true
		}
	}
	return false
}

func (r *memoryPostRepo) Create(_ context.Context, post *model.BlogPost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slugTaken(post.Slug, "") {
		return repository.ErrDuplicateSlug
	}
	copied := *post
	r.posts[post.ID] = &copied
	return nil
}

func (r *memoryPostRepo) Update(_ context.Context, post *model.BlogPost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slugTaken(post.Slug, post.ID) {
		return repository.ErrDuplicateSlug
	}
	existing := r.posts[post.ID]
	copied := *post
	copied.Publication = existing.Publication
	r.posts[post.ID] = &copied
	return nil
}

func (r *memoryPostRepo) FindApproval(_ context.Context, id string) (*model.Approval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	a := p.Publication
	return &a, nil
}

func (r *memoryPostRepo) UpdateApproval(_ context.Context, id string, a model.Approval) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.posts[id]; ok {
		p.Publication = a
	}
	return nil
}

func (r *memoryPostRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posts, id)
	return nil
}

func (r *memoryPostRepo) CountByApproval(_ context.Context, approved bool) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.posts {
		if p.Publication.Approved == approved {
			n++
		}
	}
	return n, nil
}

var _ repository.PostRepository = (*memoryPostRepo)(nil)

type stubImages struct {
	probeErr error
	probed   []string
}

func (s *stubImages) ValidateURL(raw string) error {
	return security.NewSSRFGuard(time.Second).ValidateURL(raw)
}

func (s *stubImages) ProbeImage(_ context.Context, raw string) error {
	s.probed = append(s.probed, raw)
	return s.probeErr
}

func newTestService(t *testing.T, opts ...Option) (*Service, *memoryPostRepo, *stubImages, *time.Time) {
	t.Helper()
	repo := newMemoryPostRepo()
	images := &stubImages{}
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	wf := moderation.NewWorkflow(model.ContentKindPost, repo, moderation.WithClock(clock))
	svc := NewService(repo, wf, security.NewContentSanitizer(), images, opts...)
	return svc, repo, images, &now
}

// --- テスト ---

func TestCreate_DerivesSlugExcerptAndSanitizes(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	post, err := svc.Create(context.Background(), "admin-1", PostInput{
		Title:   "The Power of Faith!",
		Content: `<p>Faith moves <strong>mountains</strong>.</p><script>steal()</script>`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if post.Slug != "the-power-of-faith" {
		t.Errorf("Slug = %q", post.Slug)
	}
	if strings.Contains(post.Content, "script") {
		t.Errorf("Content not sanitized: %q", post.Content)
	}
	if post.Excerpt != "Faith moves mountains." {
		t.Errorf("Excerpt = %q", post.Excerpt)
	}
	if post.AuthorID == nil || *post.AuthorID != "admin-1" {
		t.Errorf("AuthorID = %v", post.AuthorID)
	}
	if post.Publication.Approved || post.Publication.ApprovedAt != nil {
		t.Errorf("draft should be unpublished: %+v", post.Publication)
	}
}

func TestCreate_PublishedStampsNow(t *testing.T) {
	svc, _, _, now := newTestService(t)

	post, err := svc.Create(context.Background(), "admin-1", PostInput{Title: "Easter", Content: "<p>He is risen</p>", Published: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !post.Publication.Approved || post.Publication.ApprovedAt == nil || !post.Publication.ApprovedAt.Equal(*now) {
		t.Errorf("Publication = %+v, want published at %v", post.Publication, now)
	}
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name  string
		in    PostInput
		field string
	}{
		{"blank title", PostInput{Title: "  ", Content: "<p>x</p>"}, "title"},
		{"punctuation-only title", PostInput{Title: "!!!", Content: "<p>x</p>"}, "title"},
		{"blank content", PostInput{Title: "T", Content: " "}, "content"},
		{"content only script", PostInput{Title: "T", Content: "<script>x</script>"}, "content"},
		{"private image", PostInput{Title: "T", Content: "<p>x</p>", FeaturedImage: "http://169.254.169.254/latest"}, "featured_image"},
		{"non-http image", PostInput{Title: "T", Content: "<p>x</p>", FeaturedImage: "file:///etc/passwd"}, "featured_image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _, _ := newTestService(t)
			_, err := svc.Create(context.Background(), "admin-1", tt.in)

			var vErr *model.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
			if _, ok := vErr.Fields[tt.field]; !ok {
				t.Errorf("Fields = %v, want %q", vErr.Fields, tt.field)
			}
			if len(repo.posts) != 0 {
				t.Error("nothing should be persisted")
			}
		})
	}
}

func TestCreate_TrustedImageSkipsProbe(t *testing.T) {
	svc, _, images, _ := newTestService(t, WithTrustedImagePrefix("https://cdn.ministry.example/images/"), WithImageProbe(true))
	ctx := context.Background()

	if _, err := svc.Create(ctx, "", PostInput{Title: "A", Content: "<p>a</p>", FeaturedImage: "https://cdn.ministry.example/images/a.png"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(images.probed) != 0 {
		t.Errorf("trusted URL should not be probed: %v", images.probed)
	}

	if _, err := svc.Create(ctx, "", PostInput{Title: "B", Content: "<p>b</p>", FeaturedImage: "https://images.example.com/b.png"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(images.probed) != 1 {
		t.Errorf("external URL should be probed once, got %v", images.probed)
	}

	images.probeErr = errors.New("not an image")
	_, err := svc.Create(ctx, "", PostInput{Title: "C", Content: "<p>c</p>", FeaturedImage: "https://images.example.com/c.html"})
	var vErr *model.ValidationError
	if !errors.As(err, &vErr) || vErr.Fields["featured_image"] == "" {
		t.Errorf("expected featured_image ValidationError, got %v", err)
	}
}

func TestCreate_DuplicateSlug(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "", PostInput{Title: "Hello World", Content: "<p>a</p>"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.Create(ctx, "", PostInput{Title: "hello, world", Content: "<p>b</p>"})

	var vErr *model.ValidationError
	if !errors.As(err, &vErr) || vErr.Fields["title"] == "" {
		t.Errorf("expected title ValidationError, got %v", err)
	}
}

func TestUpdate_KeepsPublishedAtAndRegeneratesSlug(t *testing.T) {
	svc, repo, _, now := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, "admin-1", PostInput{Title: "Old Title", Content: "<p>a</p>", Published: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	*now = now.Add(24 * time.Hour)

	updated, err := svc.Update(ctx, created.ID, PostInput{Title: "New Title", Content: "<p>b</p>", Excerpt: "Custom", Published: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Slug != "new-title" {
		t.Errorf("Slug = %q", updated.Slug)
	}
	if updated.Excerpt != "Custom" {
		t.Errorf("Excerpt = %q", updated.Excerpt)
	}
	if !updated.Publication.ApprovedAt.Equal(*created.Publication.ApprovedAt) {
		t.Errorf("published_at moved from %v to %v", created.Publication.ApprovedAt, updated.Publication.ApprovedAt)
	}
	if stored := repo.posts[created.ID]; stored.AuthorID == nil || *stored.AuthorID != "admin-1" {
		t.Errorf("author changed: %v", stored.AuthorID)
	}
}

func TestUpdate_UnpublishClearsTimestamp(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	created, _ := svc.Create(ctx, "", PostInput{Title: "T", Content: "<p>a</p>", Published: true})
	updated, err := svc.Update(ctx, created.ID, PostInput{Title: "T", Content: "<p>a</p>", Published: false})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Publication.Approved || updated.Publication.ApprovedAt != nil {
		t.Errorf("Publication = %+v, want cleared", updated.Publication)
	}
	if stored := repo.posts[created.ID]; stored.Publication.ApprovedAt != nil {
		t.Errorf("stored publication = %+v", stored.Publication)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Update(context.Background(), "missing", PostInput{Title: "T", Content: "c"})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePostNotFound {
		t.Errorf("expected POST_NOT_FOUND, got %v", err)
	}
}

func TestGetPublishedBySlug_HidesDrafts(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Create(ctx, "", PostInput{Title: "Draft", Content: "<p>a</p>"})
	svc.Create(ctx, "", PostInput{Title: "Live", Content: "<p>b</p>", Published: true})

	if _, err := svc.GetPublishedBySlug(ctx, "draft"); err == nil {
		t.Error("draft should not be visible publicly")
	}
	post, err := svc.GetPublishedBySlug(ctx, "live")
	if err != nil || post.Title != "Live" {
		t.Errorf("GetPublishedBySlug(live) = %v, %v", post, err)
	}
}

func TestListPublished(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Create(ctx, "", PostInput{Title: "Draft", Content: "<p>a</p>"})
	svc.Create(ctx, "", PostInput{Title: "Live", Content: "<p>b</p>", Published: true})

	posts, err := svc.ListPublished(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 1 || posts[0].Title != "Live" {
		t.Errorf("posts = %v", posts)
	}
	if repo.lastQ.SortBy != repository.SortByApprovedAt || repo.lastQ.Limit != 3 {
		t.Errorf("query = %+v", repo.lastQ)
	}

	all, err := svc.ListAll(ctx)
	if err != nil || len(all) != 2 {
		t.Errorf("ListAll() = %d posts, %v", len(all), err)
	}

	repo.listErr = errors.New("timeout")
	_, err = svc.ListPublished(ctx, 0)
	var dsErr *model.DataServiceError
	if !errors.As(err, &dsErr) {
		t.Errorf("expected DataServiceError, got %v", err)
	}
}

func TestSetPublishedAndDelete(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()
	post, _ := svc.Create(ctx, "", PostInput{Title: "T", Content: "<p>a</p>"})

	a, err := svc.SetPublished(ctx, post.ID, true)
	if err != nil || !a.Approved {
		t.Fatalf("SetPublished() = %+v, %v", a, err)
	}
	n, _ := svc.PendingCount(ctx)
	if n != 0 {
		t.Errorf("PendingCount() = %d, want 0", n)
	}

	if err := svc.Delete(ctx, post.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if len(repo.posts) != 0 {
		t.Error("post should be deleted")
	}
}

func TestWriteRSS_ParsesAndListsOnlyPublished(t *testing.T) {
	published := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	posts := []*model.BlogPost{
		{Title: "Live & Well", Slug: "live-well", Excerpt: "Joy <b>unspeakable</b>",
			Publication: model.Approval{Approved: true, ApprovedAt: &published}},
		{Title: "Draft", Slug: "draft", Excerpt: "secret"},
	}

	var buf bytes.Buffer
	if err := WriteRSS(&buf, FeedInfo{Title: "Ministry", BaseURL: "https://ministry.example/", Description: "News"}, posts); err != nil {
		t.Fatalf("WriteRSS() error: %v", err)
	}

	feed, err := gofeed.NewParser().ParseString(buf.String())
	if err != nil {
		t.Fatalf("generated feed does not parse: %v\n%s", err, buf.String())
	}
	if feed.Title != "Ministry" || feed.Link != "https://ministry.example/blog" {
		t.Errorf("channel = %q %q", feed.Title, feed.Link)
	}
	if len(feed.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(feed.Items))
	}
	item := feed.Items[0]
	if item.Title != "Live & Well" || item.Link != "https://ministry.example/blog/live-well" {
		t.Errorf("item = %q %q", item.Title, item.Link)
	}
	if item.PublishedParsed == nil || !item.PublishedParsed.Equal(published) {
		t.Errorf("PublishedParsed = %v, want %v", item.PublishedParsed, published)
	}
	if strings.Contains(buf.String(), "secret") {
		t.Error("draft content leaked into the feed")
	}
}
