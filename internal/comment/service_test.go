package comment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/moderation"
	"github.com/hitoshi/ministry/internal/repository"
	"github.com/hitoshi/ministry/internal/security"
)

type memoryRepo struct {
	mu       sync.Mutex
	comments map[string]*model.Comment
	queries  []repository.ListQuery
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{comments: map[string]*model.Comment{}}
}

func (r *memoryRepo) Create(_ context.Context, c *model.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *c
	r.comments[c.ID] = &copied
	return nil
}

func (r *memoryRepo) filter(postID string, q repository.ListQuery) []*model.Comment {
	r.queries = append(r.queries, q)
	var out []*model.Comment
	for _, c := range r.comments {
		if postID != "" && c.PostID != postID {
			continue
		}
		if q.ApprovedOnly && !c.Approval.Approved {
			continue
		}
		copied := *c
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *memoryRepo) ListByPost(_ context.Context, postID string, q repository.ListQuery) ([]*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(postID, q), nil
}

func (r *memoryRepo) List(_ context.Context, q repository.ListQuery) ([]*model.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter("", q), nil
}

func (r *memoryRepo) FindApproval(_ context.Context, id string) (*model.Approval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, nil
	}
	a := c.Approval
	return &a, nil
}

func (r *memoryRepo) UpdateApproval(_ context.Context, id string, a model.Approval) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comments[id].Approval = a
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.comments, id)
	return nil
}

func (r *memoryRepo) CountByApproval(_ context.Context, approved bool) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.comments {
		if c.Approval.Approved == approved {
			n++
		}
	}
	return n, nil
}

var _ repository.CommentRepository = (*memoryRepo)(nil)

type stubPosts struct {
	posts map[string]*model.BlogPost
	err   error
}

func (s *stubPosts) GetPublishedBySlug(_ context.Context, slug string) (*model.BlogPost, error) {
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.posts[slug]
	if !ok {
		return nil, model.NewPostNotFoundError(slug)
	}
	return p, nil
}

func newTestService() (*Service, *memoryRepo, *stubPosts) {
	repo := newMemoryRepo()
	posts := &stubPosts{posts: map[string]*model.BlogPost{
		"grace": {ID: "post-1", Slug: "grace"},
		"peace": {ID: "post-2", Slug: "peace"},
	}}
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		start = start.Add(time.Second)
		return start
	}
	wf := moderation.NewWorkflow(model.ContentKindComment, repo, moderation.WithClock(clock))
	return NewService(repo, posts, wf, security.NewContentSanitizer()), repo, posts
}

var valid = SubmitInput{AuthorName: "Lydia", AuthorEmail: "lydia@example.com", Content: "Amen!"}

func TestSubmit_PendingAndAttachedToPost(t *testing.T) {
	svc, repo, _ := newTestService()

	c, err := svc.Submit(context.Background(), "grace", valid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := repo.comments[c.ID]
	if stored.PostID != "post-1" {
		t.Errorf("PostID = %q", stored.PostID)
	}
	if stored.Approval.Approved || stored.Approval.ApprovedAt != nil {
		t.Errorf("approval = %+v, want pending", stored.Approval)
	}
}

func TestSubmit_KeepsTextVerbatim(t *testing.T) {
	svc, repo, _ := newTestService()
	in := SubmitInput{AuthorName: "Tom & Jerry", AuthorEmail: "tj@example.com", Content: "x<y and a>b\n<3 Jesus"}

	c, err := svc.Submit(context.Background(), "grace", in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := repo.comments[c.ID]
	if stored.AuthorName != in.AuthorName || stored.Content != in.Content {
		t.Errorf("stored name=%q content=%q", stored.AuthorName, stored.Content)
	}
}

func TestSubmit_UnknownOrUnpublishedPost(t *testing.T) {
	svc, repo, _ := newTestService()

	_, err := svc.Submit(context.Background(), "draft", valid)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePostNotFound {
		t.Errorf("expected POST_NOT_FOUND, got %v", err)
	}
	if len(repo.comments) != 0 {
		t.Error("nothing should be persisted")
	}
}

func TestSubmit_ValidationBeforeLookup(t *testing.T) {
	svc, _, posts := newTestService()
	posts.err = errors.New("lookup must not be called")

	tests := []struct {
		name  string
		in    SubmitInput
		field string
	}{
		{"blank name", SubmitInput{AuthorName: " ", AuthorEmail: "a@b.co", Content: "x"}, "author_name"},
		{"bad email", SubmitInput{AuthorName: "A", AuthorEmail: "a@b", Content: "x"}, "author_email"},
		{"blank content", SubmitInput{AuthorName: "A", AuthorEmail: "a@b.co", Content: "   "}, "content"},
		{"control character", SubmitInput{AuthorName: "A", AuthorEmail: "a@b.co", Content: "bell\x07"}, "content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), "grace", tt.in)
			var vErr *model.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
			if _, ok := vErr.Fields[tt.field]; !ok {
				t.Errorf("Fields = %v, want %q", vErr.Fields, tt.field)
			}
		})
	}
}

func TestListApproved_FiltersAndOrders(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	first, _ := svc.Submit(ctx, "grace", valid)
	svc.Submit(ctx, "grace", valid)
	third, _ := svc.Submit(ctx, "grace", valid)
	other, _ := svc.Submit(ctx, "peace", valid)
	for _, id := range []string{first.ID, third.ID, other.ID} {
		if _, err := svc.SetApproval(ctx, id, true); err != nil {
			t.Fatalf("SetApproval() error: %v", err)
		}
	}

	got, err := svc.ListApproved(ctx, "grace")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d comments, want 2", len(got))
	}
	if got[0].ID != third.ID || got[1].ID != first.ID {
		t.Errorf("order = [%s %s], want newest first", got[0].ID, got[1].ID)
	}

	last := repo.queries[len(repo.queries)-1]
	if !last.ApprovedOnly || last.SortBy != repository.SortByCreatedAt {
		t.Errorf("public query = %+v", last)
	}
}

func TestModeration(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	c, _ := svc.Submit(ctx, "grace", valid)

	if n, _ := svc.PendingCount(ctx); n != 1 {
		t.Errorf("PendingCount() = %d, want 1", n)
	}

	a, err := svc.SetApproval(ctx, c.ID, true)
	if err != nil || !a.Approved {
		t.Fatalf("SetApproval(true) = %+v, %v", a, err)
	}
	a, err = svc.SetApproval(ctx, c.ID, false)
	if err != nil || a.Approved || a.ApprovedAt != nil {
		t.Fatalf("SetApproval(false) = %+v, %v", a, err)
	}

	all, _ := svc.ListAll(ctx)
	if len(all) != 1 {
		t.Errorf("ListAll() = %d, want 1", len(all))
	}

	if err := svc.Delete(ctx, c.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if len(repo.comments) != 0 {
		t.Error("comment should be deleted")
	}
}
