package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ministry/internal/blog"
	"github.com/hitoshi/ministry/internal/comment"
	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/testimony"
)

// maxListLimit は公開一覧で指定できる件数の上限。
const maxListLimit = 100

// PublicPostService は公開記事を読み込むサービス。
type PublicPostService interface {
	ListPublished(ctx context.Context, limit int) ([]*model.BlogPost, error)
	GetPublishedBySlug(ctx context.Context, slug string) (*model.BlogPost, error)
}

// PublicCommentService はコメントの投稿と公開一覧のサービス。
type PublicCommentService interface {
	Submit(ctx context.Context, postSlug string, in comment.SubmitInput) (*model.Comment, error)
	ListApproved(ctx context.Context, postSlug string) ([]*model.Comment, error)
}

// PublicTestimonyService は証しの投稿と公開一覧のサービス。
type PublicTestimonyService interface {
	Submit(ctx context.Context, in testimony.SubmitInput, submitter *model.Profile) (*model.Testimony, error)
	PublicFeed(ctx context.Context, limit int) ([]*model.Testimony, error)
}

// ContentHandler は公開コンテンツのHTTPハンドラー。
type ContentHandler struct {
	posts       PublicPostService
	comments    PublicCommentService
	testimonies PublicTestimonyService
	feed        blog.FeedInfo
}

// NewContentHandler はContentHandlerを生成する。
func NewContentHandler(
	posts PublicPostService,
	comments PublicCommentService,
	testimonies PublicTestimonyService,
	feed blog.FeedInfo,
) *ContentHandler {
	return &ContentHandler{
		posts:       posts,
		comments:    comments,
		testimonies: testimonies,
		feed:        feed,
	}
}

// ListPosts は公開済み記事を新しい順に返す。
// GET /api/posts?limit=N
func (h *ContentHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	posts, err := h.posts.ListPublished(r.Context(), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponses(posts))
}

// GetPost はスラッグで公開済み記事を返す。未公開の記事は404。
// GET /api/posts/{slug}
func (h *ContentHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.GetPublishedBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(post))
}

// ListComments は記事の承認済みコメントを返す。
// GET /api/posts/{slug}/comments
func (h *ContentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.ListApproved(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommentResponses(comments, false))
}

// SubmitComment はコメントを投稿する。コメントは承認されるまで公開されない。
// POST /api/posts/{slug}/comments
func (h *ContentHandler) SubmitComment(w http.ResponseWriter, r *http.Request) {
	var req comment.SubmitInput
	if err := readJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	c, err := h.comments.Submit(r.Context(), chi.URLParam(r, "slug"), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentResponse(c, false))
}

// ListTestimonies は承認済みの証しを新しい順に返す。
// GET /api/testimonies?limit=N
func (h *ContentHandler) ListTestimonies(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	items, err := h.testimonies.PublicFeed(r.Context(), limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTestimonyResponses(items, false))
}

// SubmitTestimony は証しを投稿する。空の氏名とメールアドレスはプロフィールから補う。
// POST /api/testimonies
func (h *ContentHandler) SubmitTestimony(w http.ResponseWriter, r *http.Request) {
	var req testimony.SubmitInput
	if err := readJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	// 誰でも投稿できる。サインイン済みの場合だけ氏名とメールをプロフィールで補う
	var submitter *model.Profile
	if state := currentState(r); state.Authenticated() {
		submitter = state.Profile
	}

	t, err := h.testimonies.Submit(r.Context(), req, submitter)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTestimonyResponse(t, false))
}

// RSS は公開済み記事のRSSフィードを返す。
// GET /blog/rss.xml
func (h *ContentHandler) RSS(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListPublished(r.Context(), 0)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	if err := blog.WriteRSS(w, h.feed, posts); err != nil {
		slog.Error("failed to write rss feed", slog.String("error", err.Error()))
	}
}

// parseLimit はlimitクエリを解析する。未指定の場合は0（全件）を返す。
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxListLimit {
		return 0, model.NewValidationError("limit", "limit must be between 1 and 100")
	}
	return limit, nil
}
