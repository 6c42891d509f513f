package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ministry/internal/admin"
	"github.com/hitoshi/ministry/internal/blog"
	"github.com/hitoshi/ministry/internal/middleware"
	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/storage"
)

// defaultMaxUploadSize は画像アップロードの既定の上限（バイト）。
const defaultMaxUploadSize = 5 << 20

// AdminPostService は管理者向けの記事サービス。
type AdminPostService interface {
	ListAll(ctx context.Context) ([]*model.BlogPost, error)
	GetByID(ctx context.Context, id string) (*model.BlogPost, error)
	Create(ctx context.Context, authorID string, in blog.PostInput) (*model.BlogPost, error)
	Update(ctx context.Context, id string, in blog.PostInput) (*model.BlogPost, error)
	SetPublished(ctx context.Context, id string, published bool) (*model.Approval, error)
	Delete(ctx context.Context, id string) error
}

// ModerationService はコメント・証しの承認と削除を行うサービス。
type ModerationService interface {
	SetApproval(ctx context.Context, id string, approved bool) (*model.Approval, error)
	Delete(ctx context.Context, id string) error
}

// DashboardLoader は管理画面の一括読み込みを行う。
type DashboardLoader interface {
	Load(ctx context.Context) (*admin.Data, error)
}

// ImageUploader は画像を保存して公開URLを返す。
type ImageUploader interface {
	Upload(ctx context.Context, filename string, r io.Reader, size int64) (string, error)
}

// AdminHandler は管理画面のHTTPハンドラー。
// ルーターで管理者ゲートの内側に配置する。
type AdminHandler struct {
	dashboard     DashboardLoader
	posts         AdminPostService
	comments      ModerationService
	testimonies   ModerationService
	images        ImageUploader
	maxUploadSize int64
}

// NewAdminHandler はAdminHandlerを生成する。imagesがnilの場合はアップロードを無効にする。
func NewAdminHandler(
	dashboard DashboardLoader,
	posts AdminPostService,
	comments ModerationService,
	testimonies ModerationService,
	images ImageUploader,
	maxUploadSize int64,
) *AdminHandler {
	if images == nil {
		images = storage.Disabled{}
	}
	if maxUploadSize <= 0 {
		maxUploadSize = defaultMaxUploadSize
	}
	return &AdminHandler{
		dashboard:     dashboard,
		posts:         posts,
		comments:      comments,
		testimonies:   testimonies,
		images:        images,
		maxUploadSize: maxUploadSize,
	}
}

type publishRequest struct {
	Published *bool `json:"published"`
}

type approvalRequest struct {
	Approved *bool `json:"approved"`
}

// Dashboard は記事・コメント・証しを一括で返す。いずれかの読み込みに失敗した場合は何も返さない。
// GET /api/admin/dashboard
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	data, err := h.dashboard.Load(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardResponse(data))
}

// ListPosts は全記事を返す。
// GET /api/admin/posts
func (h *AdminHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.posts.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponses(posts))
}

// GetPost は公開状態を問わず記事を返す。
// GET /api/admin/posts/{id}
func (h *AdminHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.posts.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(post))
}

// CreatePost は記事を作成する。著者はサインイン中の管理者。
// POST /api/admin/posts
func (h *AdminHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req blog.PostInput
	if err := readJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	authorID, _ := middleware.UserIDFromContext(r.Context())
	post, err := h.posts.Create(r.Context(), authorID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPostResponse(post))
}

// UpdatePost は記事を更新する。
// PUT /api/admin/posts/{id}
func (h *AdminHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var req blog.PostInput
	if err := readJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	post, err := h.posts.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostResponse(post))
}

// PublishPost は記事の公開フラグを切り替える。
// PUT /api/admin/posts/{id}/publish
func (h *AdminHandler) PublishPost(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := readJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if req.Published == nil {
		handleServiceError(w, r, model.NewValidationError("published", "published is required"))
		return
	}

	id := chi.URLParam(r, "id")
	approval, err := h.posts.SetPublished(r.Context(), id, *req.Published)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalResponse(id, approval))
}

// DeletePost は記事を削除する。
// DELETE /api/admin/posts/{id}
func (h *AdminHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.posts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetCommentApproval はコメントの承認状態を切り替える。
// PUT /api/admin/comments/{id}/approval
func (h *AdminHandler) SetCommentApproval(w http.ResponseWriter, r *http.Request) {
	h.setApproval(w, r, h.comments)
}

// DeleteComment はコメントを削除する。
// DELETE /api/admin/comments/{id}
func (h *AdminHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, h.comments)
}

// SetTestimonyApproval は証しの承認状態を切り替える。
// PUT /api/admin/testimonies/{id}/approval
func (h *AdminHandler) SetTestimonyApproval(w http.ResponseWriter, r *http.Request) {
	h.setApproval(w, r, h.testimonies)
}

// DeleteTestimony は証しを削除する。
// DELETE /api/admin/testimonies/{id}
func (h *AdminHandler) DeleteTestimony(w http.ResponseWriter, r *http.Request) {
	h.delete(w, r, h.testimonies)
}

func (h *AdminHandler) setApproval(w http.ResponseWriter, r *http.Request, svc ModerationService) {
	var req approvalRequest
	if err := readJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if req.Approved == nil {
		handleServiceError(w, r, model.NewValidationError("approved", "approved is required"))
		return
	}

	id := chi.URLParam(r, "id")
	approval, err := svc.SetApproval(r.Context(), id, *req.Approved)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toApprovalResponse(id, approval))
}

func (h *AdminHandler) delete(w http.ResponseWriter, r *http.Request, svc ModerationService) {
	if err := svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImage はmultipartのfileフィールドの画像を保存し、公開URLを返す。
// POST /api/admin/images
func (h *AdminHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	// multipartのヘッダー分の余裕を持たせる
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+64<<10)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			writeImageError(w, http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", "The image is too large.")
			return
		}
		writeBadRequest(w, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		handleServiceError(w, r, model.NewValidationError("file", "Please choose an image to upload"))
		return
	}
	defer file.Close()

	url, err := h.images.Upload(r.Context(), header.Filename, file, header.Size)
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		writeImageError(w, http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", "The image is too large.")
		return
	case errors.Is(err, storage.ErrNotImage):
		writeImageError(w, http.StatusUnsupportedMediaType, "INVALID_IMAGE", "The uploaded file is not an image.")
		return
	case err != nil:
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

func writeImageError(w http.ResponseWriter, status int, code, message string) {
	middleware.WriteErrorResponse(w, status, &model.APIError{
		Code:     code,
		Message:  message,
		Category: "validation",
		Action:   "Choose a PNG, JPEG, GIF or WebP image within the size limit.",
	})
}
