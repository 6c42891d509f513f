// Package blog はブログ記事の管理と公開のドメインロジックを提供する。
package blog

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/moderation"
	"github.com/hitoshi/ministry/internal/repository"
	"github.com/hitoshi/ministry/internal/validate"
)

// ImageValidator はアイキャッチ画像URLの検証インターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type ImageValidator interface {
	ValidateURL(rawURL string) error
	ProbeImage(ctx context.Context, rawURL string) error
}

// Sanitizer は記事本文のサニタイズインターフェース。
type Sanitizer interface {
	SanitizeHTML(rawHTML string) string
	PlainText(raw string) string
}

// PostInput は記事の作成・更新の入力。
type PostInput struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	Excerpt       string `json:"excerpt"`
	FeaturedImage string `json:"featured_image"`
	Published     bool   `json:"published"`
}

// Option はServiceの生成オプション。
type Option func(*Service)

// WithTrustedImagePrefix は検証を省略するURLの接頭辞を設定する。
// 自前の画像ストレージの公開URLを指定する。
func WithTrustedImagePrefix(prefix string) Option {
	return func(s *Service) {
		s.trustedPrefix = prefix
	}
}

// WithImageProbe はアイキャッチ画像URLにHEADリクエストを送って画像であることを確認する。
func WithImageProbe(enabled bool) Option {
	return func(s *Service) {
		s.probe = enabled
	}
}

// Service はブログ記事のサービス層。
type Service struct {
	posts         repository.PostRepository
	publication   *moderation.Workflow
	sanitizer     Sanitizer
	images        ImageValidator
	trustedPrefix string
	probe         bool
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	posts repository.PostRepository,
	publication *moderation.Workflow,
	sanitizer Sanitizer,
	images ImageValidator,
	opts ...Option,
) *Service {
	s := &Service{
		posts:       posts,
		publication: publication,
		sanitizer:   sanitizer,
		images:      images,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create は記事を作成する。公開フラグがtrueの場合は公開日時を現在時刻に設定する。
func (s *Service) Create(ctx context.Context, authorID string, in PostInput) (*model.BlogPost, error) {
	post, err := s.build(ctx, in)
	if err != nil {
		return nil, err
	}
	now := s.publication.Now()
	post.ID = uuid.New().String()
	post.CreatedAt = now
	post.UpdatedAt = now
	if authorID != "" {
		post.AuthorID = &authorID
	}
	post.Publication = moderation.Pending().Set(in.Published, now)

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, s.writeError("create post", err)
	}

	slog.Info("blog post created",
		slog.String("post_id", post.ID),
		slog.String("slug", post.Slug),
		slog.Bool("published", post.Publication.Approved),
	)
	return post, nil
}

// Update は記事を更新する。スラッグはタイトルから再生成する。
// 公開済みの記事を公開のまま更新しても公開日時は変わらない。
func (s *Service) Update(ctx context.Context, id string, in PostInput) (*model.BlogPost, error) {
	existing, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewDataServiceError("find post", err)
	}
	if existing == nil {
		return nil, model.NewPostNotFoundError(id)
	}

	post, err := s.build(ctx, in)
	if err != nil {
		return nil, err
	}
	post.ID = existing.ID
	post.AuthorID = existing.AuthorID
	post.AuthorName = existing.AuthorName
	post.CreatedAt = existing.CreatedAt
	post.UpdatedAt = s.publication.Now()
	post.Publication = existing.Publication

	if err := s.posts.Update(ctx, post); err != nil {
		return nil, s.writeError("update post", err)
	}

	publication, err := s.publication.SetApproval(ctx, id, in.Published)
	if err != nil {
		return nil, err
	}
	post.Publication = *publication

	return post, nil
}

// SetPublished は公開フラグを切り替える。
func (s *Service) SetPublished(ctx context.Context, id string, published bool) (*model.Approval, error) {
	return s.publication.SetApproval(ctx, id, published)
}

// Delete は記事を削除する。コメントも連鎖して削除される。
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.publication.Delete(ctx, id)
}

// GetByID は管理者向けに公開状態を問わず記事を返す。
func (s *Service) GetByID(ctx context.Context, id string) (*model.BlogPost, error) {
	post, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewDataServiceError("find post", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(id)
	}
	return post, nil
}

// GetPublishedBySlug は公開済みの記事をスラッグで返す。未公開の記事は存在しないものとして扱う。
func (s *Service) GetPublishedBySlug(ctx context.Context, slug string) (*model.BlogPost, error) {
	post, err := s.posts.FindBySlug(ctx, slug)
	if err != nil {
		return nil, model.NewDataServiceError("find post by slug", err)
	}
	if post == nil || !post.Publication.Approved {
		return nil, model.NewPostNotFoundError(slug)
	}
	return post, nil
}

// ListPublished は公開済み記事を公開日時の新しい順に返す。limitが0以下の場合は全件。
func (s *Service) ListPublished(ctx context.Context, limit int) ([]*model.BlogPost, error) {
	q := moderation.PublicQuery(model.ContentKindPost)
	q.Limit = limit
	posts, err := s.posts.List(ctx, q)
	if err != nil {
		return nil, model.NewDataServiceError("list published posts", err)
	}
	return posts, nil
}

// ListAll は管理者向けに全記事を作成日時の新しい順に返す。
func (s *Service) ListAll(ctx context.Context) ([]*model.BlogPost, error) {
	posts, err := s.posts.List(ctx, moderation.AdminQuery(model.ContentKindPost))
	if err != nil {
		return nil, model.NewDataServiceError("list posts", err)
	}
	return posts, nil
}

// PendingCount は未公開の記事数を返す。
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return s.publication.PendingCount(ctx)
}

// build は入力を検証し、サニタイズ済みの記事を組み立てる。
func (s *Service) build(ctx context.Context, in PostInput) (*model.BlogPost, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.FeaturedImage = strings.TrimSpace(in.FeaturedImage)

	err := validation.ValidateStruct(&in,
		validation.Field(&in.Title,
			validate.NotBlank("Title is required"),
			validation.Length(0, 200).Error("Title must be at most 200 characters"),
		),
		validation.Field(&in.Content, validate.NotBlank("Content is required")),
		validation.Field(&in.Excerpt, validation.Length(0, 500).Error("Excerpt must be at most 500 characters")),
		validation.Field(&in.FeaturedImage, validation.By(s.checkImageURL)),
	)
	if err := validate.Convert(err, ""); err != nil {
		return nil, err
	}

	slug := Slugify(in.Title)
	if slug == "" {
		return nil, model.NewValidationError("title", "Title must contain letters or numbers")
	}

	if in.FeaturedImage != "" && s.probe && !s.trusted(in.FeaturedImage) {
		if err := s.images.ProbeImage(ctx, in.FeaturedImage); err != nil {
			return nil, model.NewValidationError("featured_image", "Featured image URL does not point to an image")
		}
	}

	content := s.sanitizer.SanitizeHTML(in.Content)
	if strings.TrimSpace(s.sanitizer.PlainText(content)) == "" && !strings.Contains(content, "<img") {
		return nil, model.NewValidationError("content", "Content is required")
	}

	excerpt := s.sanitizer.PlainText(in.Excerpt)
	if excerpt == "" {
		excerpt = DeriveExcerpt(content, ExcerptLength)
	}

	post := &model.BlogPost{
		Title:   in.Title,
		Slug:    slug,
		Content: content,
		Excerpt: excerpt,
	}
	if in.FeaturedImage != "" {
		image := in.FeaturedImage
		post.FeaturedImage = &image
	}
	return post, nil
}

func (s *Service) checkImageURL(value any) error {
	raw, _ := value.(string)
	if raw == "" || s.trusted(raw) {
		return nil
	}
	if err := s.images.ValidateURL(raw); err != nil {
		return errors.New("Featured image URL is not allowed")
	}
	return nil
}

func (s *Service) trusted(raw string) bool {
	return s.trustedPrefix != "" && strings.HasPrefix(raw, s.trustedPrefix)
}

func (s *Service) writeError(op string, err error) error {
	if errors.Is(err, repository.ErrDuplicateSlug) {
		return model.NewValidationError("title", "A post with this title already exists")
	}
	return model.NewDataServiceError(op, err)
}
