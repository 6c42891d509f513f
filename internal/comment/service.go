// Package comment はブログ記事へのコメント投稿とモデレーションを提供する。
package comment

import (
	"context"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/hitoshi/ministry/internal/metrics"
	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/moderation"
	"github.com/hitoshi/ministry/internal/repository"
	"github.com/hitoshi/ministry/internal/validate"
)

// PostLookup は公開済み記事の検索インターフェース。blog.Serviceが実装する。
type PostLookup interface {
	GetPublishedBySlug(ctx context.Context, slug string) (*model.BlogPost, error)
}

// TextSanitizer は投稿テキストを文字を削らずに整える。
type TextSanitizer interface {
	CleanText(raw string) string
}

// SubmitInput はコメント投稿の入力。承認状態は受け付けない。
type SubmitInput struct {
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
	Content     string `json:"content"`
}

// Validate は入力を検証する。
func (in SubmitInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.AuthorName,
			validate.NotBlank("Name is required"),
			validate.PrintableText(false, "Name contains invalid characters"),
			validation.RuneLength(0, 100).Error("Name must be at most 100 characters"),
		),
		validation.Field(&in.AuthorEmail, validate.EmailRules()...),
		validation.Field(&in.Content,
			validate.NotBlank("Comment is required"),
			validate.PrintableText(true, "Comment contains invalid characters"),
			validation.RuneLength(0, 5000).Error("Comment must be at most 5000 characters"),
		),
	)
	return validate.Convert(err, "")
}

// Option はServiceの生成オプション。
type Option func(*Service)

// WithMetrics はメトリクス収集先を設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Service はコメントのサービス層。
type Service struct {
	comments  repository.CommentRepository
	posts     PostLookup
	workflow  *moderation.Workflow
	sanitizer TextSanitizer
	metrics   metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	comments repository.CommentRepository,
	posts PostLookup,
	workflow *moderation.Workflow,
	sanitizer TextSanitizer,
	opts ...Option,
) *Service {
	s := &Service{
		comments:  comments,
		posts:     posts,
		workflow:  workflow,
		sanitizer: sanitizer,
		metrics:   metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit は公開済み記事にコメントを投稿する。コメントは常に未承認で作成される。
func (s *Service) Submit(ctx context.Context, postSlug string, in SubmitInput) (*model.Comment, error) {
	in = SubmitInput{
		AuthorName:  s.sanitizer.CleanText(in.AuthorName),
		AuthorEmail: strings.TrimSpace(in.AuthorEmail),
		Content:     s.sanitizer.CleanText(in.Content),
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	post, err := s.posts.GetPublishedBySlug(ctx, postSlug)
	if err != nil {
		return nil, err
	}

	c := &model.Comment{
		ID:          uuid.New().String(),
		PostID:      post.ID,
		AuthorName:  in.AuthorName,
		AuthorEmail: in.AuthorEmail,
		Content:     in.Content,
		Approval:    moderation.Pending(),
		CreatedAt:   s.workflow.Now(),
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, model.NewDataServiceError("create comment", err)
	}

	s.metrics.RecordSubmission(string(model.ContentKindComment))
	slog.Info("comment submitted",
		slog.String("comment_id", c.ID),
		slog.String("post_id", post.ID),
	)
	return c, nil
}

// ListApproved は記事の承認済みコメントを作成日時の新しい順に返す。
func (s *Service) ListApproved(ctx context.Context, postSlug string) ([]*model.Comment, error) {
	post, err := s.posts.GetPublishedBySlug(ctx, postSlug)
	if err != nil {
		return nil, err
	}
	return s.ListApprovedForPost(ctx, post.ID)
}

// ListApprovedForPost は記事IDを指定して承認済みコメントを返す。
func (s *Service) ListApprovedForPost(ctx context.Context, postID string) ([]*model.Comment, error) {
	comments, err := s.comments.ListByPost(ctx, postID, moderation.PublicQuery(model.ContentKindComment))
	if err != nil {
		return nil, model.NewDataServiceError("list approved comments", err)
	}
	return comments, nil
}

// ListAll は管理者向けに全コメントを返す。
func (s *Service) ListAll(ctx context.Context) ([]*model.Comment, error) {
	comments, err := s.comments.List(ctx, moderation.AdminQuery(model.ContentKindComment))
	if err != nil {
		return nil, model.NewDataServiceError("list comments", err)
	}
	return comments, nil
}

// SetApproval は承認状態を切り替える。
func (s *Service) SetApproval(ctx context.Context, id string, approved bool) (*model.Approval, error) {
	return s.workflow.SetApproval(ctx, id, approved)
}

// Delete はコメントを削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.workflow.Delete(ctx, id)
}

// PendingCount は未承認のコメント数を返す。
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return s.workflow.PendingCount(ctx)
}
