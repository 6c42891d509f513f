// Package testimony は証しの投稿・公開フィード・モデレーションを提供する。
package testimony

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

// TextSanitizer は投稿テキストを文字を削らずに整える。
type TextSanitizer interface {
	CleanText(raw string) string
}

// SubmitInput は証し投稿の入力。承認状態は受け付けない。
type SubmitInput struct {
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
	Title       string `json:"title"`
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
		validation.Field(&in.Title,
			validate.NotBlank("Title is required"),
			validate.PrintableText(false, "Title contains invalid characters"),
			validation.RuneLength(0, 200).Error("Title must be at most 200 characters"),
		),
		validation.Field(&in.Content,
			validate.NotBlank("Testimony is required"),
			validate.PrintableText(true, "Testimony contains invalid characters"),
			validation.RuneLength(0, 10000).Error("Testimony must be at most 10000 characters"),
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

// Service は証しのサービス層。
type Service struct {
	testimonies repository.TestimonyRepository
	workflow    *moderation.Workflow
	sanitizer   TextSanitizer
	metrics     metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	testimonies repository.TestimonyRepository,
	workflow *moderation.Workflow,
	sanitizer TextSanitizer,
	opts ...Option,
) *Service {
	s := &Service{
		testimonies: testimonies,
		workflow:    workflow,
		sanitizer:   sanitizer,
		metrics:     metrics.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit は証しを投稿する。証しは常に未承認で作成される。
// submitterが非nilの場合、空の氏名とメールアドレスをプロフィールから補う。
func (s *Service) Submit(ctx context.Context, in SubmitInput, submitter *model.Profile) (*model.Testimony, error) {
	in = SubmitInput{
		AuthorName:  s.sanitizer.CleanText(in.AuthorName),
		AuthorEmail: strings.TrimSpace(in.AuthorEmail),
		Title:       s.sanitizer.CleanText(in.Title),
		Content:     s.sanitizer.CleanText(in.Content),
	}
	if submitter != nil {
		if in.AuthorName == "" {
			in.AuthorName = strings.TrimSpace(submitter.FullName)
		}
		if in.AuthorEmail == "" {
			in.AuthorEmail = submitter.Email
		}
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	t := &model.Testimony{
		ID:          uuid.New().String(),
		AuthorName:  in.AuthorName,
		AuthorEmail: in.AuthorEmail,
		Title:       in.Title,
		Content:     in.Content,
		Approval:    moderation.Pending(),
		CreatedAt:   s.workflow.Now(),
	}
	if err := s.testimonies.Create(ctx, t); err != nil {
		return nil, model.NewDataServiceError("create testimony", err)
	}

	s.metrics.RecordSubmission(string(model.ContentKindTestimony))
	slog.Info("testimony submitted",
		slog.String("testimony_id", t.ID),
		slog.Bool("authenticated", submitter != nil),
	)
	return t, nil
}

// PublicFeed は承認済みの証しを承認日時の新しい順に返す。limitが0以下の場合は全件。
func (s *Service) PublicFeed(ctx context.Context, limit int) ([]*model.Testimony, error) {
	q := moderation.PublicQuery(model.ContentKindTestimony)
	q.Limit = limit
	items, err := s.testimonies.List(ctx, q)
	if err != nil {
		return nil, model.NewDataServiceError("list approved testimonies", err)
	}
	return items, nil
}

// ListAll は管理者向けに全件を返す。
func (s *Service) ListAll(ctx context.Context) ([]*model.Testimony, error) {
	items, err := s.testimonies.List(ctx, moderation.AdminQuery(model.ContentKindTestimony))
	if err != nil {
		return nil, model.NewDataServiceError("list testimonies", err)
	}
	return items, nil
}

// SetApproval は承認状態を切り替える。
func (s *Service) SetApproval(ctx context.Context, id string, approved bool) (*model.Approval, error) {
	return s.workflow.SetApproval(ctx, id, approved)
}

// Delete は証しを削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.workflow.Delete(ctx, id)
}

// PendingCount は未承認の証し数を返す。
func (s *Service) PendingCount(ctx context.Context) (int, error) {
	return s.workflow.PendingCount(ctx)
}
