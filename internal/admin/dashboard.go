// Package admin は管理画面向けの一括読み込みを提供する。
package admin

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/ministry/internal/metrics"
	"github.com/hitoshi/ministry/internal/model"
)

// PostLister は管理者向けの記事一覧を返す。
type PostLister interface {
	ListAll(ctx context.Context) ([]*model.BlogPost, error)
	PendingCount(ctx context.Context) (int, error)
}

// CommentLister は管理者向けのコメント一覧を返す。
type CommentLister interface {
	ListAll(ctx context.Context) ([]*model.Comment, error)
	PendingCount(ctx context.Context) (int, error)
}

// TestimonyLister は管理者向けの証し一覧を返す。
type TestimonyLister interface {
	ListAll(ctx context.Context) ([]*model.Testimony, error)
	PendingCount(ctx context.Context) (int, error)
}

// Data は管理画面の一括読み込み結果。
type Data struct {
	Posts       []*model.BlogPost
	Comments    []*model.Comment
	Testimonies []*model.Testimony
}

// Summary は未承認件数の集計。記事は下書き件数を表す。
type Summary struct {
	DraftPosts         int `json:"draft_posts"`
	PendingComments    int `json:"pending_comments"`
	PendingTestimonies int `json:"pending_testimonies"`
}

// Option はDashboardの生成オプション。
type Option func(*Dashboard)

// WithMetrics はメトリクス収集先を設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(d *Dashboard) {
		if m != nil {
			d.metrics = m
		}
	}
}

// Dashboard は3つのコレクションを並行に読み込む。
type Dashboard struct {
	posts       PostLister
	comments    CommentLister
	testimonies TestimonyLister
	metrics     metrics.MetricsCollector
}

// NewDashboard はDashboardを生成する。
func NewDashboard(posts PostLister, comments CommentLister, testimonies TestimonyLister, opts ...Option) *Dashboard {
	d := &Dashboard{
		posts:       posts,
		comments:    comments,
		testimonies: testimonies,
		metrics:     metrics.Nop{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Load は記事・コメント・証しの全件を並行に取得する。
// いずれかが失敗した場合は残りをキャンセルし、部分的な結果は返さない。
func (d *Dashboard) Load(ctx context.Context) (*Data, error) {
	start := time.Now()
	defer func() { d.metrics.RecordDashboardLatency(time.Since(start)) }()

	var data Data
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		posts, err := d.posts.ListAll(gctx)
		data.Posts = posts
		return err
	})
	g.Go(func() error {
		comments, err := d.comments.ListAll(gctx)
		data.Comments = comments
		return err
	})
	g.Go(func() error {
		testimonies, err := d.testimonies.ListAll(gctx)
		data.Testimonies = testimonies
		return err
	})

	if err := g.Wait(); err != nil {
		slog.Error("admin dashboard load failed", slog.String("error", err.Error()))
		return nil, err
	}
	return &data, nil
}

// Summary は未承認件数を並行に集計する。個人情報は含まない。
func (d *Dashboard) Summary(ctx context.Context) (*Summary, error) {
	var s Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		s.DraftPosts, err = d.posts.PendingCount(gctx)
		return err
	})
	g.Go(func() (err error) {
		s.PendingComments, err = d.comments.PendingCount(gctx)
		return err
	})
	g.Go(func() (err error) {
		s.PendingTestimonies, err = d.testimonies.PendingCount(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &s, nil
}
