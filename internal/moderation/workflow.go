// Package moderation はコメント・証し・記事公開フラグに共通する承認ワークフローを提供する。
//
// 状態は承認フラグと承認日時の組(model.Approval)のみで表す。
// 公開投稿は常に未承認で作成され、管理者だけが承認・取り消し・削除を行う。
// 管理者であることの確認は呼び出し側（管理者ゲート）で済んでいる前提とし、
// ワークフロー自身は呼び出し元を再確認しない。
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/ministry/internal/metrics"
	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/repository"
)

// Pending は公開投稿の初期状態を返す。クライアントから送られた承認状態は使わない。
func Pending() model.Approval {
	return model.Approval{}
}

// PublicQuery は公開向け一覧の取得条件を返す。
// 承認済みのみを対象とし、証しと記事は承認（公開）日時の降順、コメントは作成日時の降順。
func PublicQuery(kind model.ContentKind) repository.ListQuery {
	q := repository.ListQuery{ApprovedOnly: true, SortBy: repository.SortByCreatedAt}
	switch kind {
	case model.ContentKindTestimony, model.ContentKindPost:
		q.SortBy = repository.SortByApprovedAt
	}
	return q
}

// AdminQuery は管理者向け一覧の取得条件を返す。全件を作成日時の降順で返す。
func AdminQuery(kind model.ContentKind) repository.ListQuery {
	return repository.ListQuery{SortBy: repository.SortByCreatedAt}
}

// Option はWorkflowの生成オプション。
type Option func(*Workflow)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		if now != nil {
			w.now = now
		}
	}
}

// WithMetrics はメトリクス収集先を設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(w *Workflow) {
		if m != nil {
			w.metrics = m
		}
	}
}

// WithLogger はロガーを設定する。
func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l
		}
	}
}

// Workflow は1種類のモデレーション対象に対する承認操作を提供する。
type Workflow struct {
	kind    model.ContentKind
	store   repository.ApprovalStore
	now     func() time.Time
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewWorkflow はWorkflowを生成する。
func NewWorkflow(kind model.ContentKind, store repository.ApprovalStore, opts ...Option) *Workflow {
	w := &Workflow{
		kind:    kind,
		store:   store,
		now:     time.Now,
		metrics: metrics.Nop{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Kind は対象種別を返す。
func (w *Workflow) Kind() model.ContentKind {
	return w.kind
}

// Now はワークフローの時計で現在時刻を返す。
func (w *Workflow) Now() time.Time {
	return w.now()
}

// SetApproval は承認状態をvalueに設定し、更新後の状態を返す。
// 同じ値で繰り返し呼んでも承認日時は変わらない。
func (w *Workflow) SetApproval(ctx context.Context, id string, value bool) (*model.Approval, error) {
	current, err := w.store.FindApproval(ctx, id)
	if err != nil {
		return nil, w.dataError("find approval", err)
	}
	if current == nil {
		return nil, w.notFound(id)
	}

	next := current.Set(value, w.now())
	if err := w.store.UpdateApproval(ctx, id, next); err != nil {
		return nil, w.dataError("update approval", err)
	}

	action := "unapprove"
	if value {
		action = "approve"
	}
	w.metrics.RecordModeration(string(w.kind), action)
	w.logger.InfoContext(ctx, "moderation state changed",
		slog.String("kind", string(w.kind)),
		slog.String("id", id),
		slog.Bool("approved", next.Approved),
	)

	return &next, nil
}

// Delete は対象を完全に削除する。取り消しはできない。
func (w *Workflow) Delete(ctx context.Context, id string) error {
	current, err := w.store.FindApproval(ctx, id)
	if err != nil {
		return w.dataError("find approval", err)
	}
	if current == nil {
		return w.notFound(id)
	}

	if err := w.store.Delete(ctx, id); err != nil {
		return w.dataError("delete", err)
	}

	w.metrics.RecordModeration(string(w.kind), "delete")
	w.logger.InfoContext(ctx, "moderated item deleted",
		slog.String("kind", string(w.kind)),
		slog.String("id", id),
	)
	return nil
}

// PendingCount は未承認（未公開）件数を返す。
func (w *Workflow) PendingCount(ctx context.Context) (int, error) {
	n, err := w.store.CountByApproval(ctx, false)
	if err != nil {
		return 0, w.dataError("count pending", err)
	}
	return n, nil
}

func (w *Workflow) dataError(op string, err error) error {
	return model.NewDataServiceError(fmt.Sprintf("%s %s", w.kind, op), err)
}

func (w *Workflow) notFound(id string) error {
	switch w.kind {
	case model.ContentKindComment:
		return model.NewCommentNotFoundError(id)
	case model.ContentKindTestimony:
		return model.NewTestimonyNotFoundError(id)
	default:
		return model.NewPostNotFoundError(id)
	}
}
