// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/ministry/internal/model"
)

// ErrDuplicateSlug は同一スラッグの記事が既に存在する場合のエラー。
var ErrDuplicateSlug = errors.New("duplicate blog post slug")

// ErrDuplicateEmail は同一メールアドレスのアカウントが既に存在する場合のエラー。
var ErrDuplicateEmail = errors.New("duplicate account email")

// SortKey は一覧取得時の並び順の基準となるカラム。
type SortKey string

const (
	// SortByCreatedAt は作成日時の降順。
	SortByCreatedAt SortKey = "created_at"
	// SortByApprovedAt は承認（公開）日時の降順。
	SortByApprovedAt SortKey = "approved_at"
)

// ListQuery はモデレーション対象コレクションの一覧取得条件。
// フィルタ・並び順・件数制限の3つの修飾子だけを持つ。
type ListQuery struct {
	ApprovedOnly bool    // trueの場合は承認（公開）済みのみ
	SortBy       SortKey // 空の場合はSortByCreatedAt
	Limit        int     // 0以下の場合は無制限
}

// AccountRepository はローカル認証プロバイダーのアカウント永続化インターフェース。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)
	// FindByEmail はメールアドレスでアカウントとパスワードハッシュを取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, string, error)
	// Create はアカウントを作成する。同一メールが存在する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, account *model.Account, passwordHash, verificationToken string) error
	// SetVerificationToken は確認トークンを差し替える。
	SetVerificationToken(ctx context.Context, accountID, token string) error
	// ConfirmByToken は確認トークンに対応するアカウントを確認済みにする。
	// 該当がない場合はnilを返す。
	ConfirmByToken(ctx context.Context, token string, at time.Time) (*model.Account, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションをアカウント情報付きで取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// Extend はセッションの有効期限を延長する。
	Extend(ctx context.Context, id string, expiresAt time.Time) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByAccountID は指定アカウントの全セッションを削除する。
	DeleteByAccountID(ctx context.Context, accountID string) error
}

// ProfileRepository はプロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)
	// FindByEmail はメールアドレスでプロフィールを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Profile, error)
	// CreateIfAbsent はプロフィールが存在しない場合のみ作成する（ON CONFLICT DO NOTHING）。
	CreateIfAbsent(ctx context.Context, profile *model.Profile) error
	// SetAdmin は管理者フラグを更新する。
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
}

// ApprovalStore は承認状態の読み書きと削除を行う共通インターフェース。
// コメント・証し・記事の公開フラグがそれぞれ実装する。
type ApprovalStore interface {
	// FindApproval は承認状態を取得する。見つからない場合はnilを返す。
	FindApproval(ctx context.Context, id string) (*model.Approval, error)
	// UpdateApproval は承認状態を更新する。
	UpdateApproval(ctx context.Context, id string, approval model.Approval) error
	// Delete は指定IDの行を削除する。該当がない場合もエラーにしない。
	Delete(ctx context.Context, id string) error
	// CountByApproval は承認状態ごとの件数を返す。
	CountByApproval(ctx context.Context, approved bool) (int, error)
}

// PostRepository はブログ記事の永続化インターフェース。
type PostRepository interface {
	ApprovalStore

	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.BlogPost, error)
	// FindBySlug はスラッグで記事を取得する。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.BlogPost, error)
	// List は条件に一致する記事一覧を返す。ApprovedOnlyは公開済みを意味する。
	List(ctx context.Context, q ListQuery) ([]*model.BlogPost, error)
	// Create は記事を作成する。スラッグ重複時はErrDuplicateSlugを返す。
	Create(ctx context.Context, post *model.BlogPost) error
	// Update は記事を更新する。スラッグ重複時はErrDuplicateSlugを返す。
	Update(ctx context.Context, post *model.BlogPost) error
}

// CommentRepository はコメントの永続化インターフェース。
type CommentRepository interface {
	ApprovalStore

	// Create はコメントを作成する。
	Create(ctx context.Context, comment *model.Comment) error
	// ListByPost は指定記事のコメント一覧を返す。
	ListByPost(ctx context.Context, postID string, q ListQuery) ([]*model.Comment, error)
	// List は全記事のコメント一覧を返す。
	List(ctx context.Context, q ListQuery) ([]*model.Comment, error)
}

// TestimonyRepository は証しの永続化インターフェース。
type TestimonyRepository interface {
	ApprovalStore

	// Create は証しを作成する。
	Create(ctx context.Context, testimony *model.Testimony) error
	// List は条件に一致する証し一覧を返す。
	List(ctx context.Context, q ListQuery) ([]*model.Testimony, error)
}
