// Package model はドメインモデルを定義する。
package model

import "time"

// Approval はモデレーション対象の承認状態と承認日時の組を表す。
// ブログ記事では公開フラグと公開日時として同じ形を使う。
// ApprovedAtはApprovedがtrueの場合に限り非nilとなる。
type Approval struct {
	Approved   bool
	ApprovedAt *time.Time
}

// Set は承認状態をvalueに遷移させた結果を返す。
// trueの場合、既存の承認日時は保持し、未設定ならnowを設定する。
// falseの場合は承認日時をクリアする。同じ値での再呼び出しは状態を変えない。
func (a Approval) Set(value bool, now time.Time) Approval {
	if !value {
		return Approval{}
	}
	if a.Approved && a.ApprovedAt != nil {
		return a
	}
	t := now
	return Approval{Approved: true, ApprovedAt: &t}
}

// ContentKind はモデレーション対象の種別を表す。
type ContentKind string

const (
	// ContentKindComment はブログ記事へのコメント。
	ContentKindComment ContentKind = "comment"
	// ContentKindTestimony は証し（testimony）の投稿。
	ContentKindTestimony ContentKind = "testimony"
	// ContentKindPost はブログ記事の公開フラグ。
	ContentKindPost ContentKind = "post"
)

// BlogPost はブログ記事を表す。
type BlogPost struct {
	ID            string
	Title         string
	Slug          string
	Content       string // サニタイズ済みHTML
	Excerpt       string
	FeaturedImage *string
	AuthorID      *string
	AuthorName    string // profilesとJOINして取得する表示名
	Publication   Approval
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Comment はブログ記事へのコメントを表す。
type Comment struct {
	ID          string
	PostID      string
	AuthorName  string
	AuthorEmail string
	Content     string
	Approval    Approval
	CreatedAt   time.Time
}

// Testimony は利用者から投稿された証しを表す。
type Testimony struct {
	ID          string
	AuthorName  string
	AuthorEmail string
	Title       string
	Content     string
	Approval    Approval
	CreatedAt   time.Time
}
