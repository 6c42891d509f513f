// Package navigator はページ識別子とペイロードから表示内容を決定する。
//
// ページの可否はguardに委ね、許可された場合だけページのデータを読み込む。
// セッション状態は呼び出し側が渡したスナップショットを使い、ナビゲーター自身は保持しない。
package navigator

import (
	"context"
	"errors"
	"strings"

	"github.com/hitoshi/ministry/internal/admin"
	"github.com/hitoshi/ministry/internal/guard"
	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/session"
)

// HomeItems はホームに表示する記事と証しの件数。
const HomeItems = 3

// PostSource は公開記事の読み込み元。
type PostSource interface {
	ListPublished(ctx context.Context, limit int) ([]*model.BlogPost, error)
	GetPublishedBySlug(ctx context.Context, slug string) (*model.BlogPost, error)
}

// CommentSource は承認済みコメントの読み込み元。
type CommentSource interface {
	ListApprovedForPost(ctx context.Context, postID string) ([]*model.Comment, error)
}

// TestimonySource は承認済み証しの読み込み元。
type TestimonySource interface {
	PublicFeed(ctx context.Context, limit int) ([]*model.Testimony, error)
}

// AdminSource は管理画面の読み込み元。
type AdminSource interface {
	Load(ctx context.Context) (*admin.Data, error)
	Summary(ctx context.Context) (*admin.Summary, error)
}

// access はページごとのアクセス規則。
type access int

const (
	public access = iota
	requireAuth
	requireAdmin
	requireDemoAdmin
)

var pageAccess = map[model.PageID]access{
	model.PageHome:           public,
	model.PageAbout:          public,
	model.PageBlog:           public,
	model.PageBlogPost:       public,
	model.PageTestimonies:    public,
	model.PageTestimony:      requireAuth,
	model.PageAdmin:          requireAdmin,
	model.PageAdminLogin:     public,
	model.PageAdminDashboard: requireDemoAdmin,
	model.PageLogin:          public,
}

// Request はナビゲーション要求。
type Request struct {
	Page      string
	Payload   string
	State     session.State
	DemoAdmin bool // 有効なデモ管理者マーカーを持つか
}

// View はナビゲーションの結果。
// DecisionがPermit以外の場合、Dataは常にnil。
type View struct {
	Page       model.PageID
	Requested  string
	Decision   guard.Decision
	Options    []model.PageID // Promptの場合の遷移先
	RedirectTo model.PageID   // 別ページに置き換えた場合の遷移先
	Data       any
}

// HomeData はホームのデータ。
type HomeData struct {
	Posts       []*model.BlogPost
	Testimonies []*model.Testimony
}

// BlogData はブログ一覧のデータ。
type BlogData struct {
	Posts []*model.BlogPost
}

// PostData はブログ記事のデータ。
type PostData struct {
	Post     *model.BlogPost
	Comments []*model.Comment
}

// TestimoniesData は証し一覧のデータ。
type TestimoniesData struct {
	Testimonies []*model.Testimony
}

// TestimonyFormData は証し投稿フォームの初期値。
type TestimonyFormData struct {
	AuthorName  string
	AuthorEmail string
}

// Navigator はページ遷移を処理する。
type Navigator struct {
	posts       PostSource
	comments    CommentSource
	testimonies TestimonySource
	admin       AdminSource
}

// New はNavigatorを生成する。
func New(posts PostSource, comments CommentSource, testimonies TestimonySource, admin AdminSource) *Navigator {
	return &Navigator{
		posts:       posts,
		comments:    comments,
		testimonies: testimonies,
		admin:       admin,
	}
}

// Navigate は要求されたページの表示内容を返す。
// 未定義のページはホームに、スラッグを解決できないblog-postはブログ一覧に置き換える。
func (n *Navigator) Navigate(ctx context.Context, req Request) (*View, error) {
	page, ok := model.ParsePageID(req.Page)
	if !ok {
		page = model.PageHome
	}
	view := &View{Page: page, Requested: req.Page}

	switch pageAccess[page] {
	case requireAuth:
		view.Decision = guard.Evaluate(true, req.State)
		if view.Decision == guard.Prompt {
			view.Options = guard.PromptOptions()
		}
	case requireAdmin:
		view.Decision = guard.EvaluateAdmin(req.State)
	case requireDemoAdmin:
		view.Decision = guard.Permit
		if !req.DemoAdmin {
			view.Page = model.PageAdminLogin
			view.RedirectTo = model.PageAdminLogin
		}
	default:
		view.Decision = guard.Permit
	}
	if view.Decision != guard.Permit {
		return view, nil
	}

	if err := n.load(ctx, view, req); err != nil {
		return nil, err
	}
	return view, nil
}

func (n *Navigator) load(ctx context.Context, view *View, req Request) error {
	switch view.Page {
	case model.PageHome:
		return n.loadHome(ctx, view)

	case model.PageBlog:
		posts, err := n.posts.ListPublished(ctx, 0)
		if err != nil {
			return err
		}
		view.Data = &BlogData{Posts: posts}

	case model.PageBlogPost:
		slug := strings.TrimSpace(req.Payload)
		if slug == "" {
			view.Page = model.PageBlog
			view.RedirectTo = model.PageBlog
			return n.load(ctx, view, req)
		}
		post, err := n.posts.GetPublishedBySlug(ctx, slug)
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodePostNotFound {
			view.Page = model.PageBlog
			view.RedirectTo = model.PageBlog
			return n.load(ctx, view, req)
		}
		if err != nil {
			return err
		}
		comments, err := n.comments.ListApprovedForPost(ctx, post.ID)
		if err != nil {
			return err
		}
		view.Data = &PostData{Post: post, Comments: comments}

	case model.PageTestimonies:
		items, err := n.testimonies.PublicFeed(ctx, 0)
		if err != nil {
			return err
		}
		view.Data = &TestimoniesData{Testimonies: items}

	case model.PageTestimony:
		form := &TestimonyFormData{}
		if p := req.State.Profile; p != nil {
			form.AuthorName = p.FullName
			form.AuthorEmail = p.Email
		} else if a := req.State.Account; a != nil {
			form.AuthorName = a.FullName
			form.AuthorEmail = a.Email
		}
		view.Data = form

	case model.PageAdmin:
		data, err := n.admin.Load(ctx)
		if err != nil {
			return err
		}
		view.Data = data

	case model.PageAdminDashboard:
		summary, err := n.admin.Summary(ctx)
		if err != nil {
			return err
		}
		view.Data = summary
	}
	return nil
}

// loadHome は最新の記事と証しを読み込む。
func (n *Navigator) loadHome(ctx context.Context, view *View) error {
	posts, err := n.posts.ListPublished(ctx, HomeItems)
	if err != nil {
		return err
	}
	testimonies, err := n.testimonies.PublicFeed(ctx, HomeItems)
	if err != nil {
		return err
	}
	view.Data = &HomeData{Posts: posts, Testimonies: testimonies}
	return nil
}
