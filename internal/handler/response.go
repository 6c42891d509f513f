package handler

import (
	"time"

	"github.com/hitoshi/ministry/internal/admin"
	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/navigator"
	"github.com/hitoshi/ministry/internal/session"
)

// --- レスポンス型 ---

type postResponse struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Content       string     `json:"content"`
	Excerpt       string     `json:"excerpt"`
	FeaturedImage *string    `json:"featured_image"`
	AuthorName    string     `json:"author_name"`
	Published     bool       `json:"published"`
	PublishedAt   *time.Time `json:"published_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// commentResponse はコメントのレスポンス。
// 公開APIではメールアドレスを空にして省略する。
type commentResponse struct {
	ID          string     `json:"id"`
	PostID      string     `json:"post_id"`
	AuthorName  string     `json:"author_name"`
	AuthorEmail string     `json:"author_email,omitempty"`
	Content     string     `json:"content"`
	Approved    bool       `json:"approved"`
	ApprovedAt  *time.Time `json:"approved_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

type testimonyResponse struct {
	ID          string     `json:"id"`
	AuthorName  string     `json:"author_name"`
	AuthorEmail string     `json:"author_email,omitempty"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Approved    bool       `json:"approved"`
	ApprovedAt  *time.Time `json:"approved_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

type approvalResponse struct {
	ID         string     `json:"id"`
	Approved   bool       `json:"approved"`
	ApprovedAt *time.Time `json:"approved_at"`
}

type accountResponse struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FullName       string `json:"full_name"`
	EmailConfirmed bool   `json:"email_confirmed"`
}

type profileResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	IsAdmin  bool   `json:"is_admin"`
}

type sessionResponse struct {
	Authenticated bool             `json:"authenticated"`
	IsAdmin       bool             `json:"is_admin"`
	Account       *accountResponse `json:"account"`
	Profile       *profileResponse `json:"profile"`
}

type signUpResponse struct {
	Account             accountResponse `json:"account"`
	VerificationPending bool            `json:"verification_pending"`
}

type dashboardResponse struct {
	Posts       []postResponse      `json:"posts"`
	Comments    []commentResponse   `json:"comments"`
	Testimonies []testimonyResponse `json:"testimonies"`
}

type pageResponse struct {
	Page       string   `json:"page"`
	Requested  string   `json:"requested"`
	Decision   string   `json:"decision"`
	Options    []string `json:"options,omitempty"`
	RedirectTo string   `json:"redirect_to,omitempty"`
	Data       any      `json:"data,omitempty"`
}

type homePageData struct {
	Posts       []postResponse      `json:"posts"`
	Testimonies []testimonyResponse `json:"testimonies"`
}

type postPageData struct {
	Post     postResponse      `json:"post"`
	Comments []commentResponse `json:"comments"`
}

type testimonyFormData struct {
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
}

// --- 変換 ---

func toPostResponse(p *model.BlogPost) postResponse {
	return postResponse{
		ID:            p.ID,
		Title:         p.Title,
		Slug:          p.Slug,
		Content:       p.Content,
		Excerpt:       p.Excerpt,
		FeaturedImage: p.FeaturedImage,
		AuthorName:    p.AuthorName,
		Published:     p.Publication.Approved,
		PublishedAt:   p.Publication.ApprovedAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toPostResponses(posts []*model.BlogPost) []postResponse {
	out := make([]postResponse, len(posts))
	for i, p := range posts {
		out[i] = toPostResponse(p)
	}
	return out
}

func toCommentResponse(c *model.Comment, withEmail bool) commentResponse {
	resp := commentResponse{
		ID:         c.ID,
		PostID:     c.PostID,
		AuthorName: c.AuthorName,
		Content:    c.Content,
		Approved:   c.Approval.Approved,
		ApprovedAt: c.Approval.ApprovedAt,
		CreatedAt:  c.CreatedAt,
	}
	if withEmail {
		resp.AuthorEmail = c.AuthorEmail
	}
	return resp
}

func toCommentResponses(comments []*model.Comment, withEmail bool) []commentResponse {
	out := make([]commentResponse, len(comments))
	for i, c := range comments {
		out[i] = toCommentResponse(c, withEmail)
	}
	return out
}

func toTestimonyResponse(t *model.Testimony, withEmail bool) testimonyResponse {
	resp := testimonyResponse{
		ID:         t.ID,
		AuthorName: t.AuthorName,
		Title:      t.Title,
		Content:    t.Content,
		Approved:   t.Approval.Approved,
		ApprovedAt: t.Approval.ApprovedAt,
		CreatedAt:  t.CreatedAt,
	}
	if withEmail {
		resp.AuthorEmail = t.AuthorEmail
	}
	return resp
}

func toTestimonyResponses(items []*model.Testimony, withEmail bool) []testimonyResponse {
	out := make([]testimonyResponse, len(items))
	for i, t := range items {
		out[i] = toTestimonyResponse(t, withEmail)
	}
	return out
}

func toApprovalResponse(id string, a *model.Approval) approvalResponse {
	return approvalResponse{ID: id, Approved: a.Approved, ApprovedAt: a.ApprovedAt}
}

func toAccountResponse(a *model.Account) accountResponse {
	return accountResponse{
		ID:             a.ID,
		Email:          a.Email,
		FullName:       a.FullName,
		EmailConfirmed: a.Confirmed(),
	}
}

func toSessionResponse(state session.State) sessionResponse {
	resp := sessionResponse{
		Authenticated: state.Authenticated(),
		IsAdmin:       state.Authenticated() && state.IsAdmin,
	}
	if state.Account != nil {
		acc := toAccountResponse(state.Account)
		resp.Account = &acc
	}
	if p := state.Profile; p != nil {
		resp.Profile = &profileResponse{
			ID:       p.ID,
			Email:    p.Email,
			FullName: p.FullName,
			IsAdmin:  p.IsAdmin,
		}
	}
	return resp
}

func toDashboardResponse(d *admin.Data) dashboardResponse {
	return dashboardResponse{
		Posts:       toPostResponses(d.Posts),
		Comments:    toCommentResponses(d.Comments, true),
		Testimonies: toTestimonyResponses(d.Testimonies, true),
	}
}

func toPageResponse(v *navigator.View) pageResponse {
	resp := pageResponse{
		Page:       string(v.Page),
		Requested:  v.Requested,
		Decision:   string(v.Decision),
		RedirectTo: string(v.RedirectTo),
	}
	for _, opt := range v.Options {
		resp.Options = append(resp.Options, string(opt))
	}

	switch data := v.Data.(type) {
	case *navigator.HomeData:
		resp.Data = homePageData{
			Posts:       toPostResponses(data.Posts),
			Testimonies: toTestimonyResponses(data.Testimonies, false),
		}
	case *navigator.BlogData:
		resp.Data = toPostResponses(data.Posts)
	case *navigator.PostData:
		resp.Data = postPageData{
			Post:     toPostResponse(data.Post),
			Comments: toCommentResponses(data.Comments, false),
		}
	case *navigator.TestimoniesData:
		resp.Data = toTestimonyResponses(data.Testimonies, false)
	case *navigator.TestimonyFormData:
		resp.Data = testimonyFormData{AuthorName: data.AuthorName, AuthorEmail: data.AuthorEmail}
	case *admin.Data:
		resp.Data = toDashboardResponse(data)
	case *admin.Summary:
		resp.Data = data
	}
	return resp
}
