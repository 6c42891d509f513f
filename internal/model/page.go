package model

// PageID はナビゲーション対象のページ識別子。閉じた集合として扱う。
type PageID string

const (
	PageHome           PageID = "home"
	PageAbout          PageID = "about"
	PageBlog           PageID = "blog"
	PageBlogPost       PageID = "blog-post"
	PageTestimonies    PageID = "testimonies"
	PageTestimony      PageID = "testimony"
	PageAdmin          PageID = "admin"
	PageAdminLogin     PageID = "admin-login"
	PageAdminDashboard PageID = "admin-dashboard"
	PageLogin          PageID = "login"
)

// AllPages は定義済みの全ページ識別子を返す。
func AllPages() []PageID {
	return []PageID{
		PageHome, PageAbout, PageBlog, PageBlogPost, PageTestimonies,
		PageTestimony, PageAdmin, PageAdminLogin, PageAdminDashboard, PageLogin,
	}
}

// ParsePageID は文字列をPageIDに変換する。未定義の値の場合はfalseを返す。
func ParsePageID(s string) (PageID, bool) {
	for _, p := range AllPages() {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}
