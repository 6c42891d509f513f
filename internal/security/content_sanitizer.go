// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はブログ記事本文と利用者投稿のサニタイズを行う。
// 記事本文は許可リスト方式のHTMLポリシーで整形する。コメント・証しは平文として
// そのまま保持し、表示時にエスケープする。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はコンテンツのサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// SanitizeHTML は記事本文のHTMLをサニタイズして安全なHTMLを返す。
	// 見出し(h2-h4)、段落、リスト、引用、コード、強調、画像、リンクのみを通過させる。
	// URLはhttpsのみ、aタグにはtarget="_blank"とrelが付与される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeHTML(rawHTML string) string

	// PlainText は記事の抜粋など管理者が書いたHTMLからタグを除去し、エンティティを戻した平文を返す。
	// script/styleの中身は破棄される。前後の空白は除去する。
	PlainText(raw string) string

	// CleanText は利用者投稿の平文を整える。改行をLFに揃え、前後の空白を除去する。
	// 「<」「>」「&」を含む文字列も削らずに返す。制御文字の拒否は入力検証で行う。
	CleanText(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type contentSanitizer struct {
	rich   *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "hr", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "h2", "h3", "h4",
		"figure", "figcaption",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	// リンク・画像ともhttpsのみ
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	return &contentSanitizer{
		rich:   p,
		strict: bluemonday.StrictPolicy(),
	}
}

// SanitizeHTML は記事本文のHTMLをサニタイズする。
func (s *contentSanitizer) SanitizeHTML(rawHTML string) string {
	return s.rich.Sanitize(rawHTML)
}

// PlainText は投稿テキストを平文にする。
func (s *contentSanitizer) PlainText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(raw)))
}

// CleanText は投稿テキストを文字を削らずに整える。
func (s *contentSanitizer) CleanText(raw string) string {
	return strings.TrimSpace(newlineReplacer.Replace(raw))
}

var newlineReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

var _ ContentSanitizerService = (*contentSanitizer)(nil)
