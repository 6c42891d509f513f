package blog

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// ExcerptLength は自動生成する抜粋の最大文字数（ルーン数）。
const ExcerptLength = 200

// Slugify はタイトルからURLスラッグを生成する。
// 小文字化し、英数字以外の連続を1つのハイフンにまとめ、先頭と末尾のハイフンを除去する。
func Slugify(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	pendingDash := false
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

// DeriveExcerpt はHTML本文からテキストを抽出し、空白を詰めて抜粋を生成する。
// script/styleの中身は含めない。maxLengthを超える場合は末尾を「…」にして切り詰める。
func DeriveExcerpt(content string, maxLength int) string {
	tokenizer := html.NewTokenizer(strings.NewReader(content))

	var b strings.Builder
	skip := 0
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return truncate(strings.Join(strings.Fields(b.String()), " "), maxLength)
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if isRawTextTag(tag) {
				if tt == html.StartTagToken {
					skip++
				} else if tt == html.EndTagToken && skip > 0 {
					skip--
				}
			}
			if !inlineTags[tag] {
				b.WriteByte(' ')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}

// inlineTags は前後に空白を補わない要素。
var inlineTags = map[string]bool{
	"a": true, "b": true, "strong": true, "i": true, "em": true, "code": true,
	"span": true, "small": true, "sub": true, "sup": true, "u": true, "mark": true,
}

func isRawTextTag(name string) bool {
	return name == "script" || name == "style"
}

func truncate(s string, maxLength int) string {
	if maxLength <= 0 || utf8.RuneCountInString(s) <= maxLength {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:maxLength-1]), " ") + "…"
}
