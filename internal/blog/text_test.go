package blog

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"The Power of Faith!", "the-power-of-faith"},
		{"  Hello---World  ", "hello-world"},
		{"Psalm 23: The Lord is my Shepherd", "psalm-23-the-lord-is-my-shepherd"},
		{"Already-a-slug", "already-a-slug"},
		{"¡Gracias, Señor!", "gracias-se-or"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := Slugify(tt.title)
			if got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.title, got, tt.want)
			}
			if again := Slugify(got); again != got {
				t.Errorf("Slugify is not stable: %q -> %q", got, again)
			}
		})
	}
}

func TestDeriveExcerpt(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"plain", "Hello world", "Hello world"},
		{"tags stripped", "<p>Grace <strong>and</strong> peace</p>", "Grace and peace"},
		{"block boundaries become spaces", "<h2>Title</h2><p>Body</p>", "Title Body"},
		{"whitespace collapsed", "<p>a\n\n   b\t c</p>", "a b c"},
		{"script ignored", "<p>ok</p><script>alert(1)</script>", "ok"},
		{"entities decoded", "<p>Tom &amp; Jerry</p>", "Tom & Jerry"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveExcerpt(tt.content, ExcerptLength); got != tt.want {
				t.Errorf("DeriveExcerpt(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestDeriveExcerpt_Truncates(t *testing.T) {
	content := "<p>" + strings.Repeat("祝福 ", 150) + "</p>"

	got := DeriveExcerpt(content, ExcerptLength)

	if n := utf8.RuneCountInString(got); n > ExcerptLength {
		t.Errorf("excerpt has %d runes, want at most %d", n, ExcerptLength)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncated excerpt should end with ellipsis: %q", got)
	}
}
