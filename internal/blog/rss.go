package blog

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hitoshi/ministry/internal/model"
)

// FeedInfo はRSSフィードのチャンネル情報。
type FeedInfo struct {
	Title       string
	BaseURL     string
	Description string
}

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	GUID        rssGUID `xml:"guid"`
	Description string  `xml:"description"`
	PubDate     string  `xml:"pubDate,omitempty"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// WriteRSS は公開済み記事のRSS 2.0フィードを書き出す。
// 未公開の記事は渡されても出力しない。
func WriteRSS(w io.Writer, info FeedInfo, posts []*model.BlogPost) error {
	base := strings.TrimRight(info.BaseURL, "/")
	channel := rssChannel{
		Title:       info.Title,
		Link:        base + "/blog",
		Description: info.Description,
	}

	var latest time.Time
	for _, p := range posts {
		if !p.Publication.Approved || p.Publication.ApprovedAt == nil {
			continue
		}
		publishedAt := p.Publication.ApprovedAt.UTC()
		if publishedAt.After(latest) {
			latest = publishedAt
		}

		link := base + "/blog/" + p.Slug
		channel.Items = append(channel.Items, rssItem{
			Title:       p.Title,
			Link:        link,
			GUID:        rssGUID{IsPermaLink: true, Value: link},
			Description: p.Excerpt,
			PubDate:     publishedAt.Format(time.RFC1123Z),
		})
	}
	if !latest.IsZero() {
		channel.LastBuildDate = latest.Format(time.RFC1123Z)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write rss header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(rssDocument{Version: "2.0", Channel: channel}); err != nil {
		return fmt.Errorf("failed to encode rss: %w", err)
	}
	return enc.Flush()
}
