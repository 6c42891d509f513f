package identity

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
)

// Mailer は確認メールの送信インターフェース。
type Mailer interface {
	SendVerification(ctx context.Context, email, link string) error
}

// LogMailer は確認リンクを送信せずログに出力するMailer。
// SMTP連携を持たない環境向け。
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer はLogMailerを生成する。loggerがnilの場合はslog.Defaultを使う。
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// SendVerification は確認リンクをログに記録する。
func (m *LogMailer) SendVerification(ctx context.Context, email, link string) error {
	m.logger.InfoContext(ctx, "verification email",
		slog.String("email", email),
		slog.String("link", link),
	)
	return nil
}

// verificationLink はベースURLとトークンから確認リンクを組み立てる。
func verificationLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/auth/verify?token=" + url.QueryEscape(token)
}
