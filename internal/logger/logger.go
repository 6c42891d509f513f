// Package logger は構造化ログ出力の初期化を提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/golang-cz/devslog"
)

// Options はロガーの出力形式とレベル。
type Options struct {
	Format string // "json"（既定）または "dev"
	Level  string // debug, info, warn, error
}

// ParseLevel はレベル文字列をslog.Levelに変換する。不明な値はInfoとして扱う。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup はslog.Loggerを生成して返す。
// 本番はJSON形式、Format="dev" の場合はdevslogで人間向けに整形する。
func Setup(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	}

	if opts.Format == "dev" {
		handlerOpts.AddSource = true
		return slog.New(devslog.NewHandler(w, &devslog.Options{
			HandlerOptions:  handlerOpts,
			NewLineAfterLog: true,
		}))
	}

	return slog.New(slog.NewJSONHandler(w, handlerOpts))
}

// SetupDefault はSetupで生成したロガーをグローバルロガーとして設定する。
// wがnilの場合はos.Stdoutに出力する。
func SetupDefault(w io.Writer, opts Options) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	logger := Setup(w, opts)
	slog.SetDefault(logger)
	return logger
}
