package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hitoshi/ministry/internal/metrics"
)

var requestLogContextKey = contextKey("request_log")

// requestLog はログ出力までにリクエスト内で判明した情報を保持する。
// セッションミドルウェアはロギングミドルウェアより内側で動くため、ポインタ経由で受け渡す。
type requestLog struct {
	mu     sync.Mutex
	userID string
}

// SetLoggedUserID はリクエストログに出力するユーザーIDを設定する。
// ロギングミドルウェアの外で呼ばれた場合は何もしない。
func SetLoggedUserID(ctx context.Context, userID string) {
	if rl, ok := ctx.Value(requestLogContextKey).(*requestLog); ok {
		rl.mu.Lock()
		rl.userID = userID
		rl.mu.Unlock()
	}
}

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力し、ステータスコードを集計するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、user_id（認証済みの場合）を含む。
func NewLoggingMiddleware(logger *slog.Logger, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			info := &requestLog{}
			ctx := context.WithValue(r.Context(), requestLogContextKey, info)

			next.ServeHTTP(rec, r.WithContext(ctx))

			duration := time.Since(start)
			collector.RecordHTTPStatus(rec.statusCode)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", float64(duration.Nanoseconds())/float64(time.Millisecond)),
			}
			info.mu.Lock()
			if info.userID != "" {
				args = append(args, slog.String("user_id", info.userID))
			}
			info.mu.Unlock()

			level := slog.LevelInfo
			switch {
			case rec.statusCode >= 500:
				level = slog.LevelError
			case rec.statusCode >= 400:
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}
