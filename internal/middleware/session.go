// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/ministry/internal/guard"
	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/session"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var storeContextKey = contextKey("session_store")

// StoreFactory はリクエストごとのセッションストアを生成する。
type StoreFactory func() *session.Store

// NewSessionMiddleware はCookieのセッションIDでリクエスト専用のストアを開始し、
// 最初の解決を待ってからコンテキストに注入するミドルウェアを返す。
// 未認証でもリクエストは拒否しない。可否の判定はガードとハンドラーが行う。
// セッションの保存先に到達できない場合は匿名として扱わず503を返す。
// ストアはリクエストの終了時にCloseされる。
func NewSessionMiddleware(newStore StoreFactory, timeout time.Duration) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sessionID string
			if cookie, err := r.Cookie(SessionCookieName); err == nil {
				sessionID = cookie.Value
			}

			store := newStore()
			defer store.Close()
			store.Start(r.Context(), sessionID)

			waitCtx, cancel := context.WithTimeout(r.Context(), timeout)
			state, err := store.Wait(waitCtx)
			cancel()
			if err != nil {
				slog.Warn("session resolution timed out", slog.String("error", err.Error()))
				WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewServiceUnavailableError())
				return
			}
			if resolveErr := store.LastError(); resolveErr != nil {
				// セッションを確認できないままの匿名扱いは避ける。プロフィールだけの失敗は非管理者として続行する
				var dsErr *model.DataServiceError
				if errors.As(resolveErr, &dsErr) && state.Account == nil {
					slog.Error("session lookup failed",
						slog.String("op", dsErr.Op),
						slog.String("error", resolveErr.Error()),
					)
					WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewServiceUnavailableError())
					return
				}
				slog.Warn("session resolution failed; continuing with partial state",
					slog.Bool("authenticated", state.Account != nil),
					slog.String("error", resolveErr.Error()),
				)
			}

			if state.Account != nil {
				SetLoggedUserID(r.Context(), state.Account.ID)
			}

			ctx := context.WithValue(r.Context(), storeContextKey, store)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// StoreFromContext はリクエストコンテキストからセッションストアを取得する。
func StoreFromContext(ctx context.Context) (*session.Store, error) {
	store, ok := ctx.Value(storeContextKey).(*session.Store)
	if !ok || store == nil {
		return nil, fmt.Errorf("session store not found in context")
	}
	return store, nil
}

// ContextWithStore はコンテキストにセッションストアを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithStore(ctx context.Context, store *session.Store) context.Context {
	return context.WithValue(ctx, storeContextKey, store)
}

// UserIDFromContext は認証済みユーザーのIDを返す。
// ストアの状態はリクエスト中にも変わりうるため、呼び出し時点の値を返す。
func UserIDFromContext(ctx context.Context) (string, error) {
	store, err := StoreFromContext(ctx)
	if err != nil {
		return "", err
	}
	state := store.State()
	if state.Account == nil {
		return "", fmt.Errorf("user ID not found in context")
	}
	return state.Account.ID, nil
}

// NewRequireAdminMiddleware は管理者ゲートを適用するミドルウェアを返す。
// 管理者でない場合はサインインを促さず、常に403を返す。
// デモ管理者のマーカーはここでは参照しない。
func NewRequireAdminMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var state session.State
			if store, err := StoreFromContext(r.Context()); err == nil {
				state = store.State()
			}

			if guard.EvaluateAdmin(state) != guard.Permit {
				attrs := []any{slog.String("path", r.URL.Path)}
				if state.Account != nil {
					attrs = append(attrs, slog.String("user_id", state.Account.ID))
				}
				slog.Warn("admin access denied", attrs...)
				WriteErrorResponse(w, http.StatusForbidden, model.NewAccessDeniedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
