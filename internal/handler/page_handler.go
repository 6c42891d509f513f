package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ministry/internal/guard"
	"github.com/hitoshi/ministry/internal/navigator"
)

// PageNavigator はページ遷移を解決する。
type PageNavigator interface {
	Navigate(ctx context.Context, req navigator.Request) (*navigator.View, error)
}

// DemoMarkerChecker はリクエストが有効なデモ管理者マーカーを持つかを判定する。
type DemoMarkerChecker interface {
	FromRequest(r *http.Request) bool
}

// PageHandler はページ識別子によるナビゲーションのHTTPハンドラー。
type PageHandler struct {
	nav  PageNavigator
	demo DemoMarkerChecker
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(nav PageNavigator, demo DemoMarkerChecker) *PageHandler {
	return &PageHandler{nav: nav, demo: demo}
}

// Show はページの表示内容を返す。
// サインインが必要な場合は401、管理者ゲートで拒否された場合は403で、本文にはページ情報だけを含める。
// GET /api/pages/{page}?payload=xxx
func (h *PageHandler) Show(w http.ResponseWriter, r *http.Request) {
	req := navigator.Request{
		Page:    chi.URLParam(r, "page"),
		Payload: r.URL.Query().Get("payload"),
		State:   currentState(r),
	}
	if h.demo != nil {
		req.DemoAdmin = h.demo.FromRequest(r)
	}

	view, err := h.nav.Navigate(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	switch view.Decision {
	case guard.Prompt:
		status = http.StatusUnauthorized
	case guard.Denied:
		status = http.StatusForbidden
	}
	writeJSON(w, status, toPageResponse(view))
}
