package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ministry/internal/demoadmin"
	"github.com/hitoshi/ministry/internal/middleware"
	"github.com/hitoshi/ministry/internal/model"
)

// DemoGate はデモ管理者のログインとマーカーCookieを扱う。
type DemoGate interface {
	DemoMarkerChecker
	Login(email, password string) (string, error)
	SetCookie(w http.ResponseWriter, marker string)
	ClearCookie(w http.ResponseWriter)
}

// DemoAdminHandler はデモ管理者ログインのHTTPハンドラー。
// マーカーは管理者ゲートを満たさず、admin-dashboardページの表示にだけ使われる。
type DemoAdminHandler struct {
	gate DemoGate
}

// NewDemoAdminHandler はDemoAdminHandlerを生成する。
func NewDemoAdminHandler(gate DemoGate) *DemoAdminHandler {
	return &DemoAdminHandler{gate: gate}
}

// Login は固定の資格情報を照合し、マーカーCookieを設定する。
// POST /api/demo-admin/login
func (h *DemoAdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := readJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	marker, err := h.gate.Login(req.Email, req.Password)
	switch {
	case errors.Is(err, demoadmin.ErrDisabled):
		http.NotFound(w, r)
		return
	case errors.Is(err, demoadmin.ErrInvalidCredentials):
		slog.Warn("demo admin login rejected")
		middleware.WriteAuthenticationErrorResponse(w, model.NewAuthenticationError("Invalid credentials", nil))
		return
	case err != nil:
		handleServiceError(w, r, err)
		return
	}

	h.gate.SetCookie(w, marker)
	writeJSON(w, http.StatusOK, map[string]bool{"demo_admin": true})
}

// Logout はマーカーCookieを削除する。
// POST /api/demo-admin/logout
func (h *DemoAdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.gate.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Status はマーカーが有効かを返す。
// GET /api/demo-admin/status
func (h *DemoAdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"demo_admin": h.gate.FromRequest(r)})
}
