package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ministry/internal/middleware"
	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/session"
)

// EmailVerifier は確認トークンでアカウントを確認済みにする。
// ローカルプロバイダーのみが実装する。
type EmailVerifier interface {
	VerifyEmail(ctx context.Context, token string) (*model.Account, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はサインアップ・サインイン・サインアウトのHTTPハンドラー。
// 認証状態の変更はリクエストごとのセッションストアを通して行う。
type AuthHandler struct {
	verifier EmailVerifier
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。verifierはnilでもよい。
func NewAuthHandler(verifier EmailVerifier, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		verifier: verifier,
		config:   config,
	}
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resendRequest struct {
	Email string `json:"email"`
}

// SignUp はアカウントを作成する。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	var req session.SignUpInput
	if err := readJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	outcome, err := store.SignUp(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if !outcome.VerificationPending {
		h.setSessionCookie(w, store.State().SessionID)
	}
	writeJSON(w, http.StatusCreated, signUpResponse{
		Account:             toAccountResponse(outcome.Account),
		VerificationPending: outcome.VerificationPending,
	})
}

// SignIn はメールアドレスとパスワードで認証し、セッションCookieを設定する。
// POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	var req signInRequest
	if err := readJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	if err := store.SignIn(r.Context(), req.Email, req.Password); err != nil {
		handleServiceError(w, r, err)
		return
	}

	state := store.State()
	h.setSessionCookie(w, state.SessionID)
	if state.Account != nil {
		middleware.SetLoggedUserID(r.Context(), state.Account.ID)
	}
	writeJSON(w, http.StatusOK, toSessionResponse(state))
}

// SignOut はセッションを破棄する。破棄に失敗した場合もCookieはクリアする。
// POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		h.clearSessionCookie(w)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	signOutErr := store.SignOut(r.Context())
	h.clearSessionCookie(w)
	if signOutErr != nil {
		slog.Warn("sign out failed", slog.String("error", signOutErr.Error()))
		handleServiceError(w, r, signOutErr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Session は現在のセッション状態を返す。未認証でも200を返す。
// GET /auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSessionResponse(currentState(r)))
}

// ResendVerification は確認メールを再送する。
// アカウントの有無にかかわらず同じレスポンスを返す。
// POST /auth/resend-verification
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	var req resendRequest
	if err := readJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	if err := store.ResendVerification(r.Context(), req.Email); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "If an account exists for that address, a verification email has been sent.",
	})
}

// Verify は確認トークンでメールアドレスを確認済みにする。
// GET /auth/verify?token=xxx
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		http.NotFound(w, r)
		return
	}

	account, err := h.verifier.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	if sessionID == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
