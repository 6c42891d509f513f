package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/ministry/internal/model"
)

const defaultGoTrueTimeout = 10 * time.Second

// GoTrueConfig はSupabase GoTrueクライアントの設定。
type GoTrueConfig struct {
	URL       string // プロジェクトURL（例: https://xyz.supabase.co）
	AnonKey   string // apikeyヘッダーに付与する公開キー
	JWTSecret string // 設定時はアクセストークンをローカルで検証する
	Timeout   time.Duration

	// テスト用に差し替え可能なHTTPクライアント
	HTTPClient *http.Client
}

// GoTrueClient はSupabase Auth（GoTrue）のREST APIクライアント。
// セッションIDとしてアクセストークンをそのまま使う。
type GoTrueClient struct {
	config GoTrueConfig
	client *http.Client
	events *Broadcaster
	now    func() time.Time
}

// NewGoTrueClient はGoTrueClientを生成する。
func NewGoTrueClient(config GoTrueConfig) *GoTrueClient {
	config.URL = strings.TrimRight(config.URL, "/")
	if config.Timeout <= 0 {
		config.Timeout = defaultGoTrueTimeout
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return &GoTrueClient{
		config: config,
		client: client,
		events: NewBroadcaster(),
		now:    time.Now,
	}
}

// gotrueUser はGoTrueのユーザー表現。
type gotrueUser struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UserMetadata     map[string]any `json:"user_metadata"`
}

// gotrueSession はトークンエンドポイントのレスポンス。
type gotrueSession struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	RefreshToken string      `json:"refresh_token"`
	User         *gotrueUser `json:"user"`
}

// gotrueSignUpResponse はサインアップのレスポンス。
// 自動確認が有効な場合はセッション、メール確認待ちの場合はユーザーそのものが返る。
type gotrueSignUpResponse struct {
	gotrueUser
	gotrueSession
}

// gotrueError はGoTrueのエラーレスポンス。バージョンによりフィールド名が異なる。
type gotrueError struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorDescription string `json:"error_description"`
	Error            string `json:"error"`
}

func (e gotrueError) text() string {
	for _, s := range []string{e.Msg, e.Message, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// gotrueClaims はGoTrueが発行するアクセストークンのクレーム。
type gotrueClaims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// statusError は2xx以外のレスポンスを表す。
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gotrue request failed with status %d: %s", e.status, e.message)
}

// SignUp はGoTrueにアカウントを作成する。
func (c *GoTrueClient) SignUp(ctx context.Context, email, password string, attrs Attributes) (*SignUpResult, error) {
	payload := map[string]any{
		"email":    normalizeEmail(email),
		"password": password,
		"data":     map[string]string{"full_name": strings.TrimSpace(attrs.FullName)},
	}

	var resp gotrueSignUpResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", payload, &resp); err != nil {
		return nil, asAuthError(err)
	}

	if resp.AccessToken != "" && resp.gotrueSession.User != nil {
		session := c.toSession(&resp.gotrueSession)
		c.events.Publish(Event{Type: EventSignedIn, SessionID: session.ID, Session: session})
		return &SignUpResult{Account: &session.Account, Session: session}, nil
	}

	if resp.gotrueUser.ID == "" {
		return nil, errors.New("empty user in signup response")
	}
	account := toAccount(&resp.gotrueUser)
	return &SignUpResult{Account: &account}, nil
}

// SignIn はパスワードグラントでアクセストークンを取得する。
func (c *GoTrueClient) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	payload := map[string]string{"email": normalizeEmail(email), "password": password}

	var resp gotrueSession
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", payload, &resp); err != nil {
		return nil, asAuthError(err)
	}
	if resp.AccessToken == "" || resp.User == nil {
		return nil, errors.New("empty access token in response")
	}

	session := c.toSession(&resp)
	c.events.Publish(Event{Type: EventSignedIn, SessionID: session.ID, Session: session})
	return session, nil
}

// SignOut はアクセストークンを失効させる。
// 既に無効なトークン（401）は失効済みとして扱う。
func (c *GoTrueClient) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	err := c.do(ctx, http.MethodPost, "/auth/v1/logout", sessionID, nil, nil)
	var se *statusError
	if err != nil && !(errors.As(err, &se) && se.status == http.StatusUnauthorized) {
		return model.NewAuthenticationError(msgSignOutFailed, err)
	}

	c.events.Publish(Event{Type: EventSignedOut, SessionID: sessionID})
	return nil
}

// GetSession はアクセストークンに対応するセッションを返す。
// JWTシークレットが設定されている場合はローカルで署名と期限を検証する。
func (c *GoTrueClient) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	if c.config.JWTSecret != "" {
		return c.verifyToken(sessionID), nil
	}

	var user gotrueUser
	err := c.do(ctx, http.MethodGet, "/auth/v1/user", sessionID, nil, &user)
	var se *statusError
	if errors.As(err, &se) && (se.status == http.StatusUnauthorized || se.status == http.StatusForbidden) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	expiresAt := c.now().Add(time.Hour)
	var claims gotrueClaims
	if _, _, err := jwt.NewParser().ParseUnverified(sessionID, &claims); err == nil && claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	return &model.Session{
		ID:        sessionID,
		Account:   toAccount(&user),
		ExpiresAt: expiresAt,
	}, nil
}

// OnSessionChange はセッション変化の購読を登録する。
func (c *GoTrueClient) OnSessionChange(fn func(Event)) func() {
	return c.events.Subscribe(fn)
}

// ResendVerification はサインアップ確認メールを再送する。
func (c *GoTrueClient) ResendVerification(ctx context.Context, email string) error {
	payload := map[string]string{"type": "signup", "email": normalizeEmail(email)}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/resend", "", payload, nil); err != nil {
		return asAuthError(err)
	}
	return nil
}

// verifyToken はHS256署名と有効期限を検証し、クレームからセッションを組み立てる。
// 検証に失敗したトークンはセッションなしとして扱う。
func (c *GoTrueClient) verifyToken(token string) *model.Session {
	var claims gotrueClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(c.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
	if err != nil {
		slog.Debug("access token rejected", slog.String("error", err.Error()))
		return nil
	}

	// GoTrueは確認済みのアカウントにのみトークンを発行するため、発行時刻を確認時刻とみなす
	var confirmedAt *time.Time
	if claims.IssuedAt != nil {
		t := claims.IssuedAt.Time
		confirmedAt = &t
	}

	session := &model.Session{
		ID: token,
		Account: model.Account{
			ID:               claims.Subject,
			Email:            claims.Email,
			FullName:         metadataName(claims.UserMetadata),
			EmailConfirmedAt: confirmedAt,
		},
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.CreatedAt = claims.IssuedAt.Time
	}
	return session
}

// do はGoTrueへリクエストを送りJSONレスポンスをoutへ展開する。
func (c *GoTrueClient) do(ctx context.Context, method, path, bearer string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.URL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.config.AnonKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gotrue request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ge gotrueError
		_ = json.Unmarshal(respBody, &ge)
		msg := ge.text()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &statusError{status: resp.StatusCode, message: msg}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *GoTrueClient) toSession(s *gotrueSession) *model.Session {
	now := c.now()
	return &model.Session{
		ID:        s.AccessToken,
		Account:   toAccount(s.User),
		ExpiresAt: now.Add(time.Duration(s.ExpiresIn) * time.Second),
		CreatedAt: now,
	}
}

func toAccount(u *gotrueUser) model.Account {
	return model.Account{
		ID:               u.ID,
		Email:            u.Email,
		FullName:         metadataName(u.UserMetadata),
		EmailConfirmedAt: u.EmailConfirmedAt,
		CreatedAt:        u.CreatedAt,
	}
}

func metadataName(meta map[string]any) string {
	if name, ok := meta["full_name"].(string); ok {
		return name
	}
	return ""
}

// asAuthError は4xxレスポンスをAuthenticationErrorに変換する。
// 5xxや通信エラーはそのまま返す。
func asAuthError(err error) error {
	var se *statusError
	if errors.As(err, &se) && se.status >= 400 && se.status < 500 {
		return model.NewAuthenticationError(se.message, nil)
	}
	return err
}

// compile-time interface check
var _ Client = (*GoTrueClient)(nil)
