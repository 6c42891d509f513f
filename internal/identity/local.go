package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/repository"
)

// 認証失敗時にユーザーへ返すメッセージ
const (
	msgInvalidCredentials = "Invalid login credentials"
	msgEmailNotConfirmed  = "Email not confirmed"
	msgAlreadyRegistered  = "User already registered"
	msgInvalidToken       = "Invalid or expired verification link"
	msgSignOutFailed      = "Failed to sign out"
)

// LocalConfig はローカル認証プロバイダーの設定。
type LocalConfig struct {
	SessionMaxAge            time.Duration // セッション有効期間
	RequireEmailVerification bool          // trueの場合、確認済みアカウントのみサインイン可能
	BaseURL                  string        // 確認リンクの組み立てに使う
	BcryptCost               int           // 0の場合はbcrypt.DefaultCost
}

// LocalOption はLocalProviderの生成オプション。
type LocalOption func(*LocalProvider)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) LocalOption {
	return func(p *LocalProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithMailer は確認メールの送信先を差し替える。
func WithMailer(m Mailer) LocalOption {
	return func(p *LocalProvider) {
		if m != nil {
			p.mailer = m
		}
	}
}

// WithBroadcaster はイベント配信に使うBroadcasterを差し替える。
func WithBroadcaster(b *Broadcaster) LocalOption {
	return func(p *LocalProvider) {
		if b != nil {
			p.events = b
		}
	}
}

// LocalProvider はPostgreSQLにアカウントとセッションを保持する認証プロバイダー。
type LocalProvider struct {
	accounts repository.AccountRepository
	sessions repository.SessionRepository
	mailer   Mailer
	events   *Broadcaster
	config   LocalConfig
	now      func() time.Time
}

var _ Client = (*LocalProvider)(nil)

// NewLocalProvider はLocalProviderを生成する。
func NewLocalProvider(
	accounts repository.AccountRepository,
	sessions repository.SessionRepository,
	config LocalConfig,
	opts ...LocalOption,
) *LocalProvider {
	if config.SessionMaxAge <= 0 {
		config.SessionMaxAge = 7 * 24 * time.Hour
	}
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	p := &LocalProvider{
		accounts: accounts,
		sessions: sessions,
		mailer:   NewLogMailer(nil),
		events:   NewBroadcaster(),
		config:   config,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SignUp はアカウントを作成する。
// メール確認が必要な設定では確認トークンを発行してMailerへ渡し、セッションは発行しない。
func (p *LocalProvider) SignUp(ctx context.Context, email, password string, attrs Attributes) (*SignUpResult, error) {
	email = normalizeEmail(email)

	existing, _, err := p.accounts.FindByEmail(ctx, email)
	if err != nil {
		return nil, model.NewDataServiceError("find account", err)
	}
	if existing != nil {
		return nil, model.NewAuthenticationError(msgAlreadyRegistered, nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := p.now()
	account := &model.Account{
		ID:        uuid.New().String(),
		Email:     email,
		FullName:  strings.TrimSpace(attrs.FullName),
		CreatedAt: now,
	}

	var token string
	if p.config.RequireEmailVerification {
		token, err = generateToken()
		if err != nil {
			return nil, fmt.Errorf("failed to generate verification token: %w", err)
		}
	} else {
		confirmedAt := now
		account.EmailConfirmedAt = &confirmedAt
	}

	if err := p.accounts.Create(ctx, account, string(hash), token); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewAuthenticationError(msgAlreadyRegistered, nil)
		}
		return nil, model.NewDataServiceError("create account", err)
	}

	slog.Info("account created",
		slog.String("account_id", account.ID),
		slog.Bool("verification_pending", token != ""),
	)

	if token != "" {
		if err := p.mailer.SendVerification(ctx, email, verificationLink(p.config.BaseURL, token)); err != nil {
			slog.Warn("failed to send verification email",
				slog.String("account_id", account.ID),
				slog.String("error", err.Error()),
			)
		}
		return &SignUpResult{Account: account}, nil
	}

	session, err := p.createSession(ctx, *account)
	if err != nil {
		return nil, err
	}
	p.events.Publish(Event{Type: EventSignedIn, SessionID: session.ID, Session: session})

	return &SignUpResult{Account: account, Session: session}, nil
}

// SignIn はパスワードを照合しセッションを発行する。
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	account, hash, err := p.accounts.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, model.NewDataServiceError("find account", err)
	}
	if account == nil {
		return nil, model.NewAuthenticationError(msgInvalidCredentials, nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, model.NewAuthenticationError(msgInvalidCredentials, nil)
	}
	if p.config.RequireEmailVerification && !account.Confirmed() {
		return nil, model.NewAuthenticationError(msgEmailNotConfirmed, nil)
	}

	session, err := p.createSession(ctx, *account)
	if err != nil {
		return nil, err
	}

	slog.Info("account signed in", slog.String("account_id", account.ID))
	p.events.Publish(Event{Type: EventSignedIn, SessionID: session.ID, Session: session})

	return session, nil
}

// SignOut はセッションを破棄する。セッションIDが空の場合は何もしない。
func (p *LocalProvider) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := p.sessions.DeleteByID(ctx, sessionID); err != nil {
		return model.NewAuthenticationError(msgSignOutFailed, err)
	}

	slog.Info("account signed out", slog.String("session_id", shortID(sessionID)))
	p.events.Publish(Event{Type: EventSignedOut, SessionID: sessionID})
	return nil
}

// GetSession は有効なセッションを返す。
// 有効期間の半分を過ぎたセッションは期限を延長し、token_refreshedを通知する。
func (p *LocalProvider) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := p.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, model.NewDataServiceError("find session", err)
	}
	if session == nil {
		return nil, nil
	}

	now := p.now()
	if !session.ExpiresAt.After(now) {
		return nil, nil
	}
	if session.ExpiresAt.Sub(now) < p.config.SessionMaxAge/2 {
		expiresAt := now.Add(p.config.SessionMaxAge)
		if err := p.sessions.Extend(ctx, sessionID, expiresAt); err != nil {
			return nil, model.NewDataServiceError("extend session", err)
		}
		session.ExpiresAt = expiresAt
		p.events.Publish(Event{Type: EventTokenRefreshed, SessionID: sessionID, Session: session})
	}

	return session, nil
}

// OnSessionChange はセッション変化の購読を登録する。
func (p *LocalProvider) OnSessionChange(fn func(Event)) func() {
	return p.events.Subscribe(fn)
}

// ResendVerification は確認トークンを再発行して送信する。
// 未登録・確認済みのアドレスでも成功を返し、アカウントの有無を明かさない。
func (p *LocalProvider) ResendVerification(ctx context.Context, email string) error {
	account, _, err := p.accounts.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return model.NewDataServiceError("find account", err)
	}
	if account == nil || account.Confirmed() {
		return nil
	}

	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}
	if err := p.accounts.SetVerificationToken(ctx, account.ID, token); err != nil {
		return model.NewDataServiceError("store verification token", err)
	}

	return p.mailer.SendVerification(ctx, account.Email, verificationLink(p.config.BaseURL, token))
}

// VerifyEmail は確認トークンでアカウントを確認済みにする。
func (p *LocalProvider) VerifyEmail(ctx context.Context, token string) (*model.Account, error) {
	if token == "" {
		return nil, model.NewAuthenticationError(msgInvalidToken, nil)
	}

	account, err := p.accounts.ConfirmByToken(ctx, token, p.now())
	if err != nil {
		return nil, model.NewDataServiceError("confirm account", err)
	}
	if account == nil {
		return nil, model.NewAuthenticationError(msgInvalidToken, nil)
	}

	slog.Info("account email confirmed", slog.String("account_id", account.ID))
	return account, nil
}

// createSession はセッションを作成し永続化する。
func (p *LocalProvider) createSession(ctx context.Context, account model.Account) (*model.Session, error) {
	sessionID, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := p.now()
	session := &model.Session{
		ID:        sessionID,
		Account:   account,
		ExpiresAt: now.Add(p.config.SessionMaxAge),
		CreatedAt: now,
	}

	if err := p.sessions.Create(ctx, session); err != nil {
		return nil, model.NewDataServiceError("save session", err)
	}

	return session, nil
}

// generateToken は暗号的に安全なランダムトークンを生成する。
// セッションIDと確認トークンの両方に使う。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// shortID はログ出力用にトークンの先頭だけを返す。
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
