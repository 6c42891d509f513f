// Package session は「誰が認証済みで、管理者か」を保持するセッション/ロールストアを提供する。
//
// ストアはクライアント文脈ごとに1つ生成し、ガード・ナビゲーター・ハンドラーへ明示的に渡す。
// Startで認証サービスのセッション変化を購読し、Closeで購読を解除する。
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hitoshi/ministry/internal/identity"
	"github.com/hitoshi/ministry/internal/metrics"
	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/validate"
)

// State はストアが公開する状態のスナップショット。
// IsAdminはセッション解決ごとに一度だけプロフィールから導出し、セッション変化のたびに破棄する。
type State struct {
	Account   *model.Account
	Profile   *model.Profile
	IsAdmin   bool
	Loading   bool
	SessionID string
}

// Authenticated はアカウントが存在するかを返す。
func (s State) Authenticated() bool {
	return s.Account != nil
}

// ProfileEnsurer はアカウントに対応するプロフィールを取得または作成する。
type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context, account *model.Account) (*model.Profile, error)
}

// SignUpInput はサインアップの入力。
type SignUpInput struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	FullName        string `json:"full_name"`
}

// Validate は入力を検証する。
func (in SignUpInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, validate.EmailRules()...),
		validation.Field(&in.Password, validate.PasswordRules()...),
		validation.Field(&in.ConfirmPassword,
			validation.Required.Error("Please confirm your password"),
			validate.Equals(in.Password, "Passwords do not match"),
		),
		validation.Field(&in.FullName,
			validate.NotBlank("Full name is required"),
			validate.MinTrimmed(2, "Full name must be at least 2 characters"),
		),
	)
	return validate.Convert(err, "")
}

// SignUpOutcome はサインアップの結果。
// VerificationPendingがtrueの場合、メール確認が済むまでセッションは発行されない。
type SignUpOutcome struct {
	Account             *model.Account
	VerificationPending bool
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c credentials) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Email, validate.EmailRules()...),
		validation.Field(&c.Password, validation.Required.Error("Password is required")),
	)
	return validate.Convert(err, "")
}

// Option はStoreの生成オプション。
type Option func(*Store)

// WithLogger はロガーを設定する。
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics はメトリクス収集先を設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// Store はセッション/ロールストア。
//
// セッション解決は世代番号で順序付ける。解決を開始するたびに世代を進め、
// 結果を反映できるのは最後に開始された解決だけとする。古い結果は破棄される。
type Store struct {
	client   identity.Client
	profiles ProfileEnsurer
	logger   *slog.Logger
	metrics  metrics.MetricsCollector

	mu          sync.Mutex
	state       State
	gen         uint64
	lastErr     error
	ctx         context.Context
	started     bool
	closed      bool
	unsubscribe func()
	subs        map[int]func(State)
	nextSub     int

	ready     chan struct{}
	readyOnce sync.Once
}

// NewStore はStoreを生成する。初期状態はLoading=true。
func NewStore(client identity.Client, profiles ProfileEnsurer, opts ...Option) *Store {
	s := &Store{
		client:   client,
		profiles: profiles,
		logger:   slog.Default(),
		metrics:  metrics.Nop{},
		state:    State{Loading: true},
		ctx:      context.Background(),
		subs:     make(map[int]func(State)),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start はセッション変化の購読を開始し、sessionIDのセッション解決を非同期で開始する。
// 2回目以降の呼び出しは何もしない。
func (s *Store) Start(ctx context.Context, sessionID string) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.ctx = ctx
	s.state.SessionID = sessionID
	gen := s.nextGenerationLocked()
	s.mu.Unlock()

	unsubscribe := s.client.OnSessionChange(s.handleSessionChange)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		return
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	go s.resolve(ctx, gen, sessionID, nil)
}

// Ready は最初のセッション解決が完了するとクローズされるチャネルを返す。
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// Wait は最初のセッション解決を待ち、その時点の状態を返す。
func (s *Store) Wait(ctx context.Context) (State, error) {
	select {
	case <-s.ready:
		return s.State(), nil
	case <-ctx.Done():
		return s.State(), ctx.Err()
	}
}

// State は現在の状態のスナップショットを返す。
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError は直近のセッション解決で発生したエラーを返す。
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Subscribe は状態変化の購読者を登録し、解除関数を返す。
// コールバックはロックの外で状態のスナップショットを受け取る。
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Close は認証サービスの購読を解除し、購読者を破棄する。
// 実行中のセッション解決の結果は反映されない。
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.subs = make(map[int]func(State))
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.readyOnce.Do(func() { close(s.ready) })
}

// SignUp はアカウントとプロフィールを作成する。
// 認証サービスがメール確認を要求する場合はセッションを採用せず、確認待ちとして返す。
func (s *Store) SignUp(ctx context.Context, in SignUpInput) (*SignUpOutcome, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	res, err := s.client.SignUp(ctx, in.Email, in.Password, identity.Attributes{FullName: strings.TrimSpace(in.FullName)})
	if err != nil {
		s.metrics.RecordAuthEvent("sign_up", "failure")
		return nil, err
	}

	if _, err := s.profiles.EnsureProfile(ctx, res.Account); err != nil {
		s.metrics.RecordAuthEvent("sign_up", "failure")
		return nil, err
	}
	s.metrics.RecordAuthEvent("sign_up", "success")

	if res.Session == nil {
		return &SignUpOutcome{Account: res.Account, VerificationPending: true}, nil
	}

	s.adopt(ctx, res.Session)
	return &SignUpOutcome{Account: res.Account}, nil
}

// SignIn は認証し、初期化時と同じ手順でセッションとプロフィールを反映する。
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	if err := (credentials{Email: email, Password: password}).Validate(); err != nil {
		return err
	}

	session, err := s.client.SignIn(ctx, email, password)
	if err != nil {
		s.metrics.RecordAuthEvent("sign_in", "failure")
		return err
	}
	s.metrics.RecordAuthEvent("sign_in", "success")

	s.adopt(ctx, session)
	return nil
}

// SignOut はセッションを破棄する。
// 破棄に失敗した場合もローカルの状態は必ずクリアし、AuthenticationErrorを返す。
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	sessionID := s.state.SessionID
	gen := s.nextGenerationLocked()
	s.mu.Unlock()

	err := s.client.SignOut(ctx, sessionID)
	s.commit(gen, State{}, nil)

	if err != nil {
		s.metrics.RecordAuthEvent("sign_out", "failure")
		var authErr *model.AuthenticationError
		if errors.As(err, &authErr) {
			return err
		}
		return model.NewAuthenticationError("Failed to sign out", err)
	}
	s.metrics.RecordAuthEvent("sign_out", "success")
	return nil
}

// ResendVerification は確認メールを再送する。
func (s *Store) ResendVerification(ctx context.Context, email string) error {
	err := validation.Validate(email, validate.EmailRules()...)
	if err := validate.Convert(err, "email"); err != nil {
		return err
	}
	return s.client.ResendVerification(ctx, email)
}

// adopt は発行済みのセッションをストアに採用し、同期的に解決する。
func (s *Store) adopt(ctx context.Context, session *model.Session) {
	s.mu.Lock()
	s.state.SessionID = session.ID
	gen := s.nextGenerationLocked()
	s.mu.Unlock()

	s.resolve(ctx, gen, session.ID, session)
}

// handleSessionChange は認証サービスからの通知を処理する。
// 現在のセッション以外の通知は無視する。
func (s *Store) handleSessionChange(e identity.Event) {
	s.mu.Lock()
	if s.closed || e.SessionID == "" || e.SessionID != s.state.SessionID {
		s.mu.Unlock()
		return
	}
	gen := s.nextGenerationLocked()
	ctx := s.ctx
	s.mu.Unlock()

	switch e.Type {
	case identity.EventSignedOut:
		s.commit(gen, State{}, nil)
	default:
		go s.resolve(ctx, gen, e.SessionID, e.Session)
	}
}

// resolve はセッションを解決し、プロフィールを取得または作成して状態に反映する。
// sessionが非nilの場合は認証サービスへの問い合わせを省略する。
func (s *Store) resolve(ctx context.Context, gen uint64, sessionID string, session *model.Session) {
	if session == nil && sessionID != "" {
		var err error
		session, err = s.client.GetSession(ctx, sessionID)
		if err != nil {
			s.logger.WarnContext(ctx, "session resolution failed", slog.String("error", err.Error()))
			s.commit(gen, State{}, err)
			return
		}
	}
	if session == nil {
		s.commit(gen, State{}, nil)
		return
	}

	account := session.Account
	next := State{Account: &account, SessionID: session.ID}

	profile, err := s.profiles.EnsureProfile(ctx, &account)
	if err != nil {
		// プロフィールが得られない場合は認証済みだが管理者ではないものとして扱う
		s.logger.WarnContext(ctx, "profile resolution failed",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
		s.commit(gen, next, err)
		return
	}

	next.Profile = profile
	next.IsAdmin = profile != nil && profile.IsAdmin
	s.commit(gen, next, nil)
}

// commit は世代genが最新の場合に限り状態を反映し、購読者へ通知する。
func (s *Store) commit(gen uint64, next State, resolveErr error) bool {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return false
	}
	next.Loading = false
	s.state = next
	s.lastErr = resolveErr
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
	for _, fn := range fns {
		fn(next)
	}
	return true
}

func (s *Store) nextGenerationLocked() uint64 {
	s.gen++
	return s.gen
}
