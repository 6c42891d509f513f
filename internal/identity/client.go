// Package identity は認証サービス（Identity API）のクライアントを提供する。
//
// 既定はPostgreSQLとbcryptによるローカルプロバイダーで、
// 設定によりSupabase GoTrueのRESTクライアントに切り替えられる。
package identity

import (
	"context"

	"github.com/hitoshi/ministry/internal/model"
)

// Attributes はサインアップ時に認証サービスへ渡す追加属性。
type Attributes struct {
	FullName string
}

// SignUpResult はサインアップの結果。
// メール確認待ちの場合Sessionはnilになる。
type SignUpResult struct {
	Account *model.Account
	Session *model.Session
}

// EventType はセッション変化イベントの種別。
type EventType string

const (
	EventSignedIn       EventType = "signed_in"
	EventSignedOut      EventType = "signed_out"
	EventTokenRefreshed EventType = "token_refreshed"
)

// Event はセッション変化の通知。Sessionはセッションが有効な場合のみ非nil。
type Event struct {
	Type      EventType
	SessionID string
	Session   *model.Session
}

// Client は認証サービスのインターフェース。
type Client interface {
	// SignUp はアカウントを作成する。
	SignUp(ctx context.Context, email, password string, attrs Attributes) (*SignUpResult, error)
	// SignIn はメールアドレスとパスワードで認証しセッションを発行する。
	// 資格情報の不一致・メール未確認はmodel.AuthenticationErrorを返す。
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	// SignOut はセッションを破棄する。破棄に失敗した場合はmodel.AuthenticationErrorを返す。
	SignOut(ctx context.Context, sessionID string) error
	// GetSession は有効なセッションを返す。存在しないか期限切れの場合はnil, nilを返す。
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
	// OnSessionChange はセッション変化の購読を登録し、解除関数を返す。
	OnSessionChange(fn func(Event)) (unsubscribe func())
	// ResendVerification は確認メールを再送する。
	ResendVerification(ctx context.Context, email string) error
}
