// Package guard はセッション状態に基づいてページ表示の可否を判定する。
//
// 判定は入力だけに依存する純粋関数で、状態が変わるたびに呼び直す。結果はキャッシュしない。
package guard

import (
	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/session"
)

// Decision はガードの判定結果。
type Decision string

const (
	// Permit は要求されたページをそのまま表示する。
	Permit Decision = "permit"
	// Prompt は保護されたページの代わりにサインインを促す。
	Prompt Decision = "prompt"
	// Wait はセッション解決中のため待機表示を出す。内容は一切表示しない。
	Wait Decision = "wait"
	// Denied は管理者ゲートで拒否されたことを表す。サインインの案内は出さない。
	Denied Decision = "denied"
)

// Evaluate は認証要否とセッション状態から判定を返す。
func Evaluate(requireAuth bool, state session.State) Decision {
	if state.Loading {
		return Wait
	}
	if requireAuth && !state.Authenticated() {
		return Prompt
	}
	return Permit
}

// EvaluateAdmin は管理者ゲートの判定を返す。
// 管理者であるには有効なセッションと管理者フラグの両方が必要。
func EvaluateAdmin(state session.State) Decision {
	if state.Loading {
		return Wait
	}
	if !state.Authenticated() || !state.IsAdmin {
		return Denied
	}
	return Permit
}

// PromptOptions はサインイン案内で提示する遷移先を返す。
func PromptOptions() []model.PageID {
	return []model.PageID{model.PageLogin, model.PageHome}
}
