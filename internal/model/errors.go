// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"sort"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, content, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed  = "VALIDATION_FAILED"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeAccessDenied      = "ACCESS_DENIED"
	ErrCodeDataService       = "DATA_SERVICE_ERROR"
	ErrCodePostNotFound      = "POST_NOT_FOUND"
	ErrCodeCommentNotFound   = "COMMENT_NOT_FOUND"
	ErrCodeTestimonyNotFound = "TESTIMONY_NOT_FOUND"
	ErrCodeProfileNotFound   = "PROFILE_NOT_FOUND"
	ErrCodeStorageDisabled   = "STORAGE_DISABLED"
)

// ValidationError はフィールド単位の入力エラーを表す。
// ネットワーク呼び出しの前に検出され、ユーザーの修正で回復できる。
type ValidationError struct {
	Fields map[string]string // フィールド名 -> メッセージ
}

// NewValidationError は単一フィールドのValidationErrorを生成する。
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Error はerrorインターフェースを実装する。
// フィールド名でソートして決定的な文字列を返す。
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AuthenticationError は資格情報の不一致やセッション破棄の失敗を表す。
// 自動リトライは行わず、メッセージをそのままユーザーに表示する。
type AuthenticationError struct {
	Message string
	Err     error
}

// NewAuthenticationError はAuthenticationErrorを生成する。
func NewAuthenticationError(message string, err error) *AuthenticationError {
	return &AuthenticationError{Message: message, Err: err}
}

// Error はerrorインターフェースを実装する。
func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Message, e.Err)
	}
	return "authentication failed: " + e.Message
}

// Unwrap は原因エラーを返す。
func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// DataServiceError はデータAPI（データベース）の失敗を表す。
// ログに記録し、ユーザーには一般的な再試行メッセージのみを返す。
type DataServiceError struct {
	Op  string
	Err error
}

// NewDataServiceError はDataServiceErrorを生成する。
func NewDataServiceError(op string, err error) *DataServiceError {
	return &DataServiceError{Op: op, Err: err}
}

// Error はerrorインターフェースを実装する。
func (e *DataServiceError) Error() string {
	return fmt.Sprintf("data service: %s: %v", e.Op, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *DataServiceError) Unwrap() error {
	return e.Err
}

// NewPostNotFoundError はブログ記事未検出エラーを生成する。
func NewPostNotFoundError(ref string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("Post not found: %s", ref),
		Category: "content",
		Action:   "Return to the blog and choose another post.",
	}
}

// NewCommentNotFoundError はコメント未検出エラーを生成する。
func NewCommentNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("Comment not found: %s", id),
		Category: "content",
		Action:   "Reload the moderation list.",
	}
}

// NewTestimonyNotFoundError は証し未検出エラーを生成する。
func NewTestimonyNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeTestimonyNotFound,
		Message:  fmt.Sprintf("Testimony not found: %s", id),
		Category: "content",
		Action:   "Reload the moderation list.",
	}
}

// NewProfileNotFoundError はプロフィール未検出エラーを生成する。
func NewProfileNotFoundError(ref string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("Profile not found: %s", ref),
		Category: "auth",
		Action:   "The user must sign in at least once before being promoted.",
	}
}

// NewStorageDisabledError は画像ストレージ未設定エラーを生成する。
func NewStorageDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeStorageDisabled,
		Message:  "Image uploads are not configured.",
		Category: "system",
		Action:   "Paste an external image URL instead.",
	}
}

// NewAccessDeniedError は管理者ゲートでの拒否エラーを生成する。
func NewAccessDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  "You do not have permission to access this page.",
		Category: "auth",
		Action:   "Contact a site administrator if you need access.",
	}
}

// NewServiceUnavailableError はデータサービス障害時の一般的なエラーを生成する。
// 原因の詳細はログにのみ記録する。
func NewServiceUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeDataService,
		Message:  "The service is temporarily unavailable.",
		Category: "system",
		Action:   "Please try again in a moment.",
	}
}
