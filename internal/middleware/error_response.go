package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/ministry/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。入力エラーの場合はFieldsにフィールド別のメッセージを入れる。
type ErrorResponseBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Category string            `json:"category"`
	Action   string            `json:"action"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeErrorBody(w, statusCode, ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteValidationErrorResponse は入力エラーを400で書き込む。
func WriteValidationErrorResponse(w http.ResponseWriter, vErr *model.ValidationError) {
	writeErrorBody(w, http.StatusBadRequest, ErrorResponseBody{
		Code:     model.ErrCodeValidationFailed,
		Message:  "Please correct the highlighted fields.",
		Category: "validation",
		Action:   "Fix the input and submit again.",
		Fields:   vErr.Fields,
	})
}

// WriteAuthenticationErrorResponse は認証エラーを401で書き込む。
// メッセージは認証サービスのものをそのまま表示する。
func WriteAuthenticationErrorResponse(w http.ResponseWriter, authErr *model.AuthenticationError) {
	writeErrorBody(w, http.StatusUnauthorized, ErrorResponseBody{
		Code:     model.ErrCodeUnauthorized,
		Message:  authErr.Message,
		Category: "auth",
		Action:   "Check your email and password and try again.",
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "Something went wrong.",
		Category: "system",
		Action:   "Please try again in a moment.",
	})
}

func writeErrorBody(w http.ResponseWriter, statusCode int, body ErrorResponseBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
