// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mdobak/go-xerrors"

	"github.com/hitoshi/ministry/internal/middleware"
	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/session"
)

// maxBodyBytes はJSONリクエストボディの上限。
const maxBodyBytes = 1_048_576

// readJSON はリクエストボディを1つのJSON値としてdstに読み込む。
// 未知のフィールドはエラーにする。
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var (
			syntaxError        *json.SyntaxError
			unmarshalTypeError *json.UnmarshalTypeError
			maxBytesError      *http.MaxBytesError
		)

		switch {
		case errors.As(err, &syntaxError):
			return xerrors.Newf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return xerrors.Newf("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return xerrors.Newf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return xerrors.Newf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return xerrors.Newf("body must not be empty")
		case errors.As(err, &maxBytesError):
			return xerrors.Newf("body must not be larger than %d bytes", maxBodyBytes)
		default:
			return xerrors.Newf("error decoding JSON: %w", err)
		}
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return xerrors.Newf("body must contain only a single JSON value")
	}
	return nil
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeBadRequest はリクエストボディの読み込みエラーを400で書き込む。
func writeBadRequest(w http.ResponseWriter, err error) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST_BODY",
		Message:  err.Error(),
		Category: "validation",
		Action:   "Check the request format and try again.",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr    *model.ValidationError
		authErr *model.AuthenticationError
		apiErr  *model.APIError
		dsErr   *model.DataServiceError
	)

	switch {
	case errors.As(err, &vErr):
		middleware.WriteValidationErrorResponse(w, vErr)
	case errors.As(err, &authErr):
		middleware.WriteAuthenticationErrorResponse(w, authErr)
	case errors.As(err, &apiErr):
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
	case errors.As(err, &dsErr):
		slog.ErrorContext(r.Context(), "data service error",
			slog.String("op", dsErr.Op),
			slog.String("path", r.URL.Path),
			slog.String("error", dsErr.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewServiceUnavailableError())
	default:
		// 想定外のエラーは内部サーバーエラーとして扱う
		slog.ErrorContext(r.Context(), "internal server error",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
	}
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodePostNotFound, model.ErrCodeCommentNotFound,
		model.ErrCodeTestimonyNotFound, model.ErrCodeProfileNotFound:
		return http.StatusNotFound
	case model.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeAccessDenied:
		return http.StatusForbidden
	case model.ErrCodeStorageDisabled, model.ErrCodeDataService:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// currentState はリクエストのセッション状態を返す。
// ストアがない場合は未認証として扱う。
func currentState(r *http.Request) session.State {
	store, err := middleware.StoreFromContext(r.Context())
	if err != nil {
		return session.State{}
	}
	return store.State()
}
