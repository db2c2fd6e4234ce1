package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/drumposture/internal/middleware"
	"github.com/hitoshi/drumposture/internal/model"
	"github.com/hitoshi/drumposture/internal/repository"
	"github.com/hitoshi/drumposture/internal/scorer"
)

// writeJSON はステータスコードとJSONボディを書き込む。
// エンコードはヘッダー送信前に行い、失敗した場合は500の統一エラーを返す。
func writeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, statusCode int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		handleServiceError(w, r, logger, fmt.Errorf("レスポンスのエンコードに失敗しました: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(append(body, '\n'))
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError は下位レイヤーから返されたエラーを適切なHTTPステータスコードに変換して書き込む。
// 5xxはerror、4xxはwarnレベルでログに記録する。
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	apiErr := toAPIError(err)
	statusCode := mapAPIErrorToHTTPStatus(apiErr)

	level := slog.LevelWarn
	if statusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.LogAttrs(r.Context(), level, "request failed",
		slog.String("code", apiErr.Code),
		slog.String("error", err.Error()),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)

	writeAPIErrorResponse(w, statusCode, apiErr)
}

// toAPIError はエラーを統一エラー形式に変換する。
func toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var scoreErr *scorer.Error
	if errors.As(err, &scoreErr) {
		reason := scoreErr.Error()
		if scoreErr.Err != nil {
			reason = scoreErr.Err.Error()
		}
		switch scoreErr.Kind {
		case scorer.KindUnavailable:
			return model.NewUpstreamUnavailableError(reason)
		case scorer.KindMalformed:
			return model.NewUpstreamMalformedError()
		case scorer.KindEmpty:
			return model.NewPostureUnavailableError()
		default:
			return model.NewUpstreamUnexpectedError(reason)
		}
	}

	var storageErr *repository.StorageError
	if errors.As(err, &storageErr) {
		reason := storageErr.Error()
		if storageErr.Err != nil {
			reason = storageErr.Err.Error()
		}
		return model.NewDatabaseError(reason)
	}

	return model.NewInternalError()
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest, model.ErrCodePostureUnavailable:
		return http.StatusBadRequest
	case model.ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case model.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
