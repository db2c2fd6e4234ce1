// Package model はドメインモデルとAPIの入出力スキーマを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, upstream, storage, system
	Action   string // ユーザー向け対処方法
	Detail   string // 下位レイヤーのエラー内容（任意）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeUpstreamMalformed   = "UPSTREAM_MALFORMED"
	ErrCodeUpstreamUnexpected  = "UPSTREAM_UNEXPECTED"
	ErrCodePostureUnavailable  = "POSTURE_UNAVAILABLE"
	ErrCodeDatabase            = "DATABASE_ERROR"
	ErrCodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
)

// NewInvalidRequestError はJSONとして解釈できないリクエストボディのエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "Request body could not be parsed.",
		Category: "validation",
		Action:   "Send a well-formed JSON body.",
		Detail:   reason,
	}
}

// NewValidationError はフィールド検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  "Request validation failed.",
		Category: "validation",
		Action:   "Check the field types and required fields.",
		Detail:   reason,
	}
}

// NewUpstreamUnavailableError は姿勢スコアAPIへの接続失敗・非成功ステータスのエラーを生成する。
func NewUpstreamUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  "Posture API is unavailable.",
		Category: "upstream",
		Action:   "Please wait and retry later.",
		Detail:   fmt.Sprintf("Error connecting to posture API: %s", reason),
	}
}

// NewUpstreamMalformedError は姿勢スコアAPIのレスポンス不備のエラーを生成する。
func NewUpstreamMalformedError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamMalformed,
		Message:  "Posture API returned an unexpected response.",
		Category: "upstream",
		Action:   "Please contact the administrator.",
		Detail:   "Posture API response malformed.",
	}
}

// NewUpstreamUnexpectedError は分類できない上流エラーを生成する。
func NewUpstreamUnexpectedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnexpected,
		Message:  "Posture check failed.",
		Category: "upstream",
		Action:   "Please wait and retry later.",
		Detail:   fmt.Sprintf("An unexpected error occurred: %s", reason),
	}
}

// NewPostureUnavailableError はスコアAPIが利用可能な結果を返さなかった場合のエラーを生成する。
func NewPostureUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodePostureUnavailable,
		Message:  "No posture result for the image.",
		Category: "validation",
		Action:   "Try another image.",
		Detail:   "Invalid image or posture API error.",
	}
}

// NewDatabaseError は永続化失敗のエラーを生成する。
func NewDatabaseError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeDatabase,
		Message:  "Failed to access the database.",
		Category: "storage",
		Action:   "Please wait and retry later.",
		Detail:   fmt.Sprintf("Database error: %s", reason),
	}
}

// NewRateLimitError はレート制限超過のエラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error.",
		Category: "system",
		Action:   "Please wait and retry later.",
	}
}

// NewNotFoundError は存在しないパスへのリクエストのエラーを生成する。
func NewNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "Not found.",
		Category: "validation",
		Action:   "Check the request path.",
	}
}

// NewMethodNotAllowedError は許可されていないHTTPメソッドのエラーを生成する。
func NewMethodNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  "Method not allowed.",
		Category: "validation",
		Action:   "Check the HTTP method.",
	}
}
