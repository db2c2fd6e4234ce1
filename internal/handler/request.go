package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/drumposture/internal/model"
)

// maxRequestBodySize はリクエストボディの上限（1MiB）。
const maxRequestBodySize = 1 << 20

// ページネーションの既定値。
const (
	defaultSkip  = 0
	defaultLimit = 10
)

// validate はリクエストスキーマの検証器。エラーのフィールド名はJSON名で報告する。
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSONBody はリクエストボディをdstにデコードし、構造体タグで検証する。
// JSONとして解釈できない場合はINVALID_REQUEST、型不一致や必須項目の欠落はVALIDATION_FAILEDを返す。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) *model.APIError {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return classifyDecodeError(err)
	}

	if err := validate.Struct(dst); err != nil {
		return model.NewValidationError(describeValidationError(err))
	}
	return nil
}

// classifyDecodeError はデコードエラーを構文エラーと値の検証エラーに分類する。
func classifyDecodeError(err error) *model.APIError {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.Is(err, io.EOF):
		return model.NewInvalidRequestError("request body is empty")
	case errors.Is(err, io.ErrUnexpectedEOF):
		return model.NewInvalidRequestError("request body is truncated")
	case errors.As(err, &syntaxErr):
		return model.NewInvalidRequestError(fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset))
	case errors.As(err, &maxBytesErr):
		return model.NewInvalidRequestError(fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit))
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			return model.NewValidationError(fmt.Sprintf("expected a JSON object, got %s", typeErr.Value))
		}
		return model.NewValidationError(fmt.Sprintf("%s must be %s, got %s", typeErr.Field, describeKind(typeErr.Type), typeErr.Value))
	default:
		// DateTimeなど独自型のUnmarshalJSONが返すエラー
		return model.NewValidationError(err.Error())
	}
}

// describeKind はGoの型をAPI利用者向けの型名に変換する。
func describeKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.String:
		return "a string"
	default:
		return t.String()
	}
}

// describeValidationError はvalidatorのエラーをフィールドごとのメッセージに変換する。
func describeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// parsePagination はskip, limitクエリパラメータを解析する。
// 値の範囲は検証せず、そのままストレージ層に渡す。
func parsePagination(r *http.Request) (skip, limit int, apiErr *model.APIError) {
	q := r.URL.Query()

	skip, apiErr = parseIntQuery(q.Get("skip"), "skip", defaultSkip)
	if apiErr != nil {
		return 0, 0, apiErr
	}
	limit, apiErr = parseIntQuery(q.Get("limit"), "limit", defaultLimit)
	if apiErr != nil {
		return 0, 0, apiErr
	}
	return skip, limit, nil
}

func parseIntQuery(raw, name string, def int) (int, *model.APIError) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, model.NewValidationError(fmt.Sprintf("%s must be an integer", name))
	}
	return v, nil
}
