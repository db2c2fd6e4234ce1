package scorer

import "fmt"

// Kind は姿勢スコアAPI呼び出しの失敗種別。
type Kind int

const (
	// KindUnavailable は接続失敗・タイムアウト・非2xxステータスを表す。
	KindUnavailable Kind = iota + 1
	// KindMalformed はレスポンスに必要なフィールドが欠けている、または型が不正であることを表す。
	KindMalformed
	// KindEmpty は2xxだが本文が空またはnullで、利用できる結果がないことを表す。
	KindEmpty
	// KindUnexpected はその他の想定外の失敗を表す。
	KindUnexpected
)

// String はメトリクスのラベルやログに使う種別名を返す。
func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindMalformed:
		return "malformed"
	case KindEmpty:
		return "empty"
	case KindUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Error は姿勢スコアAPI呼び出しの失敗を表す。
type Error struct {
	Kind Kind
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("posture API %s", e.Kind)
	}
	return fmt.Sprintf("posture API %s: %v", e.Kind, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
