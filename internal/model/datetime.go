package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateTimeLayout はAPIレスポンスで使用する日時フォーマット。
// タイムゾーンを持たないUTCのISO 8601表記で、小数秒は末尾のゼロを省略する。
const DateTimeLayout = "2006-01-02T15:04:05.999999"

// naiveLayouts はタイムゾーン指定のない入力として受け付けるフォーマット。
// タイムゾーンなしの値はUTCとして解釈する。
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// DateTime はJSON入出力用の日時型。
// RFC 3339 とタイムゾーンなしのISO 8601の両方を受け付け、常にUTCで保持する。
// オフセット付きの入力は同じ時刻のUTCに変換され、オフセット自体は保持しない。
type DateTime struct {
	time.Time
}

// NewDateTime はtime.TimeをUTCに正規化したDateTimeを返す。
func NewDateTime(t time.Time) DateTime {
	return DateTime{Time: t.UTC()}
}

// ParseDateTime は文字列を日時として解釈する。
func ParseDateTime(s string) (DateTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DateTime{}, fmt.Errorf("empty date-time")
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NewDateTime(t), nil
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return NewDateTime(t), nil
		}
	}

	return DateTime{}, fmt.Errorf("invalid date-time: %q", s)
}

// String はDateTimeLayout形式の文字列を返す。
func (d DateTime) String() string {
	return d.UTC().Format(DateTimeLayout)
}

// MarshalJSON はjson.Marshalerを実装する。
func (d DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
// nullはゼロ値として扱い、デフォルト値の補完は呼び出し側に任せる。
func (d *DateTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = DateTime{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date-time must be a string, got %s", data)
	}

	parsed, err := ParseDateTime(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
