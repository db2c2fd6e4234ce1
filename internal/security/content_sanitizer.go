package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// ErrorBodySanitizer は上流APIのエラーレスポンス本文をログ向けのプレーンテキストに変換する。
// プロキシやロードバランサーが返すHTMLのエラーページを想定する。
type ErrorBodySanitizer struct {
	policy *bluemonday.Policy
}

// NewErrorBodySanitizer はErrorBodySanitizerの新しいインスタンスを生成する。
// bluemondayのStrictPolicyを使用し、全てのタグを除去する。
// script, styleタグは中身ごと除去される。
func NewErrorBodySanitizer() *ErrorBodySanitizer {
	return &ErrorBodySanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// maxSanitizePasses は実体参照の復元でタグが再出現した場合の再処理回数の上限。
const maxSanitizePasses = 4

// Sanitize はテキストからタグを除去した文字列を返す。
// bluemondayがエスケープした文字実体参照は元の文字に戻す。
func (s *ErrorBodySanitizer) Sanitize(text string) string {
	for i := 0; i < maxSanitizePasses && strings.ContainsRune(text, '<'); i++ {
		cleaned := html.UnescapeString(s.policy.Sanitize(text))
		if cleaned == text {
			break
		}
		text = cleaned
	}
	return text
}

// Excerpt は本文をプレーンテキスト化し、空白を詰めてmaxRunes文字以内に切り詰める。
// 切り詰めた場合は末尾に"..."を付ける。
func (s *ErrorBodySanitizer) Excerpt(body []byte, maxRunes int) string {
	text := strings.ToValidUTF8(string(body), "")
	text = strings.Join(strings.Fields(s.Sanitize(text)), " ")
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxRunes]) + "..."
}
