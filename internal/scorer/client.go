// Package scorer は外部の姿勢スコアAPIとの連携を提供する。
// 画像URLを1回だけ送信し、レスポンスを姿勢チェック結果の入力スキーマに変換する。
package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hitoshi/drumposture/internal/model"
	"github.com/hitoshi/drumposture/internal/security"
)

const (
	// maxResponseSize はレスポンスボディの読み取り上限（1MiB）。
	maxResponseSize = 1 << 20
	// maxErrorBodySize は非2xxレスポンスから読み取る本文の上限。
	maxErrorBodySize = 4 << 10
	// errorExcerptRunes はエラーメッセージに含める本文の最大文字数。
	errorExcerptRunes = 200
)

// ResultRecorder は呼び出し結果を記録するインターフェース。
// metrics.Collectorが実装する。
type ResultRecorder interface {
	RecordScorerResult(result string, duration time.Duration)
}

// Client は姿勢スコアAPIのクライアント。
// リトライやサーキットブレーカーは持たず、タイムアウトはhttpClientの設定に従う。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	recorder   ResultRecorder
	sanitizer  *security.ErrorBodySanitizer
}

// NewClient はClientの新しいインスタンスを生成する。
// recorderがnilの場合は結果を記録しない。
func NewClient(httpClient *http.Client, endpoint string, logger *slog.Logger, recorder ResultRecorder) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		recorder:   recorder,
		sanitizer:  security.NewErrorBodySanitizer(),
	}
}

// scoreRequest は姿勢スコアAPIへのリクエストボディ。
type scoreRequest struct {
	ImageURL string `json:"image_url"`
}

// Score は画像URLを姿勢スコアAPIに送信し、結果を返す。
// 失敗時は必ず*Errorを返す。
func (c *Client) Score(ctx context.Context, imageURL string) (*model.PostureRecordIn, error) {
	start := time.Now()
	record, err := c.score(ctx, imageURL)

	result := "success"
	if err != nil {
		var scoreErr *Error
		if errors.As(err, &scoreErr) {
			result = scoreErr.Kind.String()
		}
		c.logger.Error("姿勢スコアAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("result", result),
		)
	}
	if c.recorder != nil {
		c.recorder.RecordScorerResult(result, time.Since(start))
	}

	return record, err
}

func (c *Client) score(ctx context.Context, imageURL string) (*model.PostureRecordIn, error) {
	if c.endpoint == "" {
		return nil, newError(KindUnavailable, errors.New("posture API endpoint is not configured"))
	}

	payload, err := json.Marshal(scoreRequest{ImageURL: imageURL})
	if err != nil {
		return nil, newError(KindUnexpected, fmt.Errorf("リクエストボディの生成に失敗しました: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, newError(KindUnexpected, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "drumposture/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newError(KindUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newError(KindUnavailable, c.statusError(resp))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, newError(KindUnavailable, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err))
	}

	return parseScoreResponse(body)
}

// statusError は非2xxレスポンスのステータスと本文の抜粋からエラーを生成する。
func (c *Client) statusError(resp *http.Response) error {
	status := fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if excerpt := c.sanitizer.Excerpt(body, errorExcerptRunes); excerpt != "" {
		return fmt.Errorf("%s: %s", status, excerpt)
	}
	return errors.New(status)
}

// parseScoreResponse はレスポンスボディを入力スキーマに変換する。
// posture_score（数値）、feedback（文字列）、timestamp（日時）が必須。
func parseScoreResponse(body []byte) (*model.PostureRecordIn, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, newError(KindEmpty, errors.New("empty response body"))
	}

	if !gjson.ValidBytes(trimmed) {
		return nil, newError(KindMalformed, errors.New("response is not valid JSON"))
	}

	parsed := gjson.ParseBytes(trimmed)
	if !parsed.IsObject() {
		return nil, newError(KindMalformed, errors.New("response is not a JSON object"))
	}

	score := parsed.Get("posture_score")
	if score.Type != gjson.Number {
		return nil, newError(KindMalformed, errors.New("posture_score is missing or not a number"))
	}
	postureScore := score.Float()
	if math.IsInf(postureScore, 0) || math.IsNaN(postureScore) {
		return nil, newError(KindMalformed, fmt.Errorf("posture_score %s is out of range", score.Raw))
	}

	feedback := parsed.Get("feedback")
	if feedback.Type != gjson.String {
		return nil, newError(KindMalformed, errors.New("feedback is missing or not a string"))
	}

	ts := parsed.Get("timestamp")
	if ts.Type != gjson.String {
		return nil, newError(KindMalformed, errors.New("timestamp is missing or not a string"))
	}
	timestamp, err := model.ParseDateTime(ts.String())
	if err != nil {
		return nil, newError(KindMalformed, err)
	}

	return &model.PostureRecordIn{
		PostureScore: postureScore,
		Feedback:     feedback.String(),
		Timestamp:    timestamp,
	}, nil
}
