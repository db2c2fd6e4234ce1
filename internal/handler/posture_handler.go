package handler

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/hitoshi/drumposture/internal/metrics"
	"github.com/hitoshi/drumposture/internal/model"
	"github.com/hitoshi/drumposture/internal/repository"
	"github.com/hitoshi/drumposture/internal/security"
)

// PostureScorer は画像URLから姿勢スコアを取得するインターフェース。
// scorer.Clientが実装する。
type PostureScorer interface {
	Score(ctx context.Context, imageURL string) (*model.PostureRecordIn, error)
}

// ダミーAPIが生成する値の範囲。
const (
	dummyMaxScore = 10.0
	dummyMaxID    = 100
)

// PostureHandler は姿勢チェックのHTTPハンドラー。
type PostureHandler struct {
	repo         repository.PostureRecordRepository
	scorer       PostureScorer
	counter      RecordCounter
	logger       *slog.Logger
	blockPrivate bool

	now       func() time.Time
	randScore func() float64
	randID    func() int64
}

// NewPostureHandler はPostureHandlerを生成する。
// blockPrivateがtrueの場合、http(s)以外の画像参照と内部アドレスを指すURLを拒否する。
func NewPostureHandler(repo repository.PostureRecordRepository, scorer PostureScorer, counter RecordCounter, logger *slog.Logger, blockPrivate bool) *PostureHandler {
	if counter == nil {
		counter = nopRecordCounter{}
	}
	return &PostureHandler{
		repo:         repo,
		scorer:       scorer,
		counter:      counter,
		logger:       logger,
		blockPrivate: blockPrivate,
		now:          time.Now,
		randScore:    func() float64 { return rand.Float64() * dummyMaxScore },
		randID:       func() int64 { return rand.Int64N(dummyMaxID) + 1 },
	}
}

// postureCheckRequest は姿勢チェックのリクエストボディ。
type postureCheckRequest struct {
	ImageURL string `json:"image_url"`
}

// CheckPosture は画像URLを姿勢スコアAPIに送信し、結果を保存する。
// image_urlはクエリパラメータ、なければJSONボディから取得する。
// フィードバックはスコアから導出し、スコアAPIが返した値は使用しない。
// POST /posture_check/
func (h *PostureHandler) CheckPosture(w http.ResponseWriter, r *http.Request) {
	imageURL, apiErr := h.imageURLFromRequest(w, r)
	if apiErr != nil {
		handleServiceError(w, r, h.logger, apiErr)
		return
	}

	result, err := h.scorer.Score(r.Context(), imageURL)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	created, err := h.repo.Create(r.Context(), &model.PostureRecord{
		PostureScore: result.PostureScore,
		Feedback:     model.FeedbackForScore(result.PostureScore),
		Timestamp:    result.Timestamp,
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	h.counter.RecordRecordCreated(metrics.TablePostureData)

	writeJSON(w, r, h.logger, http.StatusCreated, model.ToPostureRecordOut(created))
}

// imageURLFromRequest はリクエストから画像参照を取り出して検証する。
func (h *PostureHandler) imageURLFromRequest(w http.ResponseWriter, r *http.Request) (string, *model.APIError) {
	imageURL := r.URL.Query().Get("image_url")

	if imageURL == "" && r.ContentLength != 0 {
		var req postureCheckRequest
		if apiErr := decodeJSONBody(w, r, &req); apiErr != nil {
			return "", apiErr
		}
		imageURL = req.ImageURL
	}

	if err := security.ValidateImageURL(imageURL, h.blockPrivate); err != nil {
		return "", model.NewValidationError(err.Error())
	}
	return imageURL, nil
}

// ListPostureRecords は姿勢チェック結果をID順にskip/limitで取得する。
// user_idは受け付けるが、記録にユーザーの概念がないため絞り込みには使用しない。
// GET /posture_data/
func (h *PostureHandler) ListPostureRecords(w http.ResponseWriter, r *http.Request) {
	skip, limit, apiErr := parsePagination(r)
	if apiErr != nil {
		handleServiceError(w, r, h.logger, apiErr)
		return
	}

	if userID := r.URL.Query().Get("user_id"); userID != "" {
		h.logger.Debug("user_id filter is not supported; ignoring",
			slog.String("user_id", userID),
		)
	}

	records, err := h.repo.List(r.Context(), skip, limit)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	out := make([]model.PostureRecordOut, 0, len(records))
	for _, rec := range records {
		out = append(out, model.ToPostureRecordOut(rec))
	}
	writeJSON(w, r, h.logger, http.StatusOK, out)
}

// Summary は保存済み姿勢チェック結果の集計を返す。
// GET /posture_summary/
func (h *PostureHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.repo.Summary(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, h.logger, http.StatusOK, summary)
}

// DummyPostureAPI は擬似乱数の姿勢スコアを返すテスト用エンドポイント。
// 入力は読まず、結果も保存しない。閾値ちょうどのスコアは悪い姿勢と判定する。
// POST /dummy_posture_api/
func (h *PostureHandler) DummyPostureAPI(w http.ResponseWriter, r *http.Request) {
	score := h.randScore()

	writeJSON(w, r, h.logger, http.StatusOK, model.PostureRecordOut{
		ID:           h.randID(),
		PostureScore: score,
		Feedback:     model.DummyFeedbackForScore(score),
		Timestamp:    model.NewDateTime(h.now()),
	})
}
