package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/drumposture/internal/metrics"
	"github.com/hitoshi/drumposture/internal/model"
	"github.com/hitoshi/drumposture/internal/repository"
)

// RecordCounter は保存件数を記録するインターフェース。
// metrics.Collectorが実装する。
type RecordCounter interface {
	RecordRecordCreated(table string)
}

// nopRecordCounter は何も記録しないRecordCounter。
type nopRecordCounter struct{}

func (nopRecordCounter) RecordRecordCreated(string) {}

// DrummingHandler はドラム練習セッションのHTTPハンドラー。
type DrummingHandler struct {
	repo    repository.DrummingSessionRepository
	counter RecordCounter
	logger  *slog.Logger
}

// NewDrummingHandler はDrummingHandlerを生成する。
// counterがnilの場合は保存件数を記録しない。
func NewDrummingHandler(repo repository.DrummingSessionRepository, counter RecordCounter, logger *slog.Logger) *DrummingHandler {
	if counter == nil {
		counter = nopRecordCounter{}
	}
	return &DrummingHandler{
		repo:    repo,
		counter: counter,
		logger:  logger,
	}
}

// CreateSession はドラム練習セッションを保存する。
// notesは受け取った文字列をそのまま保存する。
// POST /drumming_data/
func (h *DrummingHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var in model.DrummingSessionIn
	if apiErr := decodeJSONBody(w, r, &in); apiErr != nil {
		handleServiceError(w, r, h.logger, apiErr)
		return
	}

	session := &model.DrummingSession{
		DurationMinutes: *in.DurationMinutes,
		TempoBPM:        *in.TempoBPM,
		Notes:           in.Notes,
	}
	if in.SessionDate != nil {
		session.SessionDate = *in.SessionDate
	}

	created, err := h.repo.Create(r.Context(), session)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	h.counter.RecordRecordCreated(metrics.TableDrummingData)

	writeJSON(w, r, h.logger, http.StatusCreated, model.ToDrummingSessionOut(created))
}

// ListSessions はドラム練習セッションをID順にskip/limitで取得する。
// GET /drumming_data/
func (h *DrummingHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	skip, limit, apiErr := parsePagination(r)
	if apiErr != nil {
		handleServiceError(w, r, h.logger, apiErr)
		return
	}

	sessions, err := h.repo.List(r.Context(), skip, limit)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	out := make([]model.DrummingSessionOut, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, model.ToDrummingSessionOut(s))
	}
	writeJSON(w, r, h.logger, http.StatusOK, out)
}
