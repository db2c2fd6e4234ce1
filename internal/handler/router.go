package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/drumposture/internal/metrics"
	"github.com/hitoshi/drumposture/internal/middleware"
	"github.com/hitoshi/drumposture/internal/model"
	"github.com/hitoshi/drumposture/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter
	Logger             *slog.Logger

	// メトリクス（nilの場合は記録・公開しない）
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer

	// ストレージ
	DrummingRepo repository.DrummingSessionRepository
	PostureRepo  repository.PostureRecordRepository
	Pinger       Pinger

	// 姿勢スコアAPI
	Scorer                PostureScorer
	BlockPrivateImageURLs bool
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → Metrics → CORS → RateLimit(General)
//
// POST /posture_check/ には姿勢チェック専用のレート制限を追加する。
// /health と /metrics はレート制限の対象外。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	var counter RecordCounter
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
		counter = deps.Metrics
	}

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewNotFoundError())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError())
	})

	drummingHandler := NewDrummingHandler(deps.DrummingRepo, counter, deps.Logger)
	postureHandler := NewPostureHandler(deps.PostureRepo, deps.Scorer, counter, deps.Logger, deps.BlockPrivateImageURLs)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.Pinger, deps.Logger))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- API ---
	// ミドルウェアスタック: RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ドラム練習セッション
		handleBoth(r, http.MethodPost, "/drumming_data/", drummingHandler.CreateSession)
		handleBoth(r, http.MethodGet, "/drumming_data/", drummingHandler.ListSessions)

		// 姿勢チェック（専用レート制限を追加）
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.PostureCheckMiddleware())
			handleBoth(r, http.MethodPost, "/posture_check/", postureHandler.CheckPosture)
		})
		handleBoth(r, http.MethodGet, "/posture_data/", postureHandler.ListPostureRecords)
		handleBoth(r, http.MethodGet, "/posture_summary/", postureHandler.Summary)

		// テスト用ダミー姿勢スコアAPI
		handleBoth(r, http.MethodPost, "/dummy_posture_api/", postureHandler.DummyPostureAPI)
	})

	return r
}

// handleBoth は末尾スラッシュあり・なしの両方のパスにハンドラーを登録する。
func handleBoth(r chi.Router, method, pattern string, h http.HandlerFunc) {
	r.MethodFunc(method, pattern, h)
	r.MethodFunc(method, strings.TrimSuffix(pattern, "/"), h)
}
