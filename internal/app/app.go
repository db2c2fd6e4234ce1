// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/drumposture/internal/config"
	"github.com/hitoshi/drumposture/internal/database"
	"github.com/hitoshi/drumposture/internal/handler"
	"github.com/hitoshi/drumposture/internal/metrics"
	"github.com/hitoshi/drumposture/internal/middleware"
	"github.com/hitoshi/drumposture/internal/repository"
	"github.com/hitoshi/drumposture/internal/scorer"
	"github.com/hitoshi/drumposture/internal/security"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// application はAPIサーバーの依存関係一式を保持する。
type application struct {
	handler     http.Handler
	db          *sqlx.DB
	rateLimiter *middleware.RateLimiter
}

// Close はアプリケーションが保持するリソースを解放する。
func (a *application) Close() error {
	a.rateLimiter.Stop()
	return a.db.Close()
}

// newApplication はマイグレーションを適用してDB接続を開き、全依存関係をワイヤリングする。
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	// 1. スキーマの作成
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	// 2. DB接続
	db, err := database.Open(cfg.DatabaseURL, database.Options{MaxOpenConns: cfg.DBMaxOpenConns})
	if err != nil {
		return nil, err
	}
	pinger := database.NewPinger(db)
	if err := pinger.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	// 3. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 4. 姿勢スコアAPIクライアント
	if cfg.PostureAPIURL == "" {
		logger.Warn("POSTURE_API_URL is not set; posture checks will fail until it is configured")
	}
	httpClient, err := security.NewScorerHTTPClient(cfg.PostureAPIURL, cfg.PostureAPITimeout, cfg.PostureAPIRestrictPrivate)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to build posture API client: %w", err)
	}
	postureScorer := scorer.NewClient(httpClient, cfg.PostureAPIURL, logger, collector)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitPostureCheck),
		logger,
	)

	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        rateLimiter,
		Logger:             logger,

		Metrics:  collector,
		Gatherer: reg,

		DrummingRepo: repository.NewSQLDrummingSessionRepo(db),
		PostureRepo:  repository.NewSQLPostureRecordRepo(db),
		Pinger:       pinger,

		Scorer:                postureScorer,
		BlockPrivateImageURLs: cfg.PostureAPIRestrictPrivate,
	})

	return &application{
		handler:     router,
		db:          db,
		rateLimiter: rateLimiter,
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", ":"+cfg.ServerPort)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", cfg.ServerPort, err)
	}
	return serve(ctx, cfg, logger, ln)
}

// serve はlnでHTTPサーバーを起動し、ctxのキャンセルまでブロックする。
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, ln net.Listener) error {
	a, err := newApplication(ctx, cfg, logger)
	if err != nil {
		ln.Close()
		return err
	}
	defer a.Close()

	server := &http.Server{
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.PostureAPITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server starting", slog.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	if u.User == nil {
		return raw
	}
	return u.Redacted()
}
