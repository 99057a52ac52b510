// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/UgochukwuChidera/resourcehub/internal/admin"
	"github.com/UgochukwuChidera/resourcehub/internal/cache"
	"github.com/UgochukwuChidera/resourcehub/internal/chatbot"
	"github.com/UgochukwuChidera/resourcehub/internal/config"
	"github.com/UgochukwuChidera/resourcehub/internal/database"
	"github.com/UgochukwuChidera/resourcehub/internal/handler"
	"github.com/UgochukwuChidera/resourcehub/internal/identity"
	"github.com/UgochukwuChidera/resourcehub/internal/logger"
	"github.com/UgochukwuChidera/resourcehub/internal/metrics"
	"github.com/UgochukwuChidera/resourcehub/internal/middleware"
	"github.com/UgochukwuChidera/resourcehub/internal/reconciler"
	"github.com/UgochukwuChidera/resourcehub/internal/repository"
	"github.com/UgochukwuChidera/resourcehub/internal/resource"
	"github.com/UgochukwuChidera/resourcehub/internal/security"
	"github.com/UgochukwuChidera/resourcehub/internal/session"
	"github.com/UgochukwuChidera/resourcehub/internal/storage"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandGrantAdmin:
		return runGrantAdmin(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. メトリクスコレクターの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	resourceRepo := repository.NewPostgresResourceRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)

	// 4. アイデンティティプロバイダーとトークン検証器の初期化
	provider := identity.NewGoTrueClient(identity.GoTrueConfig{
		BaseURL:        cfg.AuthBaseURL,
		AnonKey:        cfg.AuthAnonKey,
		ServiceRoleKey: cfg.AuthServiceRoleKey,
	})
	verifier := identity.NewTokenVerifier(cfg.AuthJWTSecret)

	// 5. オブジェクトストレージの初期化
	ctx := context.Background()
	objectStorage, err := storage.New(ctx, storage.Config{
		Endpoint:     cfg.S3Endpoint,
		Region:       cfg.S3Region,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
		Bucket:       cfg.S3Bucket,
		SignedURLTTL: cfg.SignedURLTTL,
	}, collector)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	slog.Info("object storage client initialized",
		slog.String("bucket", cfg.S3Bucket),
	)

	// 6. セキュリティサービスの初期化
	sanitizer := security.NewContentSanitizer()
	avatarGuard := security.NewAvatarGuard()

	// 7. ドメインサービスの初期化
	resourceStore := cache.NewResourceStore(resourceRepo, collector)
	resourceService := resource.NewService(resourceRepo, resourceStore, objectStorage, sanitizer, collector)

	adminService := admin.NewService(
		provider, profileRepo, objectStorage, avatarGuard,
		cfg.AdminUsersPerPage, cfg.AdminMaxPages,
	)

	chatbotService, err := chatbot.NewService(resourceRepo)
	if err != nil {
		return fmt.Errorf("failed to initialize chatbot: %w", err)
	}

	// 8. セッションレジストリとマネージャーの初期化
	sessionRegistry := session.NewRegistry(cfg.SessionIdleTTL)
	defer sessionRegistry.Close()

	factory := func() *reconciler.Reconciler {
		return reconciler.New(provider, profileRepo, reconciler.Options{
			Recorder: collector,
		})
	}
	sessionManager := session.NewManager(provider, sessionRegistry, factory)

	// アクティブセッション数を定期的にゲージへ反映する
	sessionGaugeDone := make(chan struct{})
	defer close(sessionGaugeDone)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-sessionGaugeDone:
				return
			case <-ticker.C:
				collector.RecordActiveSessions(sessionRegistry.Len())
			}
		}
	}()

	// 9. レート制限の初期化（req/min単位の設定をそのままバースト値にも使う）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.UploadRate = rate.Limit(float64(cfg.RateLimitUpload) / 60.0)
	rateLimiterCfg.UploadBurst = cfg.RateLimitUpload
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 10. ルーターの構築
	deps := &handler.RouterDeps{
		SessionRegistry:   sessionRegistry,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		TokenVerifier:     verifier,
		RequestObserver:   collector,
		HealthChecker:     db,

		AuthService: sessionManager,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},
		CSRFConfig: middleware.CSRFConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
		},

		ResourceService: resourceService,
		ChatbotService:  chatbotService,
		AdminService:    adminService,
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.SetupMetricsRoute(registry))
	mux.Handle("/", handler.NewRouter(deps))

	// 11. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runGrantAdmin は指定ユーザーのprofiles行に管理者フラグを立てる。
// 使い方: grant-admin <user-id>
func runGrantAdmin(cfg *config.Config, args []string) error {
	if len(args) != 1 || args[0] == "" {
		return fmt.Errorf("usage: grant-admin <user-id>")
	}
	userID := args[0]

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	profiles := repository.NewPostgresProfileRepo(db)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := profiles.SetAdmin(ctx, userID, true); err != nil {
		return fmt.Errorf("failed to grant admin: %w", err)
	}

	slog.Info("admin privileges granted", slog.String("user_id", userID))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
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
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
