package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/UgochukwuChidera/resourcehub/internal/identity"
	"github.com/UgochukwuChidera/resourcehub/internal/middleware"
)

// HealthChecker はヘルスチェックに使うDB疎通確認のインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionRegistry   middleware.ReconcilerLookup
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	TokenVerifier     *identity.TokenVerifier
	Logger            *slog.Logger
	RequestObserver   middleware.RequestObserver

	// ヘルスチェック
	HealthChecker HealthChecker

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig
	CSRFConfig  middleware.CSRFConfig

	// リソース
	ResourceService ResourceServiceInterface

	// チャットボット
	ChatbotService ChatbotServiceInterface

	// 管理機能（ベアラートークン認証）
	AdminService AdminServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → SessionMiddleware → CSRF → RateLimit(General)
//
// 認証ルート（/auth/*）はセッションミドルウェアの外に配置する。
// ただし/auth/logoutはCookieで駆動される状態変更のためCSRF検証を通す。
// 管理機能ルート（/api/functions/*）はCookieセッションではなくベアラーJWTで認証する。
// ベアラー認証はCookieに依存しないのでCSRF検証の対象外。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.RequestObserver))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	resourceHandler := NewResourceHandler(deps.ResourceService)
	chatbotHandler := NewChatbotHandler(deps.ChatbotService)
	functionHandler := NewFunctionHandler(deps.AdminService)

	csrf := middleware.NewCSRFMiddleware(deps.CSRFConfig)

	// --- 認証不要のルート ---

	r.Get("/health", newHealthHandler(deps.HealthChecker))
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/register", authHandler.Register)
		r.With(csrf).Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- Cookieセッション認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionRegistry))
		r.Use(csrf)
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// リソース管理
		r.Route("/api/resources", func(r chi.Router) {
			r.Get("/", resourceHandler.ListResources)

			// POST /api/resources - アップロード（管理者限定＋アップロード専用レート制限）
			r.With(middleware.NewAdminMiddleware(), deps.RateLimiter.UploadMiddleware()).
				Post("/", resourceHandler.UploadResource)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", resourceHandler.GetResource)
				r.Get("/download-url", resourceHandler.DownloadURL)

				// DELETE /api/resources/{id} - 削除（管理者限定）
				r.With(middleware.NewAdminMiddleware()).Delete("/", resourceHandler.DeleteResource)
			})
		})

		// FAQチャットボット
		r.Post("/api/chatbot/ask", chatbotHandler.Ask)
	})

	// --- ベアラーJWT認証の管理機能ルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewBearerAuthMiddleware(deps.TokenVerifier))

		r.Route("/api/functions", func(r chi.Router) {
			r.Post("/generate-url", functionHandler.GenerateURL)
			r.Post("/password-update", functionHandler.UpdatePassword)
			r.Post("/profile-update", functionHandler.UpdateProfile)
		})
	})

	return r
}

// newHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
