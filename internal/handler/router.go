package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/lessonbook/internal/middleware"
)

// HealthChecker はDB疎通確認に必要なインターフェース。
// *sql.DB を受け付けることができる。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// SetupAuthRoutes は認証関連のルーティングを設定したchi.Routerを返す。
func SetupAuthRoutes(service AuthServiceInterface, config AuthHandlerConfig, metrics AuthMetrics) http.Handler {
	r := chi.NewRouter()
	h := NewAuthHandler(service, config, metrics)

	r.Route("/auth", func(r chi.Router) {
		registerAuthRoutes(r, h)
	})

	return r
}

func registerAuthRoutes(r chi.Router, h *AuthHandler) {
	r.Get("/google/url", h.LoginURL)
	r.Get("/google", h.Callback)
	r.Get("/google/check", h.Check)
	r.Post("/google/refresh", h.Refresh)
	r.Post("/google/logout", h.Logout)
	r.Get("/google/userinfo", h.UserInfo)
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ヘルスチェック
	HealthChecker HealthChecker

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// Prometheusメトリクスのエクスポート（nil可）
	MetricsHandler http.Handler
	HTTPMetrics    middleware.HTTPStatusRecorder

	// リクエストログの出力先。nilの場合はslog.Defaultを使う。
	Logger *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig
	AuthMetrics AuthMetrics

	// スケジュール管理
	StudentService  StudentServiceInterface
	CategoryService CategoryServiceInterface
	CourseService   CourseServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics → Session → RateLimit(General)
//
// 認証ルート（/auth/*）はミドルウェアチェーンの外に配置する。
// 予約の変更系エンドポイントには書き込み専用レート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// 全ルートに効くミドルウェア。
	// パニック回復を最上位に置き、ログとメトリクスは最終的なステータスを記録する。
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.AuthMetrics)
	studentHandler := NewStudentHandler(deps.StudentService)
	categoryHandler := NewCategoryHandler(deps.CategoryService)
	courseHandler := NewCourseHandler(deps.CourseService)

	// --- 認証不要のルート ---

	// ヘルスチェック（Dockerヘルスチェック・死活監視用）
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
					"status": "unavailable",
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
		})
	})

	// Prometheusメトリクス
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		registerAuthRoutes(r, authHandler)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 生徒管理
		r.Route("/api/students", func(r chi.Router) {
			r.Get("/", studentHandler.List)
			r.Post("/", studentHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", studentHandler.Update)
				r.Post("/toggle", studentHandler.Toggle)
			})
		})

		// カテゴリ管理
		r.Route("/api/categories", func(r chi.Router) {
			r.Get("/", categoryHandler.List)
			r.Post("/", categoryHandler.Create)
			r.Delete("/{id}", categoryHandler.Delete)
		})

		// コース・予約管理
		r.Route("/api/courses", func(r chi.Router) {
			r.Get("/", courseHandler.List)
			r.Post("/", courseHandler.Create)
			r.Put("/batch", courseHandler.BatchUpdate)

			r.Route("/{id}", func(r chi.Router) {
				r.Post("/close", courseHandler.Close)

				// 予約の変更は書き込み専用レート制限を追加
				r.With(deps.RateLimiter.WriteMiddleware()).Post("/students", courseHandler.AddStudents)
				r.With(deps.RateLimiter.WriteMiddleware()).Delete("/students/{studentID}", courseHandler.RemoveStudent)
			})
		})
	})

	return r
}
