package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ministry/internal/blog"
	"github.com/hitoshi/ministry/internal/metrics"
	"github.com/hitoshi/ministry/internal/middleware"
)

// HealthChecker はヘルスチェック対象の依存先。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	HealthChecker     HealthChecker
	StoreFactory      middleware.StoreFactory
	SessionTimeout    time.Duration
	CORSAllowedOrigin string
	CSRF              middleware.CSRFConfig
	HSTS              bool
	RateLimiter       *middleware.RateLimiter

	// 認証
	EmailVerifier EmailVerifier
	AuthConfig    AuthHandlerConfig

	// ナビゲーション
	Navigator PageNavigator
	DemoGate  DemoGate

	// 公開コンテンツ
	Posts       PublicPostService
	Comments    PublicCommentService
	Testimonies PublicTestimonyService
	Feed        blog.FeedInfo

	// 管理
	Dashboard           DashboardLoader
	AdminPosts          AdminPostService
	CommentModeration   ModerationService
	TestimonyModeration ModerationService
	Images              ImageUploader
	MaxUploadSize       int64
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS → Session → CSRF → RateLimit(General)
//
// /health と /metrics はセッション解決の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := deps.SessionTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.EmailVerifier, deps.AuthConfig)
	pageHandler := NewPageHandler(deps.Navigator, deps.DemoGate)
	contentHandler := NewContentHandler(deps.Posts, deps.Comments, deps.Testimonies, deps.Feed)
	adminHandler := NewAdminHandler(
		deps.Dashboard, deps.AdminPosts,
		deps.CommentModeration, deps.TestimonyModeration,
		deps.Images, deps.MaxUploadSize,
	)
	demoHandler := NewDemoAdminHandler(deps.DemoGate)

	submission := deps.RateLimiter.SubmissionMiddleware()

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.StoreFactory, timeout))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

		// 認証
		r.Route("/auth", func(r chi.Router) {
			r.With(submission).Post("/signup", authHandler.SignUp)
			r.Post("/signin", authHandler.SignIn)
			r.Post("/signout", authHandler.SignOut)
			r.Get("/session", authHandler.Session)
			r.With(submission).Post("/resend-verification", authHandler.ResendVerification)
			r.Get("/verify", authHandler.Verify)
		})

		// ページ遷移
		r.Get("/api/pages/{page}", pageHandler.Show)

		// 公開コンテンツ
		r.Get("/blog/rss.xml", contentHandler.RSS)
		r.Route("/api/posts", func(r chi.Router) {
			r.Get("/", contentHandler.ListPosts)
			r.Route("/{slug}", func(r chi.Router) {
				r.Get("/", contentHandler.GetPost)
				r.Get("/comments", contentHandler.ListComments)
				r.With(submission).Post("/comments", contentHandler.SubmitComment)
			})
		})
		r.Route("/api/testimonies", func(r chi.Router) {
			r.Get("/", contentHandler.ListTestimonies)
			r.With(submission).Post("/", contentHandler.SubmitTestimony)
		})

		// デモ管理者（管理者ゲートとは別系統）
		r.Route("/api/demo-admin", func(r chi.Router) {
			r.With(submission).Post("/login", demoHandler.Login)
			r.Post("/logout", demoHandler.Logout)
			r.Get("/status", demoHandler.Status)
		})

		// 管理
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.NewRequireAdminMiddleware())

			r.Get("/dashboard", adminHandler.Dashboard)
			r.Post("/images", adminHandler.UploadImage)

			r.Route("/posts", func(r chi.Router) {
				r.Get("/", adminHandler.ListPosts)
				r.Post("/", adminHandler.CreatePost)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", adminHandler.GetPost)
					r.Put("/", adminHandler.UpdatePost)
					r.Delete("/", adminHandler.DeletePost)
					r.Put("/publish", adminHandler.PublishPost)
				})
			})
			r.Route("/comments/{id}", func(r chi.Router) {
				r.Put("/approval", adminHandler.SetCommentApproval)
				r.Delete("/", adminHandler.DeleteComment)
			})
			r.Route("/testimonies/{id}", func(r chi.Router) {
				r.Put("/approval", adminHandler.SetTestimonyApproval)
				r.Delete("/", adminHandler.DeleteTestimony)
			})
		})
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
