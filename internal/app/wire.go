package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/ministry/internal/admin"
	"github.com/hitoshi/ministry/internal/blog"
	"github.com/hitoshi/ministry/internal/comment"
	"github.com/hitoshi/ministry/internal/config"
	"github.com/hitoshi/ministry/internal/demoadmin"
	"github.com/hitoshi/ministry/internal/handler"
	"github.com/hitoshi/ministry/internal/identity"
	"github.com/hitoshi/ministry/internal/metrics"
	"github.com/hitoshi/ministry/internal/middleware"
	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/moderation"
	"github.com/hitoshi/ministry/internal/navigator"
	"github.com/hitoshi/ministry/internal/repository"
	"github.com/hitoshi/ministry/internal/security"
	"github.com/hitoshi/ministry/internal/session"
	"github.com/hitoshi/ministry/internal/storage"
	"github.com/hitoshi/ministry/internal/testimony"
	"github.com/hitoshi/ministry/internal/user"
)

const imageProbeTimeout = 5 * time.Second

// server はワイヤリング済みのHTTPハンドラーと後始末が必要な依存。
type server struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimiter
}

// Close はバックグラウンドのgoroutineを停止する。
func (s *server) Close() {
	s.rateLimiter.Stop()
}

// newIdentityClient は設定に応じて認証プロバイダーを選択する。
// ローカルプロバイダーの場合はメール確認ハンドラーとしても返す。
func newIdentityClient(cfg *config.Config, db *sql.DB, logger *slog.Logger) (identity.Client, handler.EmailVerifier) {
	if cfg.Identity.Provider == config.ProviderGoTrue {
		return identity.NewGoTrueClient(identity.GoTrueConfig{
			URL:       cfg.GoTrue.URL,
			AnonKey:   cfg.GoTrue.AnonKey,
			JWTSecret: cfg.GoTrue.JWTSecret,
			Timeout:   cfg.GoTrue.Timeout,
		}), nil
	}

	local := identity.NewLocalProvider(
		repository.NewPostgresAccountRepo(db),
		repository.NewPostgresSessionRepo(db),
		identity.LocalConfig{
			SessionMaxAge:            cfg.SessionMaxAge,
			RequireEmailVerification: cfg.Identity.RequireEmailVerification,
			BaseURL:                  cfg.BaseURL,
		},
		identity.WithMailer(identity.NewLogMailer(logger)),
	)
	return local, local
}

// newImageUploader はストレージ設定が有効な場合だけminioに接続する。
func newImageUploader(ctx context.Context, cfg *config.Config) (handler.ImageUploader, string, error) {
	if !cfg.Storage.Enabled() {
		return storage.Disabled{}, "", nil
	}
	store, err := storage.NewImageStore(ctx, storage.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
		PublicURL: cfg.Storage.PublicURL,
		MaxSize:   cfg.Storage.MaxUploadSize,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to initialize image storage: %w", err)
	}
	return store, store.PublicPrefix(), nil
}

// buildServer はリポジトリからルーターまでの依存関係を組み立てる。
// dbへの接続は行わない。
func buildServer(ctx context.Context, cfg *config.Config, db *sql.DB, logger *slog.Logger, reg *prometheus.Registry) (*server, error) {
	collector := metrics.NewCollector(reg)

	// 1. リポジトリ
	profileRepo := repository.NewPostgresProfileRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)
	commentRepo := repository.NewPostgresCommentRepo(db)
	testimonyRepo := repository.NewPostgresTestimonyRepo(db)

	// 2. 認証
	client, verifier := newIdentityClient(cfg, db, logger)
	profiles := user.NewService(profileRepo)
	storeFactory := func() *session.Store {
		return session.NewStore(client, profiles,
			session.WithLogger(logger),
			session.WithMetrics(collector),
		)
	}

	// 3. モデレーション
	workflowOpts := []moderation.Option{
		moderation.WithLogger(logger),
		moderation.WithMetrics(collector),
	}
	publication := moderation.NewWorkflow(model.ContentKindPost, postRepo, workflowOpts...)
	commentFlow := moderation.NewWorkflow(model.ContentKindComment, commentRepo, workflowOpts...)
	testimonyFlow := moderation.NewWorkflow(model.ContentKindTestimony, testimonyRepo, workflowOpts...)

	// 4. ドメインサービス
	images, trustedPrefix, err := newImageUploader(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sanitizer := security.NewContentSanitizer()
	posts := blog.NewService(postRepo, publication, sanitizer, security.NewSSRFGuard(imageProbeTimeout),
		blog.WithTrustedImagePrefix(trustedPrefix),
		blog.WithImageProbe(true),
	)
	comments := comment.NewService(commentRepo, posts, commentFlow, sanitizer, comment.WithMetrics(collector))
	testimonies := testimony.NewService(testimonyRepo, testimonyFlow, sanitizer, testimony.WithMetrics(collector))
	dashboard := admin.NewDashboard(posts, comments, testimonies, admin.WithMetrics(collector))
	nav := navigator.New(posts, comments, testimonies, dashboard)

	gate, err := demoadmin.New(demoadmin.Config{
		Email:        cfg.DemoAdmin.Email,
		Password:     cfg.DemoAdmin.Password,
		CookieDomain: cfg.CookieDomain,
		CookieSecure: cfg.CookieSecure,
	})
	if err != nil {
		return nil, err
	}

	// 5. ルーター
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitSubmission),
	)

	deps := &handler.RouterDeps{
		Logger:            logger,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		HealthChecker:     db,
		StoreFactory:      storeFactory,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		HSTS:        cfg.CookieSecure,
		RateLimiter: rateLimiter,

		EmailVerifier: verifier,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: int(cfg.SessionMaxAge.Seconds()),
		},

		Navigator: nav,
		DemoGate:  gate,

		Posts:       posts,
		Comments:    comments,
		Testimonies: testimonies,
		Feed: blog.FeedInfo{
			Title:       cfg.SiteTitle,
			BaseURL:     cfg.BaseURL,
			Description: cfg.SiteTitle + " blog",
		},

		Dashboard:           dashboard,
		AdminPosts:          posts,
		CommentModeration:   comments,
		TestimonyModeration: testimonies,
		Images:              images,
		MaxUploadSize:       cfg.Storage.MaxUploadSize,
	}

	return &server{
		handler:     handler.NewRouter(deps),
		rateLimiter: rateLimiter,
	}, nil
}
