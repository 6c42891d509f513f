// Package app はサブコマンドの解析と各起動モードのワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/ministry/internal/config"
	"github.com/hitoshi/ministry/internal/database"
	"github.com/hitoshi/ministry/internal/logger"
	"github.com/hitoshi/ministry/internal/metrics"
	"github.com/hitoshi/ministry/internal/repository"
	"github.com/hitoshi/ministry/internal/user"
	"github.com/hitoshi/ministry/internal/worker/cleanup"
)

const pingTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、設定に従って構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.Options{})

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定の形式とレベルでロガーを作り直す
	l := logger.SetupDefault(w, logger.Options{Format: cfg.LogFormat, Level: cfg.LogLevel})
	return cfg, l, nil
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

	var promote PromoteArgs
	if cmd == CommandPromote {
		var err error
		if promote, err = ParsePromoteArgs(args[1:]); err != nil {
			return err
		}
	}

	cfg, l, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	l.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("identity_provider", cfg.Identity.Provider),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg, l)
	case CommandMigrate:
		return runMigrate(cfg, l)
	case CommandPromote:
		return runPromote(cfg, l, promote)
	default:
		return runServe(cfg, l)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if err := database.Ping(context.Background(), db, pingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newRegistry はプロセスとGoランタイムのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config, l *slog.Logger) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	l.Info("database connection established")

	srv, err := buildServer(context.Background(), cfg, db, l, newRegistry())
	if err != nil {
		return err
	}
	defer srv.Close()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		l.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	l.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	l.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションと未確認アカウントのクリーンアップを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config, l *slog.Logger) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	l.Info("database connection established (worker)")

	collector := metrics.NewCollector(newRegistry())
	job := cleanup.NewCleanupJob(db, l, collector)
	job.RetentionDays = cfg.UnconfirmedRetentionDays

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Int("retention_days", job.RetentionDays),
	)

	job.Start(ctx, cfg.CleanupInterval)

	l.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config, l *slog.Logger) error {
	l.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	l.Info("database migrations completed successfully")
	return nil
}

// runPromote はメールアドレスで指定したプロフィールの管理者フラグを設定する。
// 管理者フラグはこのコマンドかデータベースの直接操作でのみ変更できる。
func runPromote(cfg *config.Config, l *slog.Logger, args PromoteArgs) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := user.NewService(repository.NewPostgresProfileRepo(db))
	profile, err := svc.SetAdmin(context.Background(), args.Email, !args.Revoke)
	if err != nil {
		return fmt.Errorf("failed to update admin flag: %w", err)
	}

	l.Info("admin flag updated",
		slog.String("profile_id", profile.ID),
		slog.Bool("is_admin", profile.IsAdmin),
	)
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
