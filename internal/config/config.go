// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// 認証プロバイダーの種別
const (
	ProviderLocal  = "local"
	ProviderGoTrue = "gotrue"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string   `env:"DATABASE_URL,required,notEmpty"`
	DB          DBPool   `envPrefix:"DB_"`
	Identity    Identity `envPrefix:"IDENTITY_"`
	GoTrue      GoTrue   `envPrefix:"GOTRUE_"`

	// Session
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" envDefault:"168h"`

	DemoAdmin DemoAdmin `envPrefix:"DEMO_ADMIN_"`
	Storage   Storage   `envPrefix:"MINIO_"`

	// Rate Limit
	RateLimitGeneral    int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitSubmission int `env:"RATE_LIMIT_SUBMISSION" envDefault:"10"`

	// Logging
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	// Cleanup
	UnconfirmedRetentionDays int           `env:"UNCONFIRMED_RETENTION_DAYS" envDefault:"7"`
	CleanupInterval          time.Duration `env:"CLEANUP_INTERVAL" envDefault:"24h"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL,required,notEmpty"`
	SiteTitle  string `env:"SITE_TITLE" envDefault:"Ministry"`

	// Cookie
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
}

// DBPool はコネクションプール設定。
type DBPool struct {
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
}

// Identity は認証プロバイダーの選択と共通設定。
type Identity struct {
	Provider                 string `env:"PROVIDER" envDefault:"local"`
	RequireEmailVerification bool   `env:"REQUIRE_EMAIL_VERIFICATION" envDefault:"true"`
}

// GoTrue はSupabase Auth互換サービスの接続設定。
type GoTrue struct {
	URL       string        `env:"URL"`
	AnonKey   string        `env:"ANON_KEY"`
	JWTSecret string        `env:"JWT_SECRET"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// DemoAdmin はデモ用管理画面の静的資格情報。両方が設定された場合のみ有効。
type DemoAdmin struct {
	Email    string `env:"EMAIL"`
	Password string `env:"PASSWORD"`
}

// Enabled はデモ管理者ログインが有効かを返す。
func (d DemoAdmin) Enabled() bool {
	return d.Email != "" && d.Password != ""
}

// Storage は画像アップロード先のオブジェクトストレージ設定。
// Endpointが空の場合はアップロード機能を無効にする。
type Storage struct {
	Endpoint      string `env:"ENDPOINT"`
	AccessKey     string `env:"ACCESS_KEY"`
	SecretKey     string `env:"SECRET_KEY"`
	Bucket        string `env:"BUCKET_NAME" envDefault:"ministry-images"`
	UseSSL        bool   `env:"USE_SSL" envDefault:"false"`
	PublicURL     string `env:"PUBLIC_URL"`
	MaxUploadSize int64  `env:"MAX_UPLOAD_SIZE" envDefault:"5242880"`
}

// Enabled はストレージが設定済みかを返す。
func (s Storage) Enabled() bool {
	return s.Endpoint != ""
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Identity.Provider {
	case ProviderLocal:
	case ProviderGoTrue:
		var missing []string
		if c.GoTrue.URL == "" {
			missing = append(missing, "GOTRUE_URL")
		}
		if c.GoTrue.AnonKey == "" {
			missing = append(missing, "GOTRUE_ANON_KEY")
		}
		if len(missing) > 0 {
			return fmt.Errorf("required environment variables are not set: %v", missing)
		}
	default:
		return fmt.Errorf("unknown IDENTITY_PROVIDER: %q", c.Identity.Provider)
	}

	if (c.DemoAdmin.Email == "") != (c.DemoAdmin.Password == "") {
		return fmt.Errorf("DEMO_ADMIN_EMAIL and DEMO_ADMIN_PASSWORD must be set together")
	}

	if c.Storage.Enabled() && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set")
	}

	switch c.LogFormat {
	case "json", "dev":
	default:
		return fmt.Errorf("unknown LOG_FORMAT: %q", c.LogFormat)
	}

	return nil
}
