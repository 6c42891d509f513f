// Package demoadmin はデモ用管理画面の簡易ログインを提供する。
//
// 静的な資格情報で発行するマーカーCookieは管理ダッシュボード（未承認件数のみ）
// の表示だけを許可する。プロフィールの管理者フラグとは独立しており、
// 管理APIへのアクセスには使えない。
package demoadmin

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName はマーカーCookieの名前。
const CookieName = "admin_demo"

const (
	issuer  = "ministry-demo-admin"
	subject = "admin_demo"
)

// ErrDisabled は資格情報が未設定でデモログインが無効な場合のエラー。
var ErrDisabled = errors.New("demo admin login is disabled")

// ErrInvalidCredentials は資格情報が一致しない場合のエラー。
var ErrInvalidCredentials = errors.New("invalid demo admin credentials")

// Config はGateの設定。
type Config struct {
	Email        string
	Password     string
	MaxAge       time.Duration // 0の場合は8時間
	CookieDomain string
	CookieSecure bool
}

// Gate はデモ管理者の資格情報を検証し、マーカーを発行・検証する。
type Gate struct {
	email    []byte
	password []byte
	key      []byte
	config   Config
	now      func() time.Time
}

// New はGateを生成する。署名鍵はプロセスごとに生成するため、再起動でマーカーは失効する。
func New(config Config) (*Gate, error) {
	if config.MaxAge <= 0 {
		config.MaxAge = 8 * time.Hour
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate demo admin key: %w", err)
	}
	return &Gate{
		email:    []byte(strings.ToLower(strings.TrimSpace(config.Email))),
		password: []byte(config.Password),
		key:      key,
		config:   config,
		now:      time.Now,
	}, nil
}

// Enabled は資格情報が両方設定されているかを返す。
func (g *Gate) Enabled() bool {
	return len(g.email) > 0 && len(g.password) > 0
}

// Login は資格情報を定数時間で比較し、一致すればマーカーを返す。
func (g *Gate) Login(email, password string) (string, error) {
	if !g.Enabled() {
		return "", ErrDisabled
	}
	emailOK := subtle.ConstantTimeCompare([]byte(strings.ToLower(strings.TrimSpace(email))), g.email)
	passwordOK := subtle.ConstantTimeCompare([]byte(password), g.password)
	if emailOK&passwordOK != 1 {
		return "", ErrInvalidCredentials
	}

	now := g.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.config.MaxAge)),
	}
	marker, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign demo admin marker: %w", err)
	}
	return marker, nil
}

// Verify はマーカーが有効かを返す。
func (g *Gate) Verify(marker string) bool {
	if !g.Enabled() || marker == "" {
		return false
	}
	token, err := jwt.ParseWithClaims(marker, &jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return g.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(subject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	return err == nil && token.Valid
}

// FromRequest はリクエストのマーカーCookieが有効かを返す。
func (g *Gate) FromRequest(r *http.Request) bool {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}
	return g.Verify(cookie.Value)
}

// SetCookie はマーカーCookieを設定する。
func (g *Gate) SetCookie(w http.ResponseWriter, marker string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    marker,
		Path:     "/",
		Domain:   g.config.CookieDomain,
		MaxAge:   int(g.config.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   g.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie はマーカーCookieを削除する。
func (g *Gate) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Domain:   g.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
