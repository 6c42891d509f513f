// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// SSRFGuardService は外部URLの安全性検証のインターフェースを定義する。
// 記事のアイキャッチ画像URLの登録時に使用される。
type SSRFGuardService interface {
	// ValidateURL はURLの安全性を静的に検証する。
	// スキーム、ホスト、IPアドレスを検証し、危険なURLの場合はエラーを返す。
	ValidateURL(rawURL string) error

	// ProbeImage はURLにHEADリクエストを送り、画像が返ることを確認する。
	// リクエストはsafeurlのクライアント経由で行うため、DNS解決後の
	// プライベートIPへの接続もブロックされる。
	ProbeImage(ctx context.Context, rawURL string) error
}

// allowedSchemes は許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks はブロックされるネットワーク範囲。
// パッケージ初期化時に1回だけパースする。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック
		"127.0.0.0/8",
		// リンクローカル（メタデータIP 169.254.169.254 を含む）
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// ssrfGuard はSSRFGuardServiceの実装。
type ssrfGuard struct {
	client *http.Client
}

// NewSSRFGuard はSSRFGuardServiceの新しいインスタンスを生成する。
// timeoutはProbeImageのHTTPタイムアウト。
func NewSSRFGuard(timeout time.Duration) *ssrfGuard {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return &ssrfGuard{client: safeurl.Client(config).Client}
}

// ValidateURL はURLの安全性を事前に検証する。
// DNS解決を伴わない静的な検証であり、DNS再バインディングは
// ProbeImageのクライアント側で防止される。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}

// ProbeImage はURLが画像を返すことを確認する。
func (g *ssrfGuard) ProbeImage(ctx context.Context, rawURL string) error {
	if err := g.ValidateURL(rawURL); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to probe image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("image probe returned status %d", resp.StatusCode)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return fmt.Errorf("URL does not point to an image (content-type %q)", resp.Header.Get("Content-Type"))
	}
	return nil
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
