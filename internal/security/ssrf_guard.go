// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// allowedSchemes は画像URLと姿勢スコアAPIで許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は制限モードでブロックされるネットワーク範囲。
// パッケージ初期化時に1回だけパースする。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック (RFC 1122)
		"127.0.0.0/8",
		// リンクローカル (RFC 3927) - クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		// カレントネットワーク
		"0.0.0.0/8",
		// IPv6ループバック
		"::1/128",
		// IPv6リンクローカル
		"fe80::/10",
		// IPv6ユニークローカル
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

// ValidateImageURL は姿勢チェック対象の画像参照を検証する。
// 画像参照は姿勢スコアAPIにそのまま渡すため、通常は空文字列のみ拒否する。
// restrictがtrueの場合はhttp/httpsの絶対URLでホストを持つことを要求し、
// プライベートIP・ループバック・localhostも拒否する。
// 画像は姿勢スコアAPI側で取得されるため、DNS解決を伴わない静的な検証のみ行う。
func ValidateImageURL(rawURL string, restrict bool) error {
	if rawURL == "" {
		return fmt.Errorf("image_url is required")
	}
	if !restrict {
		return nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("image_url is not a valid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("image_url must use http or https, got %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("image_url must include a host")
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("image_url points to a blocked address: %s", ip.String())
		}
		return nil
	}

	if isBlockedHostname(host) {
		return fmt.Errorf("image_url points to a blocked host: %s", host)
	}

	return nil
}

// NewScorerHTTPClient は姿勢スコアAPI呼び出し用のHTTPクライアントを生成する。
// restrictPrivateがfalseの場合はタイムアウトのみ設定した通常のクライアントを返す。
// trueの場合はsafeurlのクライアントを返し、プライベートIP・ループバック・
// リンクローカルへの接続をDialerレベルでブロックする。
// 許可ポートは80, 443とendpointのポート。
func NewScorerHTTPClient(endpoint string, timeout time.Duration, restrictPrivate bool) (*http.Client, error) {
	if !restrictPrivate {
		return &http.Client{Timeout: timeout}, nil
	}

	ports := []int{80, 443}
	if endpoint != "" {
		port, err := endpointPort(endpoint)
		if err != nil {
			return nil, err
		}
		if port != 80 && port != 443 {
			ports = append(ports, port)
		}
	}

	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(ports...).
		Build()

	wrappedClient := safeurl.Client(config)
	return wrappedClient.Client, nil
}

// endpointPort はURLの接続先ポートを返す。ポート省略時はスキームの既定値。
func endpointPort(endpoint string) (int, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return 0, fmt.Errorf("invalid posture API URL: %w", err)
	}
	if p := parsed.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid posture API port %q: %w", p, err)
		}
		return port, nil
	}
	if strings.EqualFold(parsed.Scheme, "http") {
		return 80, nil
	}
	return 443, nil
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// blockedHostnames はブロック対象のホスト名。
var blockedHostnames = []string{
	"localhost",
}

// isBlockedHostname はホスト名がブロック対象かを検証する。
func isBlockedHostname(host string) bool {
	lower := strings.ToLower(host)
	for _, blocked := range blockedHostnames {
		if lower == blocked {
			return true
		}
	}
	return false
}
