package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// SSRFGuardService は外部求人ソースへの接続をSSRFから保護するインターフェース。
// 起動時の接続先URL検証と、リクエスト時のDialerレベルの検証を提供する。
type SSRFGuardService interface {
	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// プライベートIP、ループバック、リンクローカル、メタデータIPへの接続は
	// DNS解決後のIPアドレスで判定してブロックする。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL は接続先URLを静的に検証する（DNS解決は行わない）。
	ValidateURL(rawURL string) error
}

// allowedSchemes は接続を許可するURLスキーム。
var allowedSchemes = []string{"http", "https"}

// defaultAllowedPorts はポート指定がない場合に許可するポート。
var defaultAllowedPorts = []int{80, 443}

// blockedNetworks は接続を拒否するネットワーク範囲。
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
		// リンクローカル（クラウドメタデータIP 169.254.169.254 を含む）
		"169.254.0.0/16",
		// カレントネットワーク
		"0.0.0.0/8",
		// IPv6ループバック、リンクローカル、ユニークローカル
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
	allowedPorts []int
}

// NewSSRFGuard はSSRFGuardServiceを生成する。
// allowedPortsを省略した場合は80と443のみを許可する。
func NewSSRFGuard(allowedPorts ...int) *ssrfGuard {
	if len(allowedPorts) == 0 {
		allowedPorts = defaultAllowedPorts
	}
	return &ssrfGuard{allowedPorts: allowedPorts}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// safeurlはnet.DialerのControlフックで接続先IPを検証するため、DNS再バインディングにも対応する。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(g.allowedPorts...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL は接続先URLの安全性を静的に検証する。
// 外部求人ソースのベースURLを起動時に検証するために使用する。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !slices.Contains(allowedSchemes, scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	port, err := effectivePort(scheme, parsed.Port())
	if err != nil {
		return err
	}
	if !slices.Contains(g.allowedPorts, port) {
		return fmt.Errorf("disallowed port: %d (allowed: %v)", port, g.allowedPorts)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}

// effectivePort はURLのポートを返す。省略時はスキームの既定ポート。
func effectivePort(scheme, port string) (int, error) {
	if port == "" {
		if scheme == "https" {
			return 443, nil
		}
		return 80, nil
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return 0, fmt.Errorf("invalid port: %s", port)
	}
	return p, nil
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを判定する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
