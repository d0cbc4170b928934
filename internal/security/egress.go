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

// EgressGuard は外向き通信とユーザーが登録するURLの安全性を検証する。
type EgressGuard interface {
	// NewStrictClient はプライベートIP、ループバック、リンクローカル、
	// メタデータIPへの接続を拒否するHTTPクライアントを生成する。
	// 検証はDNS解決後のIPアドレスに対して行われる。
	NewStrictClient(timeout time.Duration, allowedPorts ...int) *http.Client

	// ValidatePublicURL はプロフィールのリンク（Webサイト、SNS）が
	// 公開されたhttp(s)のURLかを静的に検証する。
	ValidatePublicURL(rawURL string) error
}

// allowedSchemes は許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks はブロック対象のネットワーク範囲。初期化時に1回だけパースする。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		// クラウドメタデータIP (169.254.169.254) を含む
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

type egressGuard struct{}

// NewEgressGuard はEgressGuardを生成する。
func NewEgressGuard() *egressGuard {
	return &egressGuard{}
}

// NewStrictClient はsafeurlで保護されたHTTPクライアントを生成する。
// allowedPorts が空の場合は 80 と 443 のみ許可する。
func (g *egressGuard) NewStrictClient(timeout time.Duration, allowedPorts ...int) *http.Client {
	if len(allowedPorts) == 0 {
		allowedPorts = []int{80, 443}
	}
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(allowedPorts...).
		Build()

	return safeurl.Client(config).Client
}

// ValidatePublicURL はDNS解決を伴わない静的な検証を行う。
func (g *egressGuard) ValidatePublicURL(rawURL string) error {
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
	// 公開ホストはドット区切りのFQDNである
	if !strings.Contains(host, ".") {
		return fmt.Errorf("host is not a public domain: %s", host)
	}

	return nil
}

// PortOf はURLのポート番号を返す。省略時はスキームの既定ポート。
func PortOf(rawURL string) (int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, fmt.Errorf("invalid URL: %w", err)
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid port: %s", p)
		}
		return n, nil
	}
	if strings.EqualFold(u.Scheme, "https") {
		return 443, nil
	}
	return 80, nil
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

var _ EgressGuard = (*egressGuard)(nil)
