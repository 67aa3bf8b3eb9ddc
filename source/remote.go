package source

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Fetch defaults.
const (
	DefaultFetchTimeout = 30 * time.Second
	DefaultMaxPageSize  = 10 * 1024 * 1024 // 10MB
	DefaultUserAgent    = "uiaudit/0.1"
)

// Pre-compiled CIDR networks for reserved ranges not covered by net.IP helpers.
var (
	cgnat    = mustCIDR("100.64.0.0/10") // carrier-grade NAT
	v6unique = mustCIDR("fc00::/7")      // IPv6 unique local
	v6link   = mustCIDR("fe80::/10")     // IPv6 link-local
)

func mustCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic("invalid CIDR " + s + ": " + err.Error())
	}
	return n
}

// IsURL reports whether input names a remote page rather than a file.
func IsURL(input string) bool {
	return strings.HasPrefix(input, "https://") || strings.HasPrefix(input, "http://")
}

// ValidateURL checks that a page URL is safe to fetch: HTTPS only, and no
// localhost, local domains or private addresses.
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "https" {
		return fmt.Errorf("only HTTPS URLs are allowed")
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("URL has no host")
	}
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return fmt.Errorf("localhost URLs are not allowed")
	}
	if strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".internal") {
		return fmt.Errorf("local domain URLs are not allowed")
	}
	if ip := net.ParseIP(host); ip != nil && IsPrivateIP(ip) {
		return fmt.Errorf("private IP addresses are not allowed")
	}
	return nil
}

// IsPrivateIP checks if an IP is in private or reserved ranges, including
// IPv6-mapped IPv4 addresses.
func IsPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	return cgnat.Contains(ip) || v6unique.Contains(ip) || v6link.Contains(ip)
}

// urlName derives a file-name-safe report name from a page URL:
// https://example.com/account/signup → example-com-account-signup.html
func urlName(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "page.html"
	}

	slug := strings.ReplaceAll(parsed.Hostname(), ".", "-")
	if path := strings.Trim(parsed.Path, "/"); path != "" {
		path = strings.TrimSuffix(path, ".html")
		slug += "-" + strings.ReplaceAll(path, "/", "-")
	}

	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return '-'
	}, slug)
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	slug = strings.Trim(slug, "-")

	if len(slug) > 80 {
		slug = strings.TrimRight(slug[:80], "-")
	}
	if slug == "" {
		slug = "page"
	}
	return slug + ".html"
}

// Fetcher reads page sources from disk or over HTTP.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	maxSize      int64
	allowPrivate bool
}

// FetchOption configures a Fetcher.
type FetchOption func(*Fetcher)

// WithFetchTimeout bounds a remote fetch, redirects included.
func WithFetchTimeout(d time.Duration) FetchOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header of remote fetches.
func WithUserAgent(ua string) FetchOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxPageSize limits how many bytes of a remote page are read.
func WithMaxPageSize(n int64) FetchOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxSize = n
		}
	}
}

// WithPrivateTargets allows plain HTTP and private or local addresses, for
// auditing staging servers on an internal network.
func WithPrivateTargets(allow bool) FetchOption {
	return func(f *Fetcher) {
		f.allowPrivate = allow
	}
}

// NewFetcher creates a Fetcher. Unless private targets are allowed, every
// resolved address is checked at dial time so DNS rebinding cannot reach a
// private network.
func NewFetcher(opts ...FetchOption) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: DefaultFetchTimeout},
		userAgent: DefaultUserAgent,
		maxSize:   DefaultMaxPageSize,
	}
	for _, opt := range opts {
		opt(f)
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	}
	if !f.allowPrivate {
		transport.DialContext = safeDialContext(dialer)
	}
	f.client.Transport = transport

	f.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return fmt.Errorf("too many redirects (max 5)")
		}
		if err := f.validate(req.URL.String()); err != nil {
			return fmt.Errorf("redirect blocked: %w", err)
		}
		return nil
	}
	return f
}

// safeDialContext resolves the host and refuses to connect when any of its
// addresses is private.
func safeDialContext(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("DNS lookup failed: %w", err)
		}
		for _, ipAddr := range ips {
			if IsPrivateIP(ipAddr.IP) {
				return nil, fmt.Errorf("connection to private IP %s is not allowed", ipAddr.IP)
			}
		}

		for _, ipAddr := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ipAddr.IP.String(), port))
			if err == nil {
				return conn, nil
			}
		}
		return nil, fmt.Errorf("failed to connect to any resolved IP")
	}
}

func (f *Fetcher) validate(rawURL string) error {
	if !f.allowPrivate {
		return ValidateURL(rawURL)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}
	return nil
}

// Read returns the source of the page at input, a file path or a URL.
func (f *Fetcher) Read(ctx context.Context, input string) ([]byte, error) {
	if !IsURL(input) {
		data, err := os.ReadFile(input)
		if err != nil {
			return nil, fmt.Errorf("read document: %w", err)
		}
		return data, nil
	}
	return f.Fetch(ctx, input)
}

// Fetch downloads the page at rawURL. Non-200 responses and pages larger
// than the size limit are errors.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.validate(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d: %s", rawURL, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxSize {
		return nil, fmt.Errorf("page too large (exceeds %d bytes)", f.maxSize)
	}
	return body, nil
}
