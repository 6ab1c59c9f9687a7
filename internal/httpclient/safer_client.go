// Package httpclient provides an http.Client that refuses requests to private
// and loopback addresses unless the caller opts in.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/finkg/errors"
)

// ErrBlocked is returned for requests the guard refuses to send
var ErrBlocked = errors.New("request blocked")

// SaferClient wraps http.Client with SSRF protection
type SaferClient struct {
	*http.Client
	allowedSchemes []string
	blockPrivateIP bool
	maxRedirects   int
}

// Option configures a SaferClient
type Option func(*SaferClient)

// WithAllowPrivate permits loopback and private addresses, for self-hosted
// endpoints and tests.
func WithAllowPrivate() Option {
	return func(c *SaferClient) {
		c.blockPrivateIP = false
	}
}

// WithMaxRedirects overrides the redirect limit (default 10)
func WithMaxRedirects(n int) Option {
	return func(c *SaferClient) {
		c.maxRedirects = n
	}
}

// WithSchemes overrides the allowed URL schemes (default http, https)
func WithSchemes(schemes ...string) Option {
	return func(c *SaferClient) {
		c.allowedSchemes = schemes
	}
}

// New creates an HTTP client with SSRF protection
func New(timeout time.Duration, opts ...Option) *SaferClient {
	c := &SaferClient{
		Client:         &http.Client{Timeout: timeout},
		allowedSchemes: []string{"http", "https"},
		blockPrivateIP: true,
		maxRedirects:   10,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.maxRedirects {
			return errors.Newf("stopped after %d redirects", c.maxRedirects)
		}
		if err := c.validateURL(req.URL); err != nil {
			return errors.Wrap(err, "redirect blocked")
		}
		return nil
	}

	if c.blockPrivateIP {
		dialer := &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}
		c.Transport = &http.Transport{
			// Resolve first so DNS rebinding cannot sneak a private address past validateURL
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, _, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, errors.Wrap(err, "invalid address")
				}
				ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
				if err != nil {
					return nil, errors.Wrapf(err, "failed to resolve host %q", host)
				}
				for _, ip := range ips {
					if isPrivateIP(ip) {
						return nil, errors.Wrapf(ErrBlocked, "private IP address %s", ip)
					}
				}
				return dialer.DialContext(ctx, network, addr)
			},
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	}

	return c
}

// ForEndpoint builds a client for a fixed API base URL. Private addresses are
// allowed only when the base URL itself points at one.
func ForEndpoint(baseURL string, timeout time.Duration) *SaferClient {
	u, err := url.Parse(baseURL)
	if err == nil && IsPrivateHost(u.Hostname()) {
		return New(timeout, WithAllowPrivate())
	}
	return New(timeout)
}

func (c *SaferClient) validateURL(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	allowed := false
	for _, s := range c.allowedSchemes {
		if scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.Wrapf(ErrBlocked, "scheme %q not allowed (allowed: %v)", scheme, c.allowedSchemes)
	}

	// http://evil.com@localhost/
	if u.User != nil {
		return errors.Wrap(ErrBlocked, "URL carries userinfo")
	}

	hostname := u.Hostname()
	if hostname == "" {
		return errors.Wrap(ErrBlocked, "URL missing hostname")
	}

	if c.blockPrivateIP && IsPrivateHost(hostname) {
		return errors.Wrapf(ErrBlocked, "private host %s", hostname)
	}
	return nil
}

// ValidateURL parses urlStr and checks it against the guard
func (c *SaferClient) ValidateURL(urlStr string) (*url.URL, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	if err := c.validateURL(u); err != nil {
		return nil, err
	}
	return u, nil
}

// Do executes an HTTP request with SSRF protection
func (c *SaferClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.validateURL(req.URL); err != nil {
		return nil, err
	}
	return c.Client.Do(req)
}

// IsPrivateHost reports whether hostname is a localhost name or a literal
// private, loopback or otherwise non-routable IP.
func IsPrivateHost(hostname string) bool {
	h := strings.ToLower(hostname)
	if h == "localhost" || h == "localhost.localdomain" || strings.HasSuffix(h, ".localhost") {
		return true
	}
	if ip := net.ParseIP(h); ip != nil {
		return isPrivateIP(ip)
	}
	return false
}

var reservedBlocks = []*net.IPNet{
	mustCIDR("0.0.0.0/8"),
	mustCIDR("240.0.0.0/4"),
	mustCIDR("fec0::/10"),
	mustCIDR("2001:db8::/32"),
}

func mustCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, block := range reservedBlocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}
