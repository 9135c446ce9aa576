package session

import (
	"context"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/bark-labs/offerbot/internal/config"
)

const defaultProbeTimeout = 3 * time.Second

// Prober answers whether addr (host:port) accepts connections within timeout.
type Prober interface {
	Reachable(ctx context.Context, addr string, timeout time.Duration) bool
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, addr string, timeout time.Duration) bool

// Reachable calls f.
func (f ProberFunc) Reachable(ctx context.Context, addr string, timeout time.Duration) bool {
	return f(ctx, addr, timeout)
}

// TCPProber dials the address once.
type TCPProber struct{}

// Reachable performs a TCP connect bounded by timeout.
func (TCPProber) Reachable(ctx context.Context, addr string, timeout time.Duration) bool {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Session is an HTTP client bound to one redemption attempt.
type Session struct {
	*http.Client
	Proxied bool
}

// Manager builds sessions, routing through the configured proxy when it answers.
type Manager struct {
	prober         Prober
	requestTimeout time.Duration
}

// NewManager creates a Manager. A nil prober falls back to TCPProber.
func NewManager(requestTimeout time.Duration, prober Prober) *Manager {
	if prober == nil {
		prober = TCPProber{}
	}
	return &Manager{prober: prober, requestTimeout: requestTimeout}
}

// Open returns a proxied session when proxy is enabled and reachable, a
// direct one otherwise. It never fails and never blocks longer than the
// probe timeout.
func (m *Manager) Open(ctx context.Context, proxy config.ProxyConfig) *Session {
	if !proxy.Enabled {
		return m.direct()
	}
	proxyURL, addr, err := proxyAddr(proxy.URL)
	if err != nil {
		log.Printf("proxy url %q invalid, using direct connection: %v", proxy.URL, err)
		return m.direct()
	}
	timeout := proxy.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if !m.prober.Reachable(probeCtx, addr, timeout) {
		log.Printf("proxy %s unreachable, using direct connection", addr)
		return m.direct()
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyURL(proxyURL)
	return &Session{
		Client:  &http.Client{Timeout: m.requestTimeout, Transport: transport},
		Proxied: true,
	}
}

func (m *Manager) direct() *Session {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	return &Session{Client: &http.Client{Timeout: m.requestTimeout, Transport: transport}}
}

func proxyAddr(raw string) (*url.URL, string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, "", err
	}
	if parsed.Hostname() == "" {
		return nil, "", &url.Error{Op: "parse", URL: raw, Err: errMissingHost}
	}
	port := parsed.Port()
	if port == "" {
		switch parsed.Scheme {
		case "https":
			port = "443"
		case "socks5", "socks5h":
			port = "1080"
		default:
			port = "80"
		}
	}
	return parsed, net.JoinHostPort(parsed.Hostname(), port), nil
}
