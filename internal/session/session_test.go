package session

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/bark-labs/offerbot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDisabledProxyIsDirect(t *testing.T) {
	called := false
	m := NewManager(time.Second, ProberFunc(func(context.Context, string, time.Duration) bool {
		called = true
		return true
	}))

	s := m.Open(context.Background(), config.ProxyConfig{Enabled: false, URL: "http://10.0.0.1:3128"})
	assert.False(t, s.Proxied)
	assert.False(t, called)
	assert.Equal(t, time.Second, s.Timeout)
}

func TestOpenReachableProxy(t *testing.T) {
	var probed string
	m := NewManager(time.Second, ProberFunc(func(_ context.Context, addr string, _ time.Duration) bool {
		probed = addr
		return true
	}))

	s := m.Open(context.Background(), config.ProxyConfig{Enabled: true, URL: "http://proxy.local"})
	require.True(t, s.Proxied)
	assert.Equal(t, "proxy.local:80", probed)

	transport := s.Transport.(*http.Transport)
	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com", nil)
	proxyURL, err := transport.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "proxy.local", proxyURL.Host)
}

func TestOpenUnreachableProxyDegrades(t *testing.T) {
	m := NewManager(time.Second, ProberFunc(func(context.Context, string, time.Duration) bool { return false }))

	s := m.Open(context.Background(), config.ProxyConfig{Enabled: true, URL: "socks5://10.1.1.1"})
	assert.False(t, s.Proxied)
	assert.NotNil(t, s.Client)
}

func TestOpenInvalidProxyDegrades(t *testing.T) {
	m := NewManager(time.Second, nil)
	s := m.Open(context.Background(), config.ProxyConfig{Enabled: true, URL: "::not a url"})
	assert.False(t, s.Proxied)
}

func TestOpenRealProbeWithinTimeout(t *testing.T) {
	// Grab a free port and close it so nothing listens there.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	m := NewManager(time.Second, TCPProber{})
	timeout := 300 * time.Millisecond
	start := time.Now()
	s := m.Open(context.Background(), config.ProxyConfig{Enabled: true, URL: "http://" + addr, ProbeTimeout: timeout})
	elapsed := time.Since(start)

	assert.False(t, s.Proxied)
	assert.Less(t, elapsed, timeout+200*time.Millisecond)
}

func TestTCPProberReachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	assert.True(t, TCPProber{}.Reachable(context.Background(), ln.Addr().String(), time.Second))
}
