// Package httpc provides a shared HTTP client and dialer with sensible defaults.
// Use this instead of http.DefaultClient to ensure timeouts are set.
package httpc

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/proxy"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// DialContextFunc dials a network connection. It matches
// net.Dialer.DialContext and websocket.Dialer.NetDialContext.
type DialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Client is a shared HTTP client with production-ready defaults.
// Use this instead of http.DefaultClient.
var Client = NewClient(DefaultTimeout)

// NewClient creates a new HTTP client with the specified timeout that dials
// directly.
func NewClient(timeout time.Duration) *http.Client {
	return newClient(timeout, directDialer().DialContext)
}

// Dialer returns the dial function for direct connections.
func Dialer() DialContextFunc {
	return directDialer().DialContext
}

// NewSOCKS5 returns an HTTP client and a dial function that both route
// through the SOCKS5 proxy at addr. The dial function is meant for
// websocket connections that must follow the same route.
func NewSOCKS5(addr string, timeout time.Duration) (*http.Client, DialContextFunc, error) {
	dialer, err := proxy.SOCKS5("tcp", addr, nil, directDialer())
	if err != nil {
		return nil, nil, fmt.Errorf("socks5 proxy %s: %w", addr, err)
	}

	dial := func(ctx context.Context, network, address string) (net.Conn, error) {
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, network, address)
		}
		return dialer.Dial(network, address)
	}

	return newClient(timeout, dial), dial, nil
}

func directDialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   DefaultConnectTimeout,
		KeepAlive: DefaultKeepAlive,
	}
}

func newClient(timeout time.Duration, dial DialContextFunc) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:           dial,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       DefaultIdleConnTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// Do performs an HTTP request with the shared client.
func Do(req *http.Request) (*http.Response, error) {
	return Client.Do(req)
}
