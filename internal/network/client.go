package network

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// DefaultTimeout applies when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Options configures the HTTP client used against the library site.
type Options struct {
	// ProxyAddr is a SOCKS5 address (host:port), e.g. a local Tor daemon. Empty means direct.
	ProxyAddr string

	// InsecureSkipVerify turns off TLS certificate checks.
	InsecureSkipVerify bool

	Timeout time.Duration
}

// NewClient creates an http.Client from opts.
func NewClient(opts Options) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if addr := strings.TrimSpace(opts.ProxyAddr); addr != "" {
		dialer, err := proxy.SOCKS5("tcp", addr, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к SOCKS5 (%s): %w", addr, err)
		}

		transport.Proxy = nil
		if ctxDialer, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = ctxDialer.DialContext
		} else {
			transport.Dial = dialer.Dial
		}
		// Через Tor соединения всё равно живут недолго
		transport.DisableKeepAlives = true
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}
