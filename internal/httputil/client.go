// Package httputil builds the HTTP clients used for update checks and
// bundle downloads.
package httputil

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/tsukumogami/aigene/internal/buildinfo"
)

// ClientOptions configures NewClient. Zero values take the defaults below.
type ClientOptions struct {
	// Timeout bounds a whole request including the body. Zero for
	// downloads, which rely on the request context instead.
	Timeout time.Duration

	// DialTimeout is the TCP dial timeout. Default: 15s.
	DialTimeout time.Duration

	// TLSHandshakeTimeout defaults to 10s.
	TLSHandshakeTimeout time.Duration

	// ResponseHeaderTimeout defaults to 30s.
	ResponseHeaderTimeout time.Duration

	// MaxRedirects defaults to 5.
	MaxRedirects int

	// UserAgent defaults to "aigene/<version>".
	UserAgent string
}

// DefaultOptions returns the options NewClient fills in for zero values.
func DefaultOptions() ClientOptions {
	return ClientOptions{
		DialTimeout:           15 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		MaxRedirects:          5,
		UserAgent:             buildinfo.UserAgent(),
	}
}

// NewClient returns a client with bounded dial and header timeouts.
//
// Compression is left to the server's Content-Encoding being absent:
// bundles are already compressed archives, and transparent decompression
// would defeat the checksum over the bytes served.
//
// Redirects may not downgrade from https to http, and a redirect from a
// public host may not land on a private, loopback or link-local address.
func NewClient(opts ClientOptions) *http.Client {
	def := DefaultOptions()
	if opts.DialTimeout == 0 {
		opts.DialTimeout = def.DialTimeout
	}
	if opts.TLSHandshakeTimeout == 0 {
		opts.TLSHandshakeTimeout = def.TLSHandshakeTimeout
	}
	if opts.ResponseHeaderTimeout == 0 {
		opts.ResponseHeaderTimeout = def.ResponseHeaderTimeout
	}
	if opts.MaxRedirects == 0 {
		opts.MaxRedirects = def.MaxRedirects
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}

	transport := &http.Transport{
		Proxy:              http.ProxyFromEnvironment,
		DisableCompression: true,
		DialContext: (&net.Dialer{
			Timeout:   opts.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   opts.TLSHandshakeTimeout,
		ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
	}

	return &http.Client{
		Timeout:       opts.Timeout,
		Transport:     &userAgentTransport{base: transport, agent: opts.UserAgent},
		CheckRedirect: redirectChecker(opts.MaxRedirects),
	}
}

type userAgentTransport struct {
	base  http.RoundTripper
	agent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.agent)
	}
	return t.base.RoundTrip(req)
}

func redirectChecker(maxRedirects int) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		if len(via) == 0 {
			return nil
		}
		first := via[0].URL
		if first.Scheme == "https" && req.URL.Scheme != "https" {
			return fmt.Errorf("refusing redirect from https to %s", req.URL.Redacted())
		}

		// A server on a private network may redirect within it.
		if isInternalHost(first.Hostname()) {
			return nil
		}
		return checkHost(req.URL.Hostname())
	}
}

func isInternalHost(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return host == "localhost"
	}
	return ValidateIP(ip, host) != nil
}

// checkHost resolves host and rejects it if any address is internal.
func checkHost(host string) error {
	if ip := net.ParseIP(host); ip != nil {
		return ValidateIP(ip, host)
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return fmt.Errorf("resolving redirect host %s: %w", host, err)
	}
	for _, ip := range ips {
		if err := ValidateIP(ip, host); err != nil {
			return err
		}
	}
	return nil
}
