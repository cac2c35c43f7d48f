package tlsconf

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/proxy"
)

// Fingerprints that can be mimicked in the ClientHello.
var fingerprints = map[string]utls.ClientHelloID{
	"chrome":  utls.HelloChrome_Auto,
	"firefox": utls.HelloFirefox_Auto,
	"safari":  utls.HelloSafari_Auto,
	"edge":    utls.HelloEdge_Auto,
	"ios":     utls.HelloIOS_Auto,
}

func helloID(name string) (utls.ClientHelloID, error) {
	id, ok := fingerprints[strings.ToLower(name)]
	if !ok {
		return utls.ClientHelloID{}, fmt.Errorf("unknown TLS fingerprint %q", name)
	}
	return id, nil
}

// Dialer opens TCP connections, directly or through a SOCKS5 proxy, and runs
// the TLS handshake on them.
type Dialer struct {
	TLS         *tls.Config
	Fingerprint string
	Proxy       proxy.ContextDialer
	Timeout     time.Duration
}

// DialContext opens a TCP connection to addr.
func (d *Dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	if d.Proxy != nil {
		return d.Proxy.DialContext(ctx, network, addr)
	}
	var nd net.Dialer
	return nd.DialContext(ctx, network, addr)
}

// Handshake runs a client TLS handshake on conn. With a fingerprint set the
// ClientHello mimics that browser; ALPN stays pinned to http/1.1 either way.
func (d *Dialer) Handshake(ctx context.Context, conn net.Conn, serverName string) (net.Conn, error) {
	base := d.TLS
	if base == nil {
		base = &tls.Config{NextProtos: []string{"http/1.1"}}
	}
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	if d.Fingerprint == "" {
		cfg := base.Clone()
		cfg.ServerName = serverName
		cfg.NextProtos = []string{"http/1.1"}
		tc := tls.Client(conn, cfg)
		if err := tc.HandshakeContext(ctx); err != nil {
			return nil, err
		}
		return tc, nil
	}

	id, err := helloID(d.Fingerprint)
	if err != nil {
		return nil, err
	}
	spec, err := utls.UTLSIdToSpec(id)
	if err != nil {
		return nil, fmt.Errorf("building %s ClientHello: %w", d.Fingerprint, err)
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}

	uc := utls.UClient(conn, &utls.Config{
		ServerName:         serverName,
		RootCAs:            base.RootCAs,
		InsecureSkipVerify: base.InsecureSkipVerify,
	}, utls.HelloCustom)
	if err := uc.ApplyPreset(&spec); err != nil {
		return nil, fmt.Errorf("applying %s ClientHello: %w", d.Fingerprint, err)
	}
	if err := uc.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return uc, nil
}

// NewProxyDialer parses a socks5:// or socks5h:// URL. An empty URL means no proxy.
func NewProxyDialer(rawURL string) (proxy.ContextDialer, error) {
	if rawURL == "" {
		return nil, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing proxy URL: %w", err)
	}
	switch u.Scheme {
	case "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme: %s", u.Scheme)
	}
	d, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("creating SOCKS5 dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("proxy dialer for %s does not support contexts", u.Redacted())
	}
	return cd, nil
}

// NewTransport builds the HTTP transport for the negotiation page. SOCKS5
// proxies go through d; http and https proxies use the standard proxy support.
func NewTransport(proxyURL string, d *Dialer) (*http.Transport, error) {
	transport := &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	if d != nil && d.TLS != nil {
		cfg := d.TLS.Clone()
		cfg.NextProtos = nil
		transport.TLSClientConfig = cfg
	}
	if d != nil {
		transport.DialContext = d.DialContext
	}
	if proxyURL == "" {
		return transport, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("parsing proxy URL: %w", err)
	}
	switch u.Scheme {
	case "socks5", "socks5h":
		if d == nil || d.Proxy == nil {
			pd, err := NewProxyDialer(proxyURL)
			if err != nil {
				return nil, err
			}
			transport.DialContext = pd.DialContext
		}
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	default:
		return nil, fmt.Errorf("unsupported proxy scheme: %s", u.Scheme)
	}
	return transport, nil
}
