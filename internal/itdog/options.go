// Package itdog drives the ITDOG HTTP probing service: it negotiates a task
// with the result page, then streams per-location measurements over the
// service's websocket.
package itdog

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultKey is the shared key mixed into the task token.
	DefaultKey = "token_20230313000136kwyktxb0tgspm00yo5"
	// DefaultNegotiateURL is the page that hands out task ids.
	DefaultNegotiateURL = "https://www.itdog.cn/http/"
	// DefaultSocketHost, DefaultSocketPort and DefaultSocketPath locate the stream endpoint.
	DefaultSocketHost = "www.itdog.cn"
	DefaultSocketPort = 443
	DefaultSocketPath = "/websockets"

	// FinishedMarker in a text frame ends the stream.
	FinishedMarker = `"type":"finished"`
)

// Options are the form fields sent when negotiating a task, plus the token
// window. Values are copied, so an Options is never shared mutably.
type Options struct {
	Line          string
	Host          string
	CheckMode     string
	IPv4          string
	Method        string
	Referer       string
	UserAgent     string
	Cookies       string
	RedirectNum   int
	DNSServerType string
	DNSServer     string
	TokenBegin    int
	TokenEnd      int
}

// DefaultOptions returns the form the service's own page submits for host.
func DefaultOptions(host string) Options {
	return Options{
		Host:          host,
		CheckMode:     "fast",
		Method:        "get",
		RedirectNum:   5,
		DNSServerType: "isp",
		TokenBegin:    8,
		TokenEnd:      24,
	}
}

// WithHost returns a copy of o targeting host.
func (o Options) WithHost(host string) Options {
	o.Host = host
	return o
}

// Encode renders the form body. Field order is fixed and host is sent twice,
// as host and host_s.
func (o Options) Encode() string {
	fields := [...][2]string{
		{"line", o.Line},
		{"host", o.Host},
		{"host_s", o.Host},
		{"check_mode", o.CheckMode},
		{"ipv4", o.IPv4},
		{"method", o.Method},
		{"referer", o.Referer},
		{"ua", o.UserAgent},
		{"cookies", o.Cookies},
		{"redirect_num", strconv.Itoa(o.RedirectNum)},
		{"dns_server_type", o.DNSServerType},
		{"dns_server", o.DNSServer},
	}

	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f[0])
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f[1]))
	}
	return b.String()
}
