package hostutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// ErrEmptyHost is returned for blank input.
var ErrEmptyHost = errors.New("host is empty")

// Normalize turns user input into the target string sent to the service.
// http and https URLs are canonicalized: scheme and host lowercased, default
// ports stripped, fragment removed, trailing slash trimmed. Anything else is
// treated as a bare host and only its host part is lowercased.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmptyHost
	}
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return "", fmt.Errorf("host %q contains whitespace", s)
	}

	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return canonicalURL(s)
	}
	if strings.Contains(s, "://") {
		return "", fmt.Errorf("unsupported scheme in %q", s)
	}

	host, rest, found := strings.Cut(s, "/")
	host = strings.ToLower(host)
	if host == "" {
		return "", fmt.Errorf("missing host in %q", s)
	}
	if found {
		return host + "/" + rest, nil
	}
	return host, nil
}

func canonicalURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in %q", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		h := u.Hostname()
		if strings.Contains(h, ":") {
			h = "[" + h + "]"
		}
		u.Host = h
	}
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""

	return u.String(), nil
}
