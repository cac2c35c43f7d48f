package cookies

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Jar is the cookie store of the negotiation client. It satisfies
// http.CookieJar and remembers which hosts it has seen so it can be saved
// between runs. Probes share one Jar, so access is locked.
type Jar struct {
	mu   sync.RWMutex
	jar  http.CookieJar
	urls map[string]*url.URL
}

var _ http.CookieJar = (*Jar)(nil)

// New creates an empty jar.
func New() *Jar {
	j, _ := cookiejar.New(nil)
	return &Jar{
		jar:  j,
		urls: make(map[string]*url.URL),
	}
}

// Cookies returns cookies for a URL.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}

// SetCookies adds cookies for a URL.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.urls[u.Host] = &url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}
	j.jar.SetCookies(u, cookies)
}

// Len returns the number of cookies held across all hosts.
func (j *Jar) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	n := 0
	for _, u := range j.urls {
		n += len(j.jar.Cookies(u))
	}
	return n
}

// Clear removes all cookies.
func (j *Jar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar, _ = cookiejar.New(nil)
	j.urls = make(map[string]*url.URL)
}

type savedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
}

type savedHost struct {
	Scheme  string        `json:"scheme"`
	Path    string        `json:"path,omitempty"`
	Cookies []savedCookie `json:"cookies"`
}

type savedJar struct {
	Hosts map[string]savedHost `json:"hosts"`
}

// Save writes all cookies to a JSON file, creating its directory.
func (j *Jar) Save(path string) error {
	j.mu.RLock()
	data := savedJar{Hosts: make(map[string]savedHost)}
	for host, u := range j.urls {
		cookies := j.jar.Cookies(u)
		if len(cookies) == 0 {
			continue
		}
		h := savedHost{Scheme: u.Scheme, Path: u.Path}
		for _, c := range cookies {
			// The jar only hands back name and value; the path is
			// re-derived from the request URL on load.
			h.Cookies = append(h.Cookies, savedCookie{Name: c.Name, Value: c.Value})
		}
		data.Hosts[host] = h
	}
	j.mu.RUnlock()

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cookie directory: %w", err)
	}
	return os.WriteFile(path, b, 0o600)
}

// Load reads cookies saved by Save. A missing file is not an error.
func (j *Jar) Load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var data savedJar
	if err := json.Unmarshal(b, &data); err != nil {
		return fmt.Errorf("parsing cookie file %s: %w", path, err)
	}

	now := time.Now()
	for host, h := range data.Hosts {
		scheme := h.Scheme
		if scheme == "" {
			scheme = "https"
		}
		var cookies []*http.Cookie
		for _, c := range h.Cookies {
			if !c.Expires.IsZero() && c.Expires.Before(now) {
				continue
			}
			cookies = append(cookies, &http.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Path:     c.Path,
				Expires:  c.Expires,
				Secure:   c.Secure,
				HttpOnly: c.HTTPOnly,
			})
		}
		if len(cookies) > 0 {
			j.SetCookies(&url.URL{Scheme: scheme, Host: host, Path: h.Path}, cookies)
		}
	}
	return nil
}
