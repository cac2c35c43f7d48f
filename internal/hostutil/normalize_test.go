package hostutil

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.com", "example.com"},
		{"  Example.COM  ", "example.com"},
		{"Example.com:8080", "example.com:8080"},
		{"Example.com/Path", "example.com/Path"},
		{"HTTPS://Example.com:443/a/", "https://example.com/a"},
		{"http://Example.com:80", "http://example.com"},
		{"http://example.com:8080/x#frag", "http://example.com:8080/x"},
		{"https://example.com/", "https://example.com"},
		{"https://example.com/q?x=1", "https://example.com/q?x=1"},
		{"https://[::1]:443/", "https://[::1]"},
		{"http://[2001:db8::1]:80/x", "http://[2001:db8::1]/x"},
		{"https://[::1]:8443/", "https://[::1]:8443"},
		{"http://[2001:DB8::1]/", "http://[2001:db8::1]"},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.in)
		if err != nil {
			t.Errorf("Normalize(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeRejects(t *testing.T) {
	if _, err := Normalize("   "); !errors.Is(err, ErrEmptyHost) {
		t.Errorf("Normalize(blank) error = %v, want ErrEmptyHost", err)
	}
	for _, in := range []string{"exa mple.com", "ftp://example.com", "/path-only", "https://"} {
		if _, err := Normalize(in); err == nil {
			t.Errorf("Normalize(%q) succeeded, want error", in)
		}
	}
}
