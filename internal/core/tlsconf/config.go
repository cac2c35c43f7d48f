package tlsconf

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// Config holds the TLS trust settings used for the probe stream and the
// negotiation page.
type Config struct {
	CAFile             string `yaml:"ca_file,omitempty"`
	Fingerprint        string `yaml:"fingerprint,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty"`
}

// Build creates the process-wide *tls.Config: system roots plus the optional
// CA file. It is called once at startup and shared by pointer.
func (c *Config) Build() (*tls.Config, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		NextProtos:         []string{"http/1.1"},
		RootCAs:            pool,
		InsecureSkipVerify: c != nil && c.InsecureSkipVerify,
	}
	if c == nil {
		return tlsConfig, nil
	}

	if c.CAFile != "" {
		caCert, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA cert: %w", err)
		}
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA cert %s", c.CAFile)
		}
	}
	if c.Fingerprint != "" {
		if _, err := helloID(c.Fingerprint); err != nil {
			return nil, err
		}
	}
	return tlsConfig, nil
}

// IsEmpty returns true if no TLS settings are configured.
func (c *Config) IsEmpty() bool {
	if c == nil {
		return true
	}
	return c.CAFile == "" && c.Fingerprint == "" && !c.InsecureSkipVerify
}
