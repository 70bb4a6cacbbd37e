// Package config loads and validates drain's process-wide configuration.
//
// Grounded on original_source/src/config.rs: a single JSON document, read
// once at startup from the path named by DRAIN_CONFIG, producing an
// immutable Config that every other package treats as read-only.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
)

// AccessControl gates resources by glob pattern before they reach a static
// file or dynamic endpoint.
type AccessControl struct {
	DenyAction uint16            `json:"deny_action"`
	List       map[string]string `json:"list"`
}

// Encoding controls request/response content-encoding negotiation.
type Encoding struct {
	UseEncoding                string   `json:"use_encoding"`
	SupportedEncodings         []string `json:"supported_encodings"`
	EncodingApplicableMimeTypes []string `json:"encoding_applicable_mime_types"`
}

// HTTPS configures the Connection Driver's TLS listener.
type HTTPS struct {
	Enabled            bool   `json:"enabled"`
	BindPort           string `json:"bind_port"`
	MinProtocolVersion string `json:"min_protocol_version"`
	CipherList         string `json:"cipher_list"`
	CertFile           string `json:"ssl_certificate_file"`
	KeyFile            string `json:"ssl_private_key_file"`
	Domains            []string `json:"domains"`
	Email              string   `json:"email"`
	CA                 string   `json:"ca"`
}

// CGI configures the CGI/1.1 bridge.
type CGI struct {
	CGIServer  string        `json:"cgi_server"`
	Extensions []string      `json:"cgi_extensions"`
	Timeout    time.Duration `json:"-"`
	TimeoutMs  int64         `json:"timeout_ms"`
}

// Config is drain's process-wide, immutable-after-load configuration.
type Config struct {
	MaxContentLength     *uint64           `json:"max_content_length"`
	GlobalResponseHeaders map[string]string `json:"global_response_headers"`
	AccessControl        *AccessControl    `json:"access_control"`
	BindHost              string            `json:"bind_host"`
	BindPort              string            `json:"bind_port"`
	DynamicPages          []string          `json:"endpoints"`
	EndpointsLibrary      string            `json:"endpoints_library"`
	Encoding              *Encoding         `json:"encoding"`
	DocumentRoot          string            `json:"document_root"`
	ServerRoot            string            `json:"server_root"`
	HTTPS                 HTTPS             `json:"https"`
	CGI                   *CGI              `json:"cgi"`
	Verbosity             string            `json:"verbosity"`
	BeVerbose             bool              `json:"be_verbose"`
	EnableServerHeader    bool              `json:"enable_server_header"`
	CacheMaxAge           uint64            `json:"cache_max_age"`
	ETagCacheSize         int               `json:"etag_cache_size"`
	MaxRequests           int               `json:"max_requests"`
	IdleTimeoutMs         int64             `json:"idle_timeout_ms"`
	Chroot                bool              `json:"chroot"`
	ChrootActive          bool              `json:"-"`
}

const (
	defaultMaxContentLength = 1073741824
	defaultETagCacheSize    = 8192
	defaultMaxRequests      = 100
	defaultIdleTimeoutMs    = 5000
	defaultCGITimeoutMs     = 30000
)

// Load reads and validates the configuration file named by the DRAIN_CONFIG
// environment variable. Unlike config.rs, which panics on the first bad
// field, every validation failure is accumulated and returned together.
func Load() (*Config, error) {
	path := os.Getenv("DRAIN_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("DRAIN_CONFIG is not set")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config file %q is malformed: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs error

	if c.BindHost == "" {
		errs = multierr.Append(errs, fmt.Errorf("bind_host must not be empty"))
	}
	if c.BindPort == "" {
		errs = multierr.Append(errs, fmt.Errorf("bind_port must not be empty"))
	}
	if c.DocumentRoot == "" {
		errs = multierr.Append(errs, fmt.Errorf("document_root must not be empty"))
	}

	if c.AccessControl != nil {
		if c.AccessControl.DenyAction != 404 && c.AccessControl.DenyAction != 403 {
			errs = multierr.Append(errs, fmt.Errorf("access_control.deny_action must be 404 or 403, got %d", c.AccessControl.DenyAction))
		}
		for k, v := range c.AccessControl.List {
			if v != "allow" && v != "deny" {
				errs = multierr.Append(errs, fmt.Errorf("access_control.list[%q] must be \"allow\" or \"deny\", got %q", k, v))
			}
		}
	}

	if c.Encoding != nil {
		if !contains(c.Encoding.SupportedEncodings, c.Encoding.UseEncoding) {
			errs = multierr.Append(errs, fmt.Errorf("encoding.use_encoding %q must be listed in encoding.supported_encodings", c.Encoding.UseEncoding))
		}
		for _, e := range c.Encoding.SupportedEncodings {
			if e != "gzip" && e != "br" {
				errs = multierr.Append(errs, fmt.Errorf("encoding.supported_encodings contains unsupported value %q", e))
			}
		}
	}

	if c.HTTPS.Enabled {
		staticPair := c.HTTPS.CertFile != "" && c.HTTPS.KeyFile != ""
		managed := len(c.HTTPS.Domains) > 0 && c.HTTPS.Email != ""
		if !staticPair && !managed {
			errs = multierr.Append(errs, fmt.Errorf("https.enabled requires either (ssl_certificate_file and ssl_private_key_file) or (domains and email)"))
		}
	}

	return errs
}

func (c *Config) applyDefaults() {
	if c.ETagCacheSize <= 0 {
		c.ETagCacheSize = defaultETagCacheSize
	}
	if c.MaxRequests <= 0 {
		c.MaxRequests = defaultMaxRequests
	}
	if c.IdleTimeoutMs <= 0 {
		c.IdleTimeoutMs = defaultIdleTimeoutMs
	}
	if c.CGI != nil {
		if c.CGI.TimeoutMs <= 0 {
			c.CGI.TimeoutMs = defaultCGITimeoutMs
		}
		c.CGI.Timeout = time.Duration(c.CGI.TimeoutMs) * time.Millisecond
	}
}

// MaxContentLen returns the configured request body ceiling, defaulting to
// 1 GiB the way config.rs's get_max_content_length() does.
func (c *Config) MaxContentLen() uint64 {
	if c.MaxContentLength != nil {
		return *c.MaxContentLength
	}
	return defaultMaxContentLength
}

// SupportedEncodings mirrors config.rs's get_supported_encodings().
func (c *Config) SupportedEncodings() []string {
	if c.Encoding != nil && len(c.Encoding.SupportedEncodings) > 0 {
		return c.Encoding.SupportedEncodings
	}
	return nil
}

// ResponseEncoding mirrors config.rs's get_response_encoding(): it decides
// whether a response body should be gzip/br-encoded given the negotiated
// Accept-Encoding header and the resource's guessed/declared MIME type.
func (c *Config) ResponseEncoding(content []byte, mimeGuess, generalType string, acceptEncoding string) string {
	if c.Encoding == nil || acceptEncoding == "" || len(content) == 0 {
		return ""
	}
	accepted := splitAndTrim(acceptEncoding, ',')

	if generalType == "text" {
		if contains(accepted, c.Encoding.UseEncoding) {
			return c.Encoding.UseEncoding
		}
		return ""
	}

	if contains(c.Encoding.EncodingApplicableMimeTypes, mimeGuess) && contains(accepted, c.Encoding.UseEncoding) {
		return c.Encoding.UseEncoding
	}
	return ""
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func splitAndTrim(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == sep {
			out = append(out, trimSpace(s[start:i]))
			start = i + 1
		}
	}
	return out
}

func trimSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}
