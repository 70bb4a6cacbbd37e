package dispatch

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fooooter/drain/internal/config"
	"github.com/fooooter/drain/internal/httpparse"
)

func testConfig(t *testing.T, extra func(*config.Config)) *config.Config {
	t.Helper()
	cfg := &config.Config{
		BindHost:     "127.0.0.1",
		BindPort:     "8080",
		DocumentRoot: t.TempDir(),
	}
	if extra != nil {
		extra(cfg)
	}
	return cfg
}

func TestResolveResourceEmptyWithoutIndexFile(t *testing.T) {
	cfg := testConfig(t, nil)
	d := New(cfg, nil, nil, nil, nil)
	if got := d.resolveResource(""); got != "index" {
		t.Errorf("got %q, want \"index\"", got)
	}
}

func TestResolveResourceEmptyWithIndexFile(t *testing.T) {
	cfg := testConfig(t, nil)
	if err := os.WriteFile(filepath.Join(cfg.DocumentRoot, "index.html"), []byte("hi"), 0644); err != nil {
		t.Fatal(err)
	}
	d := New(cfg, nil, nil, nil, nil)
	if got := d.resolveResource(""); got != "index.html" {
		t.Errorf("got %q, want \"index.html\"", got)
	}
}

func TestResolveResourceStripsLeadingSlash(t *testing.T) {
	cfg := testConfig(t, nil)
	d := New(cfg, nil, nil, nil, nil)
	if got := d.resolveResource("/foo/bar.txt"); got != "foo/bar.txt" {
		t.Errorf("got %q", got)
	}
}

func TestTryStaticOrNotFoundServesExistingFile(t *testing.T) {
	cfg := testConfig(t, nil)
	if err := os.WriteFile(filepath.Join(cfg.DocumentRoot, "hello.txt"), []byte("hello world"), 0644); err != nil {
		t.Fatal(err)
	}
	d := New(cfg, nil, nil, nil, nil)
	var buf strings.Builder
	req := &httpparse.Request{Method: httpparse.GET, Headers: map[string]string{}}
	status, err := d.tryStaticOrNotFound(&buf, req, "hello.txt", true, true, ConnInfo{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != 200 {
		t.Errorf("status = %d, want 200", status)
	}
	if !strings.Contains(buf.String(), "hello world") {
		t.Errorf("response missing content: %s", buf.String())
	}
}

func TestTryStaticOrNotFoundMissingFileRenders404(t *testing.T) {
	cfg := testConfig(t, nil)
	d := New(cfg, nil, nil, nil, nil)
	var buf strings.Builder
	req := &httpparse.Request{Method: httpparse.GET, Headers: map[string]string{}}
	status, err := d.tryStaticOrNotFound(&buf, req, "missing.txt", true, true, ConnInfo{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != 404 {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestHandleOptionsAdvertisesAllowHeader(t *testing.T) {
	cfg := testConfig(t, nil)
	d := New(cfg, nil, nil, nil, nil)
	var buf strings.Builder
	if err := d.handleOptions(&buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "204 No Content") {
		t.Errorf("expected 204 status line, got: %s", out)
	}
	if !strings.Contains(out, "Allow: GET, HEAD, POST, OPTIONS") {
		t.Errorf("expected Allow header without endpoint methods, got: %s", out)
	}
}

func TestRenderDenyUsesConfiguredStatus(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.AccessControl = &config.AccessControl{DenyAction: 403, List: map[string]string{"secret/*": "deny"}}
	})
	d := New(cfg, nil, nil, nil, nil)
	var buf strings.Builder
	req := &httpparse.Request{Method: httpparse.GET, Headers: map[string]string{}}
	status, err := d.renderDeny(&buf, req, true, ConnInfo{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != 403 {
		t.Errorf("status = %d, want 403", status)
	}
}

func TestDispatchUnsupportedMethodReturns405(t *testing.T) {
	cfg := testConfig(t, nil)
	d := New(cfg, nil, nil, nil, nil)
	var buf strings.Builder
	req := &httpparse.Request{Method: httpparse.TRACE, Headers: map[string]string{}}
	err := d.Dispatch(&buf, req, nil, nil, ConnInfo{LocalIP: net.ParseIP("127.0.0.1"), RemoteIP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "405 Method Not Allowed") {
		t.Errorf("expected 405, got: %s", buf.String())
	}
}
