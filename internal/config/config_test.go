package config

import "testing"

func TestValidateDenyAction(t *testing.T) {
	c := &Config{
		BindHost:     "0.0.0.0",
		BindPort:     "8080",
		DocumentRoot: "/srv/www",
		AccessControl: &AccessControl{
			DenyAction: 401,
			List:       map[string]string{"secret/*": "deny"},
		},
	}
	if err := c.validate(); err == nil {
		t.Fatal("expected validation error for deny_action=401")
	}
}

func TestValidateAccumulatesMultipleErrors(t *testing.T) {
	c := &Config{
		AccessControl: &AccessControl{
			DenyAction: 401,
			List:       map[string]string{"secret/*": "maybe"},
		},
	}
	err := c.validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	msg := err.Error()
	for _, want := range []string{"bind_host", "bind_port", "document_root", "deny_action", "secret/*"} {
		if !contains2(msg, want) {
			t.Errorf("expected combined error to mention %q, got: %s", want, msg)
		}
	}
}

func contains2(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func TestIsAccessAllowed(t *testing.T) {
	ac := &AccessControl{DenyAction: 404, List: map[string]string{"private/*": "deny", "public/*": "allow"}}
	if ac.IsAccessAllowed("private/secret.txt") {
		t.Error("expected private/secret.txt to be denied")
	}
	if !ac.IsAccessAllowed("public/index.html") {
		t.Error("expected public/index.html to be allowed")
	}
	if !ac.IsAccessAllowed("unrelated.txt") {
		t.Error("expected unmatched resource to default-allow")
	}
}

func TestResponseEncoding(t *testing.T) {
	c := &Config{Encoding: &Encoding{
		UseEncoding:                "gzip",
		SupportedEncodings:         []string{"gzip", "br"},
		EncodingApplicableMimeTypes: []string{"application/json"},
	}}

	if got := c.ResponseEncoding([]byte("hi"), "text/html", "text", "gzip, br"); got != "gzip" {
		t.Errorf("text type: got %q, want gzip", got)
	}
	if got := c.ResponseEncoding([]byte("hi"), "image/png", "image", "gzip, br"); got != "" {
		t.Errorf("non-applicable mime: got %q, want empty", got)
	}
	if got := c.ResponseEncoding([]byte("hi"), "application/json", "application", "gzip"); got != "gzip" {
		t.Errorf("applicable mime: got %q, want gzip", got)
	}
	if got := c.ResponseEncoding(nil, "text/html", "text", "gzip"); got != "" {
		t.Errorf("empty content: got %q, want empty", got)
	}
}
