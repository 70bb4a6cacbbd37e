package httpresponse

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fooooter/drain/internal/cookie"
)

func TestSendStatusLineAndContentLength(t *testing.T) {
	var buf bytes.Buffer
	err := Send(&buf, Options{Status: 200, Content: []byte("hello")})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") {
		t.Errorf("missing status line, got: %q", out)
	}
	if !strings.Contains(out, "Content-Length: 5\r\n\r\nhello") {
		t.Errorf("missing content-length/body, got: %q", out)
	}
}

func TestSendInvalidStatus(t *testing.T) {
	var buf bytes.Buffer
	if err := Send(&buf, Options{Status: 999}); err == nil {
		t.Fatal("expected an error for an unknown status code")
	}
}

func TestSendNoContent(t *testing.T) {
	var buf bytes.Buffer
	if err := Send(&buf, Options{Status: 204}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(buf.String(), "Content-Length: 0\r\n\r\n") {
		t.Errorf("expected zero content-length, got: %q", buf.String())
	}
}

func TestSendSetCookie(t *testing.T) {
	var buf bytes.Buffer
	err := Send(&buf, Options{
		Status: 200,
		SetCookie: map[string]cookie.SetCookie{
			"id": {Value: "abc"},
		},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(buf.String(), "Set-Cookie: id=abc\r\n") {
		t.Errorf("expected Set-Cookie header, got: %q", buf.String())
	}
}
