package connserver

import (
	"bufio"
	"strings"
	"testing"
)

func TestReadHeadStopsAtBlankLine(t *testing.T) {
	raw := "GET /foo HTTP/1.1\r\nHost: example.com\r\n\r\nleftover body"
	r := bufio.NewReader(strings.NewReader(raw))

	head, err := readHead(r)
	if err != nil {
		t.Fatalf("readHead: %v", err)
	}
	if head != "GET /foo HTTP/1.1\r\nHost: example.com\r\n" {
		t.Errorf("got %q", head)
	}

	rest, _ := r.ReadString(0)
	if rest != "leftover body" {
		t.Errorf("expected leftover body untouched, got %q", rest)
	}
}

func TestReadHeadRejectsOversizedHead(t *testing.T) {
	raw := "GET / HTTP/1.1\r\n" + strings.Repeat("X-Pad: "+strings.Repeat("a", 200)+"\r\n", 600) + "\r\n"
	r := bufio.NewReader(strings.NewReader(raw))

	if _, err := readHead(r); err == nil {
		t.Errorf("expected oversized head to be rejected")
	}
}

func TestReadBodyNoContentLength(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(""))
	body, err := readBody(r, map[string]string{}, 1024)
	if err != nil {
		t.Fatalf("readBody: %v", err)
	}
	if body != nil {
		t.Errorf("expected nil body, got %v", body)
	}
}

func TestReadBodyReadsExactLength(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("hello world"))
	body, err := readBody(r, map[string]string{"content-length": "5"}, 1024)
	if err != nil {
		t.Fatalf("readBody: %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("got %q", body)
	}
}

func TestReadBodyRejectsOversizedContentLengthBeforeAllocating(t *testing.T) {
	r := bufio.NewReader(strings.NewReader(""))
	body, err := readBody(r, map[string]string{"content-length": "1000000"}, 10)
	if err == nil {
		t.Fatal("expected an error for a declared length over the configured max")
	}
	if body != nil {
		t.Errorf("expected nil body, got %v", body)
	}
}

func TestIsSupportedVersion(t *testing.T) {
	cases := map[string]bool{"1.0": true, "1.1": true, "0.9": false, "2": false, "3": false}
	for version, want := range cases {
		if got := isSupportedVersion(version); got != want {
			t.Errorf("isSupportedVersion(%q) = %v, want %v", version, got, want)
		}
	}
}
