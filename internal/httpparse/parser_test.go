package httpparse

import "testing"

func TestParseSimpleGet(t *testing.T) {
	raw := "GET /index.html HTTP/1.1\r\nHost: example.com\r\nAccept: text/html"
	req, errs := Parse(raw)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if req.Method != GET {
		t.Errorf("Method = %q, want GET", req.Method)
	}
	if req.Resource != "/index.html" {
		t.Errorf("Resource = %q, want /index.html", req.Resource)
	}
	if req.Headers["host"] != "example.com" {
		t.Errorf("headers[host] = %q, want example.com", req.Headers["host"])
	}
}

func TestParseQueryParams(t *testing.T) {
	raw := "GET /search?q=go&page=2 HTTP/1.1\r\nHost: example.com"
	req, errs := Parse(raw)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if req.Resource != "/search" {
		t.Errorf("Resource = %q, want /search", req.Resource)
	}
	if req.Params["q"] != "go" || req.Params["page"] != "2" {
		t.Errorf("Params = %v, want q=go page=2", req.Params)
	}
}

func TestParseMalformedRequestLine(t *testing.T) {
	raw := "FROBNICATE /x HTTP/1.1\r\n"
	_, errs := Parse(raw)
	if len(errs) == 0 {
		t.Fatal("expected a parse error for an unknown method")
	}
}

func TestParseDuplicateQueryParam(t *testing.T) {
	raw := "GET /x?a=1&a=2 HTTP/1.1\r\n"
	_, errs := Parse(raw)
	if len(errs) == 0 {
		t.Fatal("expected a parse error for a duplicate query parameter")
	}
}

func TestParseStopsHeadersAtBlankLine(t *testing.T) {
	raw := "GET /x HTTP/1.1\r\nHost: example.com\r\n\r\nnot-a-header"
	req, errs := Parse(raw)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(req.Headers) != 1 {
		t.Errorf("expected only the Host header, got %v", req.Headers)
	}
}
