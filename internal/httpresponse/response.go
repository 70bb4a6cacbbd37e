// Package httpresponse assembles and writes HTTP/1.1 responses, grounded on
// util.rs's send_response(): status-line table, global/local header
// merging, Set-Cookie rendering, ETag/Cache-Control on static resources,
// best-effort content-encoding, and a single write+flush.
package httpresponse

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/fooooter/drain/internal/bodycodec"
	"github.com/fooooter/drain/internal/cookie"
	"github.com/fooooter/drain/internal/etag"
	"github.com/fooooter/drain/internal/httperr"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("drain.httpresponse")

// ResourceType distinguishes static files (ETag/Cache-Control eligible)
// from dynamic endpoint/CGI output.
type ResourceType int

const (
	ResourceNone ResourceType = iota
	ResourceStatic
	ResourceDynamic
)

var statusText = map[int]string{
	100: "Continue", 101: "Switching Protocols", 102: "Processing", 103: "Early Hints",
	200: "OK", 201: "Created", 202: "Accepted", 203: "Non-Authoritative Information",
	204: "No Content", 205: "Reset Content", 206: "Partial Content", 207: "Multi-Status",
	208: "Already Reported", 226: "IM Used",
	300: "Multiple Choices", 301: "Moved Permanently", 302: "Found", 303: "See Other",
	304: "Not Modified", 307: "Temporary Redirect", 308: "Permanent Redirect",
	400: "Bad Request", 401: "Unauthorized", 402: "Payment Required", 403: "Forbidden",
	404: "Not Found", 405: "Method Not Allowed", 406: "Not Acceptable",
	407: "Proxy Authentication Required", 408: "Request Timeout", 409: "Conflict",
	410: "Gone", 411: "Length Required", 412: "Precondition Failed", 413: "Content Too Large",
	414: "URI Too Long", 415: "Unsupported Media Type", 416: "Range Not Satisfiable",
	417: "Expectation Failed", 418: "I'm a teapot", 421: "Misdirected Request",
	422: "Unprocessable Content", 423: "Locked", 424: "Failed Dependency", 425: "Too Early",
	426: "Upgrade Required", 428: "Precondition Required", 429: "Too Many Requests",
	431: "Request Header Fields Too Large", 451: "Unavailable For Legal Reasons",
	500: "Internal Server Error", 501: "Not Implemented", 502: "Bad Gateway",
	503: "Service Unavailable", 504: "Gateway Timeout", 505: "HTTP Version Not Supported",
	506: "Variant Also Negotiates", 507: "Insufficient Storage", 508: "Loop Detected",
	510: "Not Extended", 511: "Network Authentication Required",
}

// StatusText returns the reason phrase for status, or an InvalidStatusCode
// error if status isn't one send_response() recognizes.
func StatusText(status int) (string, error) {
	if t, ok := statusText[status]; ok {
		return t, nil
	}
	return "", httperr.New(httperr.InvalidStatusCode)
}

// Options bundles the pieces send_response() otherwise threads as loose
// arguments.
type Options struct {
	Status             int
	Headers            map[string]string
	Content            []byte
	SetCookie          map[string]cookie.SetCookie
	ResourceType       ResourceType
	GlobalHeaders      map[string]string
	EnableServerHeader bool
	CacheMaxAge        uint64
	ETags              *etag.Registry
	ServerVersion      string
}

// Send writes a complete HTTP/1.1 response to w.
func Send(w io.Writer, opts Options) error {
	statusLine, err := StatusText(opts.Status)
	if err != nil {
		return err
	}

	var head bytes.Buffer
	fmt.Fprintf(&head, "HTTP/1.1 %d %s\r\n", opts.Status, statusLine)
	fmt.Fprintf(&head, "Date: %s\r\n", currentDate())

	if opts.EnableServerHeader {
		version := opts.ServerVersion
		if version == "" {
			version = "0.1.0"
		}
		fmt.Fprintf(&head, "Server: Drain %s\r\n", version)
	}

	globalHeaders := opts.GlobalHeaders
	if globalHeaders == nil {
		globalHeaders = map[string]string{"Connection": "close"}
	}

	for name, c := range opts.SetCookie {
		fmt.Fprintf(&head, "Set-Cookie: %s\r\n", c.Render(name))
	}

	content := opts.Content

	if opts.Headers != nil {
		headers := mergeHeaders(opts.Headers, globalHeaders)

		if content != nil && utf8.Valid(content) {
			content = bytes.TrimFunc(content, isASCIISpace)
		}

		if opts.ResourceType == ResourceStatic && content != nil {
			tag := etag.Generate(content)
			if opts.ETags != nil {
				opts.ETags.Insert(tag)
			}
			fmt.Fprintf(&head, "ETag: %s\r\n", tag)
			fmt.Fprintf(&head, "Cache-Control: max-age=%d\r\n", opts.CacheMaxAge)
		}

		prepared := content
		if enc, has := headers["Content-Encoding"]; has && content != nil {
			encoded, err := bodycodec.Encode(enc, content)
			if err != nil {
				log.Warningf("compressing response content using %s: %v; sending uncompressed", enc, err)
			} else {
				prepared = encoded
			}
		}

		for k, v := range headers {
			fmt.Fprintf(&head, "%s: %s\r\n", k, v)
		}
		fmt.Fprintf(&head, "Content-Length: %d\r\n\r\n", len(prepared))
		head.Write(prepared)
	} else if content != nil {
		if utf8.Valid(content) {
			content = bytes.TrimFunc(content, isASCIISpace)
		}
		if opts.ResourceType == ResourceStatic {
			tag := etag.Generate(content)
			if opts.ETags != nil {
				opts.ETags.Insert(tag)
			}
			fmt.Fprintf(&head, "ETag: %s\r\n", tag)
			fmt.Fprintf(&head, "Cache-Control: max-age=%d\r\n", opts.CacheMaxAge)
		}
		fmt.Fprintf(&head, "Content-Length: %d\r\n\r\n", len(content))
		head.Write(content)
	} else {
		head.WriteString("Content-Length: 0\r\n\r\n")
	}

	if _, err := w.Write(head.Bytes()); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	if f, ok := w.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			log.Warningf("flushing response stream: %v", err)
		}
	}
	return nil
}

// mergeHeaders folds global into local with local winning on a duplicate
// key, matching send_response()'s header precedence.
func mergeHeaders(local, global map[string]string) map[string]string {
	merged := make(map[string]string, len(local)+len(global))
	for k, v := range global {
		merged[k] = v
	}
	for k, v := range local {
		merged[k] = v
	}
	return merged
}

func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	default:
		return false
	}
}

func currentDate() string {
	return time.Now().UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")
}

// ContentLengthHeader is a small helper HEAD responses use to announce a
// body length without sending one (requests.rs's handle_head()).
func ContentLengthHeader(n int) string { return strconv.Itoa(n) }
