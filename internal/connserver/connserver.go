// Package connserver is the Connection Driver (C8): it accepts TCP/TLS
// connections, reads and dispatches one HTTP/1.1 request at a time per
// connection, and enforces keep-alive limits, grounded on the teacher's
// server.Run wiring-then-serve pattern (internal/server/server.go) adapted
// from an stdio LSP loop to a TCP accept loop.
package connserver

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/fooooter/drain/internal/config"
	"github.com/fooooter/drain/internal/dispatch"
	"github.com/fooooter/drain/internal/httperr"
	"github.com/fooooter/drain/internal/httpparse"
	"github.com/fooooter/drain/internal/httpresponse"
	"github.com/fooooter/drain/internal/metrics"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("drain.connserver")

const maxHeadSize = 64 * 1024

// Server owns the listener and drives every accepted connection through
// the dispatcher.
type Server struct {
	Config     *config.Config
	Dispatcher *dispatch.Dispatcher
	TLSConfig  *tls.Config
	Metrics    *metrics.Collectors
}

func New(cfg *config.Config, d *dispatch.Dispatcher, tlsCfg *tls.Config, m *metrics.Collectors) *Server {
	return &Server{Config: cfg, Dispatcher: d, TLSConfig: tlsCfg, Metrics: m}
}

// Run listens on Config.BindHost:BindPort (TLS if configured) and serves
// connections until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.Config.BindHost, s.Config.BindPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if s.TLSConfig != nil {
		ln = tls.NewListener(ln, s.TLSConfig)
		log.Infof("listening on %s (tls)", addr)
	} else {
		log.Infof("listening on %s", addr)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Warningf("accept: %v", err)
			continue
		}
		go s.serve(conn)
	}
}

// serve drives a single connection's request loop, enforcing the
// idle-timeout and max-requests keep-alive bounds REDESIGN FLAGS called
// for (the original implementation enforced neither).
func (s *Server) serve(conn net.Conn) {
	defer conn.Close()

	if s.Metrics != nil {
		s.Metrics.ActiveConnections.Inc()
		defer s.Metrics.ActiveConnections.Dec()
	}

	idleTimeout := time.Duration(s.Config.IdleTimeoutMs) * time.Millisecond
	maxRequests := s.Config.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 100
	}

	connInfo := dispatch.ConnInfo{
		RemotePort: remotePort(conn),
		HTTPS:      s.TLSConfig != nil,
	}
	if host, _, err := net.SplitHostPort(conn.LocalAddr().String()); err == nil {
		connInfo.LocalIP = net.ParseIP(host)
	}
	if host, _, err := net.SplitHostPort(conn.RemoteAddr().String()); err == nil {
		connInfo.RemoteIP = net.ParseIP(host)
	}

	reader := bufio.NewReader(conn)

	for n := 0; n < maxRequests; n++ {
		conn.SetReadDeadline(time.Now().Add(idleTimeout))

		raw, err := readHead(reader)
		if err != nil {
			return
		}
		if raw == "" {
			return
		}

		conn.SetReadDeadline(time.Time{})

		req, parseErrs := httpparse.Parse(raw)
		if req == nil || len(parseErrs) > 0 {
			log.Warningf("malformed request from %s: %v", conn.RemoteAddr(), parseErrs)
			s.sendError(conn, httperr.InvalidRequest)
			return
		}

		if !isSupportedVersion(req.Version) {
			log.Warningf("unsupported HTTP version %q from %s", req.Version, conn.RemoteAddr())
			s.sendError(conn, httperr.VersionNotSupported)
			return
		}

		var body *httpparse.RequestBody
		var cgiData *httpparse.CGIData
		if req.Method == httpparse.POST || req.Method == httpparse.PUT ||
			req.Method == httpparse.PATCH || req.Method == httpparse.DELETE {
			payload, err := readBody(reader, req.Headers, s.Config.MaxContentLen())
			if err != nil {
				log.Warningf("rejecting body from %s: %v", conn.RemoteAddr(), err)
				s.sendErrorCause(conn, err)
				return
			}
			body, cgiData, err = httpparse.IngestBody(req.Headers, payload, s.Config.MaxContentLen(), s.Config.SupportedEncodings())
			if err != nil {
				log.Warningf("rejecting body from %s: %v", conn.RemoteAddr(), err)
				s.sendErrorCause(conn, err)
				return
			}
		}

		if err := s.Dispatcher.Dispatch(conn, req, body, cgiData, connInfo); err != nil {
			log.Warningf("dispatch error for %s: %v", conn.RemoteAddr(), err)
			return
		}

		if strings.EqualFold(req.Headers["connection"], "close") {
			return
		}
	}
}

// isSupportedVersion reports whether version (as parsed, without the
// leading "HTTP/") is one of the 1.x versions the dispatcher handles.
func isSupportedVersion(version string) bool {
	return version == "1.0" || version == "1.1"
}

// sendError writes a status-only response for a bare httperr.Kind.
func (s *Server) sendError(w net.Conn, kind httperr.Kind) {
	s.sendErrorCause(w, httperr.New(kind))
}

// sendErrorCause maps err to its HTTP status via httperr.Kind.Status and
// writes a response before the connection is closed, instead of dropping
// the client silently.
func (s *Server) sendErrorCause(w net.Conn, err error) {
	var herr *httperr.Error
	status := httperr.InvalidRequest.Status()
	if errors.As(err, &herr) {
		status = herr.Kind.Status()
	}
	sendErr := httpresponse.Send(w, httpresponse.Options{
		Status:             status,
		Headers:            map[string]string{"Content-Type": "text/html; charset=utf-8"},
		GlobalHeaders:      s.Config.GlobalResponseHeaders,
		EnableServerHeader: s.Config.EnableServerHeader,
	})
	if sendErr != nil {
		log.Warningf("writing error response to %s: %v", w.RemoteAddr(), sendErr)
	}
}

// readHead reads up to and including the terminating blank line, returning
// the head with that trailing CRLF trimmed, matching the raw argument
// httpparse.Parse expects.
func readHead(r *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		b.WriteString(line)
		if b.Len() > maxHeadSize {
			return "", errors.New("connserver: request head too large")
		}
		if line == "\r\n" {
			break
		}
	}
	return strings.TrimSuffix(b.String(), "\r\n"), nil
}

// readBody rejects a declared Content-Length exceeding maxContentLength
// before allocating or reading anything, per spec.md §3's invariant that a
// request this large is rejected before allocation.
func readBody(r *bufio.Reader, headers map[string]string, maxContentLength uint64) ([]byte, error) {
	clStr, ok := headers["content-length"]
	if !ok || clStr == "" {
		return nil, nil
	}
	contentLength, err := strconv.ParseUint(clStr, 10, 64)
	if err != nil {
		return nil, httperr.New(httperr.InvalidRequest)
	}
	if contentLength == 0 {
		return nil, nil
	}
	if contentLength > maxContentLength {
		return nil, httperr.New(httperr.BodyTooLarge)
	}

	buf := make([]byte, contentLength)
	if _, err := readFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func remotePort(conn net.Conn) int {
	_, portStr, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return 0
	}
	port, _ := strconv.Atoi(portStr)
	return port
}
