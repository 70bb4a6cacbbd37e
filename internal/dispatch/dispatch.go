// Package dispatch implements the Method Dispatcher (C7): per-method
// resource resolution, access control, and routing to a dynamic endpoint,
// the CGI bridge, a static file, or an error page — grounded on
// requests.rs's handle_get/handle_head/handle_post/handle_options.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fooooter/drain/internal/cgi"
	"github.com/fooooter/drain/internal/config"
	"github.com/fooooter/drain/internal/cookie"
	"github.com/fooooter/drain/internal/endpoint"
	"github.com/fooooter/drain/internal/errorpage"
	"github.com/fooooter/drain/internal/etag"
	"github.com/fooooter/drain/internal/httpparse"
	"github.com/fooooter/drain/internal/httpresponse"
	"github.com/fooooter/drain/internal/metrics"
	"github.com/fooooter/drain/pkg/endpointapi"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("drain.dispatch")

// ConnInfo carries the per-connection addressing data endpoints and CGI
// scripts receive but which the dispatcher itself never inspects.
type ConnInfo struct {
	LocalIP    net.IP
	RemoteIP   net.IP
	RemotePort int
	HTTPS      bool
}

// Dispatcher wires the config, endpoint loader, CGI bridge, ETag registry
// and metrics collectors every request is routed through.
type Dispatcher struct {
	Config    *config.Config
	Endpoints *endpoint.Loader
	CGI       *cgi.Bridge
	ETags     *etag.Registry
	Metrics   *metrics.Collectors
}

func New(cfg *config.Config, ep *endpoint.Loader, cgiBridge *cgi.Bridge, etags *etag.Registry, m *metrics.Collectors) *Dispatcher {
	return &Dispatcher{Config: cfg, Endpoints: ep, CGI: cgiBridge, ETags: etags, Metrics: m}
}

// Dispatch routes a fully parsed request to its handler and writes the
// response to w.
func (d *Dispatcher) Dispatch(w io.Writer, req *httpparse.Request, body *httpparse.RequestBody, cgiData *httpparse.CGIData, conn ConnInfo) error {
	start := time.Now()
	status := 200
	defer func() {
		if d.Metrics != nil {
			d.Metrics.RequestsTotal.WithLabelValues(string(req.Method), itoa(status)).Inc()
			d.Metrics.RequestDuration.WithLabelValues(string(req.Method)).Observe(time.Since(start).Seconds())
		}
	}()

	var err error
	switch req.Method {
	case httpparse.GET:
		status, err = d.handleBodyless(w, req, conn, true)
	case httpparse.HEAD:
		status, err = d.handleBodyless(w, req, conn, false)
	case httpparse.POST, httpparse.PUT, httpparse.PATCH, httpparse.DELETE:
		status, err = d.handleBodyful(w, req, body, cgiData, conn)
	case httpparse.OPTIONS:
		status, err = 204, d.handleOptions(w)
	default:
		status, err = 405, d.sendSimple(w, 405, map[string]string{"Allow": d.allowHeader()})
	}
	return err
}

func (d *Dispatcher) handleOptions(w io.Writer) error {
	headers := map[string]string{"Allow": d.allowHeader()}
	return httpresponse.Send(w, httpresponse.Options{
		Status: 204, Headers: headers,
		GlobalHeaders: d.Config.GlobalResponseHeaders, EnableServerHeader: d.Config.EnableServerHeader,
	})
}

func (d *Dispatcher) allowHeader() string {
	base := "GET, HEAD, POST, OPTIONS"
	if d.Endpoints != nil {
		base += ", PUT, DELETE, PATCH"
	}
	return base
}

func (d *Dispatcher) sendSimple(w io.Writer, status int, headers map[string]string) error {
	return httpresponse.Send(w, httpresponse.Options{
		Status: status, Headers: headers,
		GlobalHeaders: d.Config.GlobalResponseHeaders, EnableServerHeader: d.Config.EnableServerHeader,
	})
}

// resolveResource implements step 1 of §4.7: strip the leading slash,
// substitute index.html/index for an empty resource.
func (d *Dispatcher) resolveResource(resource string) string {
	resource = strings.TrimPrefix(resource, "/")
	if resource == "" {
		if _, err := os.Stat(filepath.Join(d.Config.DocumentRoot, "index.html")); err == nil {
			return "index.html"
		}
		return "index"
	}
	return resource
}

func (d *Dispatcher) handleBodyless(w io.Writer, req *httpparse.Request, conn ConnInfo, withBody bool) (int, error) {
	resource := d.resolveResource(req.Resource)
	responseHeaders := map[string]string{}

	if d.Config.AccessControl != nil && !d.Config.AccessControl.IsAccessAllowed(resource) {
		return d.renderDeny(w, req, withBody, conn)
	}

	if contains(d.Config.DynamicPages, resource) {
		var reqData endpointapi.RequestData
		if withBody {
			reqData = endpointapi.GetRequest{Params: req.Params, Headers: req.Headers}
		} else {
			reqData = endpointapi.HeadRequest{Headers: req.Headers}
		}
		status, handled, err := d.tryDynamic(w, resource, reqData, req.Headers, responseHeaders, withBody, conn)
		if err != nil {
			return 500, err
		}
		if handled {
			return status, nil
		}
	}

	if status, handled, err := d.tryCGI(w, req, nil, resource, conn, withBody); handled {
		return status, err
	}

	return d.tryStaticOrNotFound(w, req, resource, withBody, req.Method == httpparse.GET, conn)
}

func (d *Dispatcher) handleBodyful(w io.Writer, req *httpparse.Request, body *httpparse.RequestBody, cgiData *httpparse.CGIData, conn ConnInfo) (int, error) {
	resource := d.resolveResource(req.Resource)
	responseHeaders := map[string]string{}

	if d.Config.AccessControl != nil && !d.Config.AccessControl.IsAccessAllowed(resource) {
		return d.renderDeny(w, req, false, conn)
	}

	if contains(d.Config.DynamicPages, resource) {
		reqData := endpointapi.PostRequest{Headers: req.Headers, Data: formToStrings(body)}
		status, handled, err := d.tryDynamic(w, resource, reqData, req.Headers, responseHeaders, true, conn)
		if err != nil {
			return 500, err
		}
		if handled {
			return status, nil
		}
	}

	if status, handled, err := d.tryCGI(w, req, cgiData, resource, conn, true); handled {
		return status, err
	}

	// A resource handled by neither a dynamic endpoint nor the CGI bridge
	// is a static file: only url-encoded bodies make sense against it.
	if contentType := req.Headers["content-type"]; contentType != "" && contentType != "application/x-www-form-urlencoded" {
		headers := map[string]string{"Accept-Post": "application/x-www-form-urlencoded", "Vary": "Content-Type"}
		return 415, d.sendSimple(w, 415, headers)
	}

	return d.tryStaticOrNotFound(w, req, resource, true, false, conn)
}

// tryDynamic invokes the endpoint named resource and writes a response for
// every outcome except a DlSym-equivalent miss, which the caller treats as
// fall-through.
func (d *Dispatcher) tryDynamic(w io.Writer, resource string, reqData endpointapi.RequestData, reqHeaders, responseHeaders map[string]string, sendBody bool, conn ConnInfo) (status int, handled bool, err error) {
	if resource == "metrics" && d.Metrics != nil {
		content, contentType, err := d.Metrics.Render()
		if err != nil {
			return 500, true, d.sendSimple(w, 500, nil)
		}
		responseHeaders["Content-Type"] = contentType
		if !sendBody {
			responseHeaders["Content-Length"] = httpresponse.ContentLengthHeader(len(content))
			return 200, true, d.sendSimple(w, 200, responseHeaders)
		}
		return 200, true, httpresponse.Send(w, httpresponse.Options{
			Status: 200, Headers: responseHeaders, Content: content, ResourceType: httpresponse.ResourceDynamic,
			GlobalHeaders: d.Config.GlobalResponseHeaders, EnableServerHeader: d.Config.EnableServerHeader,
		})
	}

	if d.Endpoints == nil {
		return 0, false, nil
	}

	setCookie := map[string]cookie.SetCookie{}
	status = 200
	result := d.Endpoints.Invoke(resource, reqData, reqHeaders, responseHeaders, setCookie, &status,
		d.Config.BindHost, conn.LocalIP, d.Config.BindPort, conn.RemoteIP, conn.RemotePort)

	if d.Metrics != nil {
		outcome := "ok"
		if result.FallThrough {
			outcome = "fallthrough"
		} else if result.Panicked {
			outcome = "panic"
		}
		d.Metrics.EndpointInvocationsTotal.WithLabelValues(resource, outcome).Inc()
	}

	if result.FallThrough {
		return 0, false, nil
	}
	if result.Panicked {
		log.Errorf("dynamic endpoint %q panicked: %v", resource, result.PanicValue)
		if err := d.sendSimple(w, 500, map[string]string{"Content-Type": "text/html; charset=utf-8"}); err != nil {
			return 500, true, err
		}
		return 500, true, fmt.Errorf("dynamic endpoint %q panicked: %v", resource, result.PanicValue)
	}

	content := result.Content
	if _, hasLocation := responseHeaders["Location"]; !hasLocation {
		if _, hasLocation = responseHeaders["location"]; !hasLocation {
			// stays 200/whatever the handler set
		} else {
			status = 302
		}
	} else {
		status = 302
	}

	if !sendBody {
		if content != nil {
			responseHeaders["Content-Length"] = httpresponse.ContentLengthHeader(len(content))
		}
		return status, true, d.sendSimple(w, status, responseHeaders)
	}

	if content != nil {
		d.negotiateEncoding(content, responseHeaders, contentTypeGeneralType(responseHeaders["Content-Type"]), reqHeaders)
	}
	return status, true, httpresponse.Send(w, httpresponse.Options{
		Status: status, Headers: responseHeaders, Content: content,
		SetCookie: setCookie, ResourceType: httpresponse.ResourceDynamic,
		GlobalHeaders: d.Config.GlobalResponseHeaders, EnableServerHeader: d.Config.EnableServerHeader,
	})
}

// tryCGI routes to the CGI bridge when cgi.Bridge.ShouldHandle accepts
// resource: its extension is configured as CGI-handled, or walking its path
// reaches a file prefix.
func (d *Dispatcher) tryCGI(w io.Writer, req *httpparse.Request, cgiData *httpparse.CGIData, resource string, conn ConnInfo, _ bool) (status int, handled bool, err error) {
	if d.CGI == nil || d.Config.CGI == nil || !d.CGI.ShouldHandle(resource, d.Config.CGI.Extensions) {
		return 0, false, nil
	}

	query := encodeParams(req.Params)
	ctx := context.Background()
	result, err := d.CGI.Execute(ctx, "/"+resource, string(req.Method), query, req.Headers, cgiData, conn.LocalIP, conn.RemoteIP, conn.RemotePort, conn.HTTPS)
	if d.Metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "bad_gateway"
		} else if result.Status == cgi.Unavailable {
			outcome = "unavailable"
		}
		d.Metrics.CGIInvocationsTotal.WithLabelValues(outcome).Inc()
	}
	if err != nil {
		return 502, true, d.sendSimple(w, 502, map[string]string{"Content-Type": "text/html; charset=utf-8"})
	}
	if result.Status == cgi.Unavailable {
		return 0, false, nil
	}

	return result.ResponseStatus, true, httpresponse.Send(w, httpresponse.Options{
		Status: result.ResponseStatus, Headers: result.ResponseHeaders, Content: result.Content,
		ResourceType: httpresponse.ResourceDynamic,
		GlobalHeaders: d.Config.GlobalResponseHeaders, EnableServerHeader: d.Config.EnableServerHeader,
	})
}

func (d *Dispatcher) tryStaticOrNotFound(w io.Writer, req *httpparse.Request, resource string, sendBody, isGet bool, conn ConnInfo) (int, error) {
	fullPath := filepath.Join(d.Config.DocumentRoot, resource)

	info, statErr := os.Stat(fullPath)
	if statErr == nil && info.IsDir() {
		if isGet || !sendBody {
			content, err := errorpage.IndexOf(d.Config.DocumentRoot, strings.TrimSuffix(resource, "/"), d.Config.AccessControl)
			if err == nil {
				headers := map[string]string{"Content-Type": "text/html; charset=utf-8"}
				if !sendBody {
					headers["Content-Length"] = httpresponse.ContentLengthHeader(len(content))
					return 200, d.sendSimple(w, 200, headers)
				}
				return 200, httpresponse.Send(w, httpresponse.Options{
					Status: 200, Headers: headers, Content: content, ResourceType: httpresponse.ResourceStatic,
					GlobalHeaders: d.Config.GlobalResponseHeaders, EnableServerHeader: d.Config.EnableServerHeader,
					CacheMaxAge: d.Config.CacheMaxAge, ETags: d.ETags,
				})
			}
		}
		return d.sendNotFound(w, req, sendBody, conn)
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return d.sendNotFound(w, req, sendBody, conn)
	}

	guess := mimeGuess(resource)
	headers := map[string]string{"Content-Type": guess}

	if !sendBody {
		headers["Content-Length"] = httpresponse.ContentLengthHeader(len(content))
		return 200, d.sendSimple(w, 200, headers)
	}

	d.negotiateEncoding(content, headers, generalType(guess), req.Headers)

	status := 200
	var body []byte = content
	if len(content) == 0 {
		body = nil
		if req.Method == httpparse.POST {
			status = 204
		}
	}

	return status, httpresponse.Send(w, httpresponse.Options{
		Status: status, Headers: headers, Content: body, ResourceType: httpresponse.ResourceStatic,
		GlobalHeaders: d.Config.GlobalResponseHeaders, EnableServerHeader: d.Config.EnableServerHeader,
		CacheMaxAge: d.Config.CacheMaxAge, ETags: d.ETags,
	})
}

func (d *Dispatcher) sendNotFound(w io.Writer, req *httpparse.Request, sendBody bool, conn ConnInfo) (int, error) {
	if !sendBody {
		return 404, d.sendSimple(w, 404, nil)
	}

	if d.Endpoints != nil {
		responseHeaders := map[string]string{}
		reqData := endpointapi.GetRequest{Headers: req.Headers}
		status, handled, err := d.tryDynamic(w, "not_found", reqData, req.Headers, responseHeaders, true, conn)
		if handled {
			return status, err
		}
	}

	content := errorpage.Render(d.Config.DocumentRoot, 404)
	return 404, httpresponse.Send(w, httpresponse.Options{
		Status: 404, Headers: map[string]string{"Content-Type": "text/html; charset=utf-8"}, Content: content,
		GlobalHeaders: d.Config.GlobalResponseHeaders, EnableServerHeader: d.Config.EnableServerHeader,
	})
}

func (d *Dispatcher) renderDeny(w io.Writer, req *httpparse.Request, sendBody bool, conn ConnInfo) (int, error) {
	denyStatus := 404
	if d.Config.AccessControl != nil {
		denyStatus = d.Config.AccessControl.DenyActionStatus()
	}
	endpointName := "not_found"
	if denyStatus == 403 {
		endpointName = "forbidden"
	}

	if sendBody && d.Endpoints != nil {
		responseHeaders := map[string]string{}
		reqData := endpointapi.GetRequest{Headers: req.Headers}
		status, handled, err := d.tryDynamicStatus(w, endpointName, reqData, req.Headers, responseHeaders, denyStatus, conn)
		if handled {
			return status, err
		}
	}

	if !sendBody {
		return denyStatus, d.sendSimple(w, denyStatus, nil)
	}

	content := errorpage.Render(d.Config.DocumentRoot, denyStatus)
	return denyStatus, httpresponse.Send(w, httpresponse.Options{
		Status: denyStatus, Headers: map[string]string{"Content-Type": "text/html; charset=utf-8"}, Content: content,
		GlobalHeaders: d.Config.GlobalResponseHeaders, EnableServerHeader: d.Config.EnableServerHeader,
	})
}

// tryDynamicStatus is tryDynamic with the deny status already decided
// rather than defaulted to 200, matching handle_get's deny_action flow.
func (d *Dispatcher) tryDynamicStatus(w io.Writer, resource string, reqData endpointapi.RequestData, reqHeaders, responseHeaders map[string]string, status int, conn ConnInfo) (int, bool, error) {
	setCookie := map[string]cookie.SetCookie{}
	s := status
	result := d.Endpoints.Invoke(resource, reqData, reqHeaders, responseHeaders, setCookie, &s,
		d.Config.BindHost, conn.LocalIP, d.Config.BindPort, conn.RemoteIP, conn.RemotePort)

	if result.FallThrough {
		return 0, false, nil
	}
	if result.Panicked {
		if err := d.sendSimple(w, 500, nil); err != nil {
			return 500, true, err
		}
		return 500, true, fmt.Errorf("dynamic endpoint %q panicked: %v", resource, result.PanicValue)
	}

	content := result.Content
	if content != nil {
		d.negotiateEncoding(content, responseHeaders, contentTypeGeneralType(responseHeaders["Content-Type"]), reqHeaders)
	}
	return s, true, httpresponse.Send(w, httpresponse.Options{
		Status: s, Headers: responseHeaders, Content: content, SetCookie: setCookie,
		ResourceType: httpresponse.ResourceDynamic,
		GlobalHeaders: d.Config.GlobalResponseHeaders, EnableServerHeader: d.Config.EnableServerHeader,
	})
}

func (d *Dispatcher) negotiateEncoding(content []byte, headers map[string]string, generalMimeType string, reqHeaders map[string]string) {
	accept := reqHeaders["accept-encoding"]
	if accept == "" {
		return
	}
	mimeGuess := headers["Content-Type"]
	if enc := d.Config.ResponseEncoding(content, mimeGuess, generalMimeType, accept); enc != "" {
		headers["Content-Encoding"] = enc
		headers["Vary"] = "Accept-Encoding"
	}
}

func mimeGuess(resource string) string {
	ext := filepath.Ext(resource)
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func generalType(mimeType string) string {
	before, _, _ := strings.Cut(mimeType, "/")
	return before
}

func contentTypeGeneralType(mimeType string) string {
	if mimeType == "" {
		return ""
	}
	return generalType(mimeType)
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func formToStrings(body *httpparse.RequestBody) map[string]string {
	if body == nil {
		return nil
	}
	switch body.Kind {
	case httpparse.BodyXWWWFormUrlEncoded:
		return body.Form
	default:
		return nil
	}
}

func encodeParams(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	var b strings.Builder
	first := true
	for k, v := range params {
		if !first {
			b.WriteByte('&')
		}
		first = false
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	return b.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}
