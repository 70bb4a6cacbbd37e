package endpoint

import (
	"net"

	"github.com/fooooter/drain/internal/cookie"
	"github.com/fooooter/drain/pkg/endpointapi"
)

// Result is what Invoke returns: either a body (possibly nil/empty) or a
// fall-through/panic signal the dispatcher must act on.
type Result struct {
	Content     []byte
	FallThrough bool // true when the plugin has no such symbol
	Panicked    bool // true when the handler panicked; caller must abort the connection
	PanicValue  any
}

// Invoke looks up endpoint and calls it, recovering from panics the way
// endpoints.rs's endpoint() catches a Rust panic across the FFI boundary:
// a panicking handler must not bring down the whole process, but per
// spec.md §4.5/§5 the *connection* is not safely recoverable afterward, so
// the caller is expected to send an Internal Server Error page and close.
func (l *Loader) Invoke(
	endpoint string,
	req endpointapi.RequestData,
	requestHeaders map[string]string,
	responseHeaders map[string]string,
	setCookie map[string]cookie.SetCookie,
	status *int,
	bindHost string,
	localIP net.IP,
	bindPort string,
	remoteIP net.IP,
	remotePort int,
) (res Result) {
	sym, err := l.Lookup(endpoint)
	if err != nil {
		res.FallThrough = true
		return res
	}

	// An exported plugin function has the unnamed func type, never the
	// named endpointapi.Endpoint type, so the assertion spells the signature.
	fn, ok := sym.(func(endpointapi.RequestData, map[string]string, map[string]string, map[string]cookie.SetCookie, *int, string, net.IP, string, net.IP, int) []byte)
	if !ok {
		log.Errorf("endpoint %q does not match the expected Endpoint signature", endpoint)
		res.FallThrough = true
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic inside dynamic endpoint %q: %v", endpoint, r)
			res.Panicked = true
			res.PanicValue = r
		}
	}()

	res.Content = fn(req, requestHeaders, responseHeaders, setCookie, status, bindHost, localIP, bindPort, remoteIP, remotePort)
	return res
}
