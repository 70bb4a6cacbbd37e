// Package endpointapi is the ABI shared between drain and the Go plugins it
// loads as dynamically-loaded in-process endpoint handlers. A plugin built
// against this package exports functions matching the Endpoint type below,
// named after the resource they serve (with '/' and '\' normalized to '_' —
// see internal/endpoint for the loader side).
//
// Grounded on original_source/dynamic_pages/src/lib.rs's RequestData enum
// and original_source/src/endpoints.rs's Endpoint function-pointer type.
package endpointapi

import (
	"net"

	"github.com/fooooter/drain/internal/cookie"
)

// RequestData is a tagged union over the three request shapes an endpoint
// can be invoked with. It is implemented by GetRequest, HeadRequest and
// PostRequest; the unexported marker method keeps it closed to this
// package, the way the Rust enum is closed by construction.
type RequestData interface {
	isRequestData()
}

type GetRequest struct {
	Params  map[string]string
	Headers map[string]string
}

type HeadRequest struct {
	Headers map[string]string
}

type PostRequest struct {
	Headers map[string]string
	Data    map[string]string
}

func (GetRequest) isRequestData()  {}
func (HeadRequest) isRequestData() {}
func (PostRequest) isRequestData() {}

// Endpoint is the function signature every exported plugin symbol must
// match. It returns the response body (nil for no body) and must never
// panic across the plugin boundary without expecting the host to treat it
// as an Internal Server Error and close the connection — see
// internal/endpoint's recover() wrapper.
type Endpoint func(
	request RequestData,
	requestHeaders map[string]string,
	responseHeaders map[string]string,
	setCookie map[string]cookie.SetCookie,
	status *int,
	bindHost string,
	localIP net.IP,
	bindPort string,
	remoteIP net.IP,
	remotePort int,
) []byte
