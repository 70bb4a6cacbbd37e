package httpparse

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/fooooter/drain/internal/bodycodec"
	"github.com/fooooter/drain/internal/httperr"
)

// BodyKind tags the shape a parsed request body takes, mirroring
// drain_common::RequestBody.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyOctetStream
	BodyXWWWFormUrlEncoded
	BodyPlain
	BodyFormData
)

// FormDataValue is one multipart/form-data field.
type FormDataValue struct {
	Filename *string
	Headers  map[string]string
	Value    []byte
}

// RequestBody is the parsed and decoded body of a POST/PUT/PATCH/DELETE
// request.
type RequestBody struct {
	Kind          BodyKind
	Octet         []byte
	Form          map[string]string
	Plain         string
	MultipartForm map[string]FormDataValue
}

// CGIData is the raw (decompressed, undecoded) payload and declared
// content type, passed through to the CGI bridge as-is regardless of how
// httpparse itself decoded the body — grounded on util.rs's CGIData.
type CGIData struct {
	Data        []byte
	ContentType string
}

// IngestBody implements the body half of receive_request(): it bounds,
// decompresses and content-type-dispatches the request payload. body is the
// payload the caller has already read from the connection.
func IngestBody(headers map[string]string, body []byte, maxContentLength uint64, supportedEncodings []string) (*RequestBody, *CGIData, error) {
	clStr, ok := headers["content-length"]
	if !ok || clStr == "" {
		clStr = "0"
	}
	contentLength, err := strconv.ParseUint(clStr, 10, 64)
	if err != nil {
		return nil, nil, httperr.New(httperr.InvalidRequest)
	}
	if contentLength == 0 {
		return nil, nil, nil
	}
	if contentLength > maxContentLength {
		return nil, nil, httperr.New(httperr.BodyTooLarge)
	}

	payload := body
	if enc, has := headers["content-encoding"]; has {
		if !containsStr(supportedEncodings, enc) {
			return nil, nil, httperr.New(httperr.UnsupportedEncoding)
		}
		if enc != bodycodec.Gzip && enc != bodycodec.Brotli {
			return nil, nil, httperr.New(httperr.UnsupportedEncoding)
		}
		decoded, err := bodycodec.Decode(enc, body)
		if err != nil {
			return nil, nil, httperr.Wrap(httperr.DecompressionError, err)
		}
		payload = decoded
	}

	contentType, hasType := headers["content-type"]
	if !hasType {
		return nil, nil, httperr.New(httperr.UnsupportedMediaType)
	}

	switch {
	case contentType == "application/octet-stream":
		return &RequestBody{Kind: BodyOctetStream, Octet: payload}, &CGIData{Data: payload, ContentType: contentType}, nil

	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		form, err := parseURLEncoded(payload)
		if err != nil {
			return nil, nil, err
		}
		return &RequestBody{Kind: BodyXWWWFormUrlEncoded, Form: form}, &CGIData{Data: payload, ContentType: contentType}, nil

	case strings.HasPrefix(contentType, "text/plain"):
		return &RequestBody{Kind: BodyPlain, Plain: string(payload)}, &CGIData{Data: payload, ContentType: contentType}, nil

	default:
		cgiData := &CGIData{Data: payload, ContentType: contentType}
		mainType, boundaryRaw, ok := strings.Cut(contentType, ";")
		if !ok {
			return nil, nil, httperr.New(httperr.MalformedPayload)
		}
		if strings.TrimRight(mainType, " ") != "multipart/form-data" {
			return nil, cgiData, nil
		}

		_, bound, ok := strings.Cut(strings.TrimRight(boundaryRaw, ";"), "=")
		if !ok {
			return nil, nil, httperr.New(httperr.MalformedPayload)
		}
		bound = strings.Trim(bound, `"`)

		form, err := parseMultipart(payload, bound)
		if err != nil {
			return nil, nil, err
		}
		return &RequestBody{Kind: BodyFormData, MultipartForm: form}, cgiData, nil
	}
}

func parseURLEncoded(payload []byte) (map[string]string, error) {
	form := map[string]string{}
	for _, kv := range strings.Split(string(payload), "&") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, httperr.New(httperr.MalformedPayload)
		}
		nameDecoded, err1 := url.QueryUnescape(k)
		valueDecoded, err2 := url.QueryUnescape(v)
		if err1 != nil || err2 != nil {
			return nil, httperr.New(httperr.MalformedPayload)
		}
		if _, dup := form[nameDecoded]; dup {
			return nil, httperr.New(httperr.MalformedPayload)
		}
		form[nameDecoded] = valueDecoded
	}
	return form, nil
}

// parseMultipart implements the exact field-splitting algorithm of
// util.rs's multipart branch: split on "--{boundary}", then within each
// field split on CRLF and consume header lines until a blank separator
// line, taking the single line right after it as the field's value. This
// does not support a body containing embedded CRLF, matching the original.
func parseMultipart(payload []byte, boundary string) (map[string]FormDataValue, error) {
	marker := "--" + boundary
	parts := strings.Split(string(payload), marker)
	if len(parts) < 2 {
		return nil, httperr.New(httperr.MalformedPayload)
	}

	form := map[string]FormDataValue{}
	for _, field := range parts[1:] {
		if strings.TrimSpace(field) == "--" {
			break
		}

		lines := strings.Split(field, "\r\n")
		idx := 1
		if idx >= len(lines) {
			return nil, httperr.New(httperr.MalformedPayload)
		}
		headerLine := lines[idx]
		idx++

		fieldHeaders := map[string]string{}
		for headerLineRegex.MatchString(headerLine) {
			if idx >= len(lines) {
				return nil, httperr.New(httperr.MalformedPayload)
			}
			nextLine := lines[idx]
			idx++

			name, value, ok := strings.Cut(headerLine, ":")
			if !ok {
				return nil, httperr.New(httperr.MalformedPayload)
			}
			fieldHeaders[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
			headerLine = nextLine
		}

		contentDisp, hasCD := fieldHeaders["content-disposition"]
		if !hasCD || idx >= len(lines) {
			return nil, httperr.New(httperr.MalformedPayload)
		}
		fieldData := lines[idx]

		dispParts := strings.Split(contentDisp, ";")
		if len(dispParts) < 2 {
			return nil, httperr.New(httperr.MalformedPayload)
		}
		if strings.TrimLeft(dispParts[0], " ") != "form-data" || strings.TrimSpace(headerLine) != "" {
			return nil, httperr.New(httperr.MalformedPayload)
		}

		_, name, ok := strings.Cut(dispParts[1], "=")
		if !ok {
			return nil, httperr.New(httperr.MalformedPayload)
		}
		name = strings.Trim(name, `"`)

		var filename *string
		if len(dispParts) > 2 {
			_, fn, ok := strings.Cut(dispParts[2], "=")
			if !ok {
				return nil, httperr.New(httperr.MalformedPayload)
			}
			trimmed := strings.Trim(fn, `"`)
			filename = &trimmed
		}

		form[name] = FormDataValue{Filename: filename, Headers: fieldHeaders, Value: []byte(fieldData)}
	}

	return form, nil
}

func containsStr(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
