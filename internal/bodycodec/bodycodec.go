// Package bodycodec implements the gzip/brotli encode and decode helpers
// shared by request body ingestion (internal/httpparse) and response
// assembly (internal/httpresponse), grounded on util.rs's use of
// flate2::{GzEncoder, GzDecoder} and brotli::{BrotliCompress, BrotliDecompress}.
package bodycodec

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/andybalholm/brotli"
)

const (
	Gzip   = "gzip"
	Brotli = "br"
)

// Decode decompresses content per the named encoding. An unrecognized
// encoding is the caller's responsibility to reject before calling Decode.
func Decode(encoding string, content []byte) ([]byte, error) {
	switch encoding {
	case Gzip:
		r, err := gzip.NewReader(bytes.NewReader(content))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case Brotli:
		r := brotli.NewReader(bytes.NewReader(content))
		return io.ReadAll(r)
	default:
		return content, nil
	}
}

// Encode compresses content per the named encoding. Grounded on
// send_response()'s "attempt, and fall back to uncompressed on failure"
// behavior: callers should send the content unmodified if Encode errors,
// logging the failure, rather than aborting the response.
func Encode(encoding string, content []byte) ([]byte, error) {
	switch encoding {
	case Gzip:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(content); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case Brotli:
		var buf bytes.Buffer
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(content); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return content, nil
	}
}
