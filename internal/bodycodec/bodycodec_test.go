package bodycodec

import (
	"bytes"
	"testing"
)

func TestGzipRoundTrip(t *testing.T) {
	orig := []byte("the quick brown fox jumps over the lazy dog")
	enc, err := Encode(Gzip, orig)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dec, err := Decode(Gzip, enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(dec, orig) {
		t.Errorf("round trip mismatch: got %q want %q", dec, orig)
	}
}

func TestBrotliRoundTrip(t *testing.T) {
	orig := []byte("the quick brown fox jumps over the lazy dog")
	enc, err := Encode(Brotli, orig)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dec, err := Decode(Brotli, enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(dec, orig) {
		t.Errorf("round trip mismatch: got %q want %q", dec, orig)
	}
}

func TestDecodeUnknownEncodingPassesThrough(t *testing.T) {
	orig := []byte("unchanged")
	got, err := Decode("identity", orig)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got, orig) {
		t.Errorf("expected passthrough, got %q", got)
	}
}
