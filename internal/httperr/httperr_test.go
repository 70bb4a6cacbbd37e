package httperr

import (
	"errors"
	"testing"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{InvalidRequest, 400},
		{UnsupportedEncoding, 406},
		{UnsupportedMediaType, 415},
		{MalformedPayload, 400},
		{BodyTooLarge, 413},
		{VersionNotSupported, 505},
		{BadGateway, 502},
	}
	for _, c := range cases {
		t.Run(c.kind.String(), func(t *testing.T) {
			if got := c.kind.Status(); got != c.want {
				t.Errorf("Status() = %d, want %d", got, c.want)
			}
		})
	}
}

func TestErrorsIs(t *testing.T) {
	err := Wrap(BodyTooLarge, errors.New("1073741824 bytes"))
	if !errors.Is(err, BodyTooLargeErr) {
		t.Fatal("expected errors.Is to match on Kind")
	}
	if errors.Is(err, BadGatewayErr) {
		t.Fatal("did not expect errors.Is to match a different Kind")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(DecompressionError, cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected Unwrap chain to reach the cause")
	}
}
