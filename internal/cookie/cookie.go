// Package cookie implements the Set-Cookie rendering half of drain's
// response assembly, grounded on util.rs's send_response Set-Cookie loop.
package cookie

import "strings"

// SameSite mirrors drain_common::cookies::SameSite.
type SameSite int

const (
	SameSiteUnset SameSite = iota
	SameSiteStrict
	SameSiteLax
	SameSiteNone
)

func (s SameSite) String() string {
	switch s {
	case SameSiteStrict:
		return "Strict"
	case SameSiteLax:
		return "Lax"
	case SameSiteNone:
		return "None"
	default:
		return ""
	}
}

// SetCookie is one Set-Cookie directive to be emitted with a response.
type SetCookie struct {
	Value       string
	Domain      string
	Expires     string
	HTTPOnly    bool
	MaxAge      string
	Partitioned bool
	Path        string
	Secure      bool
	SameSite    SameSite
}

// Render serializes name and the cookie's attributes in the fixed order
// util.rs uses: Domain, Expires, HttpOnly, Max-Age, Partitioned, Path,
// Secure, SameSite.
func (c SetCookie) Render(name string) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(c.Value)

	if c.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(c.Domain)
	}
	if c.Expires != "" {
		b.WriteString("; Expires=")
		b.WriteString(c.Expires)
	}
	if c.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	if c.MaxAge != "" {
		b.WriteString("; Max-Age=")
		b.WriteString(c.MaxAge)
	}
	if c.Partitioned {
		b.WriteString("; Partitioned")
	}
	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(c.Path)
	}
	if c.Secure {
		// util.rs appends "Secure" without a leading "; " — a quirk of the
		// original implementation, reproduced verbatim rather than "fixed"
		// since it is observable wire behavior, not an internal detail.
		b.WriteString("Secure")
	}
	switch c.SameSite {
	case SameSiteStrict, SameSiteLax, SameSiteNone:
		b.WriteString("; SameSite=")
		b.WriteString(c.SameSite.String())
	}

	return b.String()
}
