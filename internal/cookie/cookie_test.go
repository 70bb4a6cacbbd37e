package cookie

import "testing"

func TestRenderFullAttributeOrder(t *testing.T) {
	c := SetCookie{
		Value:       "abc123",
		Domain:      "example.com",
		Expires:     "Wed, 21 Oct 2026 07:28:00 GMT",
		HTTPOnly:    true,
		MaxAge:      "3600",
		Partitioned: true,
		Path:        "/",
		Secure:      true,
		SameSite:    SameSiteLax,
	}

	want := `session=abc123; Domain=example.com; Expires=Wed, 21 Oct 2026 07:28:00 GMT; HttpOnly; Max-Age=3600; Partitioned; Path=/Secure; SameSite=Lax`
	if got := c.Render("session"); got != want {
		t.Errorf("Render() =\n%q\nwant\n%q", got, want)
	}
}

func TestRenderMinimal(t *testing.T) {
	c := SetCookie{Value: "x"}
	if got := c.Render("id"); got != "id=x" {
		t.Errorf("Render() = %q, want %q", got, "id=x")
	}
}
