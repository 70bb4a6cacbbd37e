package endpoint

import "testing"

func TestNormalizeSymbol(t *testing.T) {
	cases := map[string]string{
		"not_found":      "not_found",
		"api/users":      "api_users",
		"a/b\\c":         "a_b_c",
		"index":          "index",
	}
	for in, want := range cases {
		if got := NormalizeSymbol(in); got != want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpenWithoutLibraryConfigured(t *testing.T) {
	l, err := Open("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l != nil {
		t.Fatal("expected a nil Loader when no library is configured")
	}
}
