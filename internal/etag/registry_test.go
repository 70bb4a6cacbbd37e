package etag

import "testing"

func TestInsertAndContains(t *testing.T) {
	r := New(2)
	r.Insert("a")
	if !r.Contains("a") {
		t.Fatal("expected a to be present")
	}
	if r.Contains("b") {
		t.Fatal("did not expect b to be present")
	}
}

func TestFIFOEviction(t *testing.T) {
	r := New(2)
	r.Insert("a")
	r.Insert("b")
	r.Insert("c") // evicts "a"

	if r.Contains("a") {
		t.Error("expected a to have been evicted")
	}
	if !r.Contains("b") || !r.Contains("c") {
		t.Error("expected b and c to still be present")
	}
}

func TestGenerateIsStable(t *testing.T) {
	tag1 := Generate([]byte("hello"))
	tag2 := Generate([]byte("hello"))
	if tag1 != tag2 {
		t.Errorf("expected stable ETag, got %q and %q", tag1, tag2)
	}
	if Generate([]byte("world")) == tag1 {
		t.Error("expected different content to produce different ETags")
	}
}
