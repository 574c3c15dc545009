package sha256

import "testing"

// TestHashDeterministic ensures equal input yields equal digests.
func TestHashDeterministic(t *testing.T) {
	t.Parallel()

	h := New()
	a, err := h.Hash([]byte("原文内容"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	b, err := h.Hash([]byte("原文内容"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if a != b {
		t.Fatalf("expected deterministic digests, got %s and %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

// TestHashDistinct ensures different input changes the digest.
func TestHashDistinct(t *testing.T) {
	t.Parallel()

	h := New()
	a, _ := h.Hash([]byte("one"))
	b, _ := h.Hash([]byte("two"))
	if a == b {
		t.Fatal("expected distinct digests for distinct input")
	}
}
