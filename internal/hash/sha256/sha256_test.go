package sha256

import "testing"

func TestSum(t *testing.T) {
	t.Parallel()

	h := New()
	got := h.Sum([]byte("abc"))
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("Sum() = %q, want %q", got, want)
	}
	if h.Sum([]byte("abc")) != got {
		t.Fatal("digest is not deterministic")
	}
	if h.Sum([]byte("abd")) == got {
		t.Fatal("distinct inputs produced the same digest")
	}
}
