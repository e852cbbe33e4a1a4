package uuid

import "testing"

func TestNewID(t *testing.T) {
	t.Parallel()

	g := New()
	a, err := g.NewID()
	if err != nil {
		t.Fatalf("NewID() error: %v", err)
	}
	if len(a) != 36 {
		t.Fatalf("NewID() = %q, want canonical 36-char form", a)
	}
	b, err := g.NewID()
	if err != nil {
		t.Fatalf("NewID() error: %v", err)
	}
	if a == b {
		t.Fatal("consecutive IDs collided")
	}
}
