package ids

import "testing"

func TestNew_Monotonic(t *testing.T) {
	prev := New()
	for i := 0; i < 1000; i++ {
		next := New()
		if next <= prev {
			t.Fatalf("ids not increasing: %q then %q", prev, next)
		}
		if len(next) != 26 {
			t.Fatalf("len: got %d, want 26", len(next))
		}
		prev = next
	}
}
