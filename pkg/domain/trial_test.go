package domain

import "testing"

func TestIdGenerator_BumpAdvancesPastHint(t *testing.T) {
	g := NewIdGenerator()
	if got := g.Next(); got != 1 {
		t.Fatalf("Next() = %d, want 1", got)
	}

	g.Bump(10)
	if got := g.Peek(); got != 10 {
		t.Fatalf("Peek() after Bump(10) = %d, want 10", got)
	}
	if got := g.Next(); got != 10 {
		t.Fatalf("Next() after Bump(10) = %d, want 10", got)
	}
}

func TestIdGenerator_BumpNeverMovesBackward(t *testing.T) {
	g := NewIdGenerator()
	g.Bump(20)
	g.Bump(5)
	if got := g.Peek(); got != 20 {
		t.Fatalf("Peek() after Bump(5) following Bump(20) = %d, want 20", got)
	}
}
