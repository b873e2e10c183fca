package sentence

import "testing"

func TestAppendSpacing(t *testing.T) {
	var b Buffer
	b.Append("hi")
	if got := b.String(); got != "hi" {
		t.Fatalf("expected %q, got %q", "hi", got)
	}
	b.Append("there")
	if got := b.String(); got != "hi there" {
		t.Fatalf("expected %q, got %q", "hi there", got)
	}
	b.AppendSpace()
	b.Append("you")
	if got := b.String(); got != "hi there you" {
		t.Fatalf("append after trailing space should not double it, got %q", got)
	}
}

func TestAppendSpaceAllowsRuns(t *testing.T) {
	var b Buffer
	b.AppendSpace()
	b.AppendSpace()
	if got := b.String(); got != "  " {
		t.Fatalf("expected two spaces, got %q", got)
	}
}

func TestBackspace(t *testing.T) {
	var b Buffer
	b.Backspace()
	if got := b.String(); got != "" {
		t.Fatalf("backspace on empty should stay empty, got %q", got)
	}
	b.Append("AB")
	b.Backspace()
	if got := b.String(); got != "A" {
		t.Fatalf("expected %q, got %q", "A", got)
	}
	b.Append("é")
	b.Backspace()
	if got := b.String(); got != "A " {
		t.Fatalf("expected multibyte rune removed whole, got %q", got)
	}
}

func TestClearIdempotent(t *testing.T) {
	var b Buffer
	b.Append("hello")
	b.Clear()
	b.Clear()
	if b.String() != "" || b.Len() != 0 {
		t.Fatalf("expected empty buffer, got %q", b.String())
	}
	b.Append("again")
	if got := b.String(); got != "again" {
		t.Fatalf("expected no leading space after clear, got %q", got)
	}
}
