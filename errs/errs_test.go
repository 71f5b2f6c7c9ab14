package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		kind Kind
		msg  string
	}{
		{"plain", base, Internal, ""},
		{"tagged", New(NotFound, "course not found"), NotFound, "course not found"},
		{"wrapped", fmt.Errorf("fetching: %w", Wrap(Upstream, base, "stripe unavailable")), Upstream, "stripe unavailable"},
		{"formatted", Newf(Conflict, "subscription[%s] is completed", "x"), Conflict, "subscription[x] is completed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.kind {
				t.Fatalf("expected kind %s, got %s", tt.kind, got)
			}
			if got := Message(tt.err); got != tt.msg {
				t.Fatalf("expected message %q, got %q", tt.msg, got)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(Internal, base, "inserting order")

	if !errors.Is(err, base) {
		t.Fatal("expected wrapped error to match its cause")
	}
	if err.Error() != "inserting order: boom" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
	if !Is(err, Internal) || Is(err, NotFound) {
		t.Fatal("Is reported the wrong kind")
	}
}
