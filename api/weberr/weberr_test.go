package weberr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/irsalhamdi/e-learning/errs"
)

func TestFromKind(t *testing.T) {
	tests := []struct {
		err    error
		status int
		body   ErrorResponse
	}{
		{
			errs.New(errs.NotFound, "course not found"),
			http.StatusNotFound,
			ErrorResponse{"fail", "course not found"},
		},
		{
			fmt.Errorf("checkout: %w", errs.New(errs.Unauthorized, "order belongs to another user")),
			http.StatusUnauthorized,
			ErrorResponse{"fail", "order belongs to another user"},
		},
		{
			errs.Wrap(errs.Upstream, errors.New("timeout"), "payment provider call failed"),
			http.StatusBadGateway,
			ErrorResponse{"error", "payment provider call failed"},
		},
		{
			errs.Wrap(errs.Internal, errors.New("pq: relation missing"), "inserting order"),
			http.StatusInternalServerError,
			ErrorResponse{"error", "the server encountered a problem and could not process your request"},
		},
	}

	for _, tt := range tests {
		body, status := FromKind(tt.err)
		if status != tt.status {
			t.Fatalf("%v: expected status %d, got %d", tt.err, tt.status, status)
		}
		if diff := cmp.Diff(tt.body, *body); diff != "" {
			t.Fatalf("%v: body mismatch (-want +got):\n%s", tt.err, diff)
		}
	}
}

func TestResponseAndFields(t *testing.T) {
	err := BadRequest(errors.New("missing signature"), WithFields(map[string]any{"course_id": "c1"}))

	body, status, ok := Response(err)
	if !ok || status != http.StatusBadRequest {
		t.Fatalf("expected a 400 response, got %d (%v)", status, ok)
	}
	if got := body.(*ErrorResponse).Message; got != "bad request" {
		t.Fatalf("unexpected message %q", got)
	}

	fields, ok := Fields(err)
	if !ok || fields["course_id"] != "c1" {
		t.Fatalf("expected fields to be attached, got %v", fields)
	}
}
