package tag

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalize(t *testing.T) {
	got := Normalize([]string{" Go ", "backend", "go", "", "  ", "Databases"})
	exp := []string{"backend", "databases", "go"}

	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("normalized tags mismatch (-want +got):\n%s", diff)
	}
}
