package claims

import (
	"context"
	"testing"

	"github.com/irsalhamdi/e-learning/errs"
)

func TestClaims(t *testing.T) {
	if _, err := Get(context.Background()); !errs.Is(err, errs.Unauthorized) {
		t.Fatalf("expected unauthorized without claims, got %v", err)
	}

	ctx := Set(context.Background(), Claims{UserID: "u1", Role: RoleInstructor})

	c, err := Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c.IsAdmin() {
		t.Fatal("instructor reported as admin")
	}
	if !c.CanAuthor() {
		t.Fatal("instructor should be able to author content")
	}
	if c.Owns("u2") {
		t.Fatal("instructor should not own another user's resource")
	}

	admin := Claims{UserID: "a", Role: RoleAdmin}
	if !admin.Owns("u2") {
		t.Fatal("admin should own every resource")
	}
	if (Claims{Role: RoleUser}).CanAuthor() {
		t.Fatal("plain users cannot author content")
	}
}
