package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/e-learning/api/web"
	"github.com/irsalhamdi/e-learning/core/claims"
	"github.com/irsalhamdi/e-learning/core/user"
	"github.com/irsalhamdi/e-learning/errs"
)

func TestAuthenticate(t *testing.T) {
	sm := scs.New()

	tok, err := Login(context.Background(), sm, user.User{ID: "u1", Role: claims.RoleInstructor})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if tok.Token == "" {
		t.Fatal("expected a session token")
	}

	var got claims.Claims
	h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		got, _ = claims.Get(ctx)
		return nil
	}

	run := func(bearer string, mw ...web.Middleware) error {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/users/current", nil)
		if bearer != "" {
			r.Header.Set("Authorization", "Bearer "+bearer)
		}
		chain := web.WrapMiddleware(append([]web.Middleware{Authenticate(sm)}, mw...), h)
		return chain(r.Context(), httptest.NewRecorder(), r)
	}

	if err := run(tok.Token); err != nil {
		t.Fatalf("authenticated request failed: %v", err)
	}
	if got.UserID != "u1" || got.Role != claims.RoleInstructor {
		t.Fatalf("unexpected claims %+v", got)
	}

	if err := run(tok.Token, Author()); err != nil {
		t.Fatalf("instructor rejected by Author: %v", err)
	}
	if err := run(tok.Token, Admin()); !errs.Is(err, errs.Forbidden) {
		t.Fatalf("expected forbidden for instructor on admin route, got %v", err)
	}
	if err := run(""); !errs.Is(err, errs.Unauthorized) {
		t.Fatalf("expected unauthorized without token, got %v", err)
	}
	if err := run("does-not-exist"); !errs.Is(err, errs.Unauthorized) {
		t.Fatalf("expected unauthorized for unknown token, got %v", err)
	}
}

func TestIdentify(t *testing.T) {
	sm := scs.New()

	tok, err := Login(context.Background(), sm, user.User{ID: "u2", Role: claims.RoleUser})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	run := func(bearer string) (claims.Claims, error) {
		var got claims.Claims
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			got, _ = claims.Get(ctx)
			return nil
		}

		r := httptest.NewRequest(http.MethodGet, "/api/v1/academies", nil)
		if bearer != "" {
			r.Header.Set("Authorization", "Bearer "+bearer)
		}
		chain := web.WrapMiddleware([]web.Middleware{Identify(sm)}, h)
		err := chain(r.Context(), httptest.NewRecorder(), r)
		return got, err
	}

	got, err := run("")
	if err != nil || got.UserID != "" {
		t.Fatalf("anonymous request: claims %+v, err %v", got, err)
	}

	got, err = run(tok.Token)
	if err != nil || got.UserID != "u2" {
		t.Fatalf("identified request: claims %+v, err %v", got, err)
	}
}
