package test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/irsalhamdi/e-learning/api/web"
	"github.com/irsalhamdi/e-learning/core/order"
	"github.com/irsalhamdi/e-learning/core/payment"
	"github.com/irsalhamdi/e-learning/core/product"
	"github.com/irsalhamdi/e-learning/core/promo"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/shopspring/decimal"
)

func TestPromoCreate(t *testing.T) {
	env := NewTestEnv(t, "promo_create_test")
	_, instructorToken := env.seedUser(t, "instructor")

	env.do(t, http.MethodPost, "/api/v1/promos", env.UserToken, promo.PromoNew{Percentage: 10}, http.StatusForbidden, nil)

	// Instructors are capped at 30 percent.
	env.do(t, http.MethodPost, "/api/v1/promos", instructorToken, promo.PromoNew{Code: "HUGE", Percentage: 40}, http.StatusBadRequest, nil)

	var p promo.Promo
	env.do(t, http.MethodPost, "/api/v1/promos", instructorToken, promo.PromoNew{Code: "fair", Percentage: 30}, http.StatusCreated, &p)
	if p.Code != "FAIR" || !p.Validated {
		t.Errorf("got promo %+v, want a validated FAIR", p)
	}

	env.do(t, http.MethodPost, "/api/v1/promos", env.AdminToken, promo.PromoNew{Code: "FAIR", Percentage: 50}, http.StatusConflict, nil)

	var gen promo.Promo
	env.do(t, http.MethodPost, "/api/v1/promos", env.AdminToken, promo.PromoNew{Percentage: 80}, http.StatusCreated, &gen)
	if len(gen.Code) != 8 {
		t.Errorf("got generated code %q, want 8 characters", gen.Code)
	}

	_, err := promo.Create(context.Background(), env.DB, promo.PromoNew{Percentage: 5}, env.UserID, 30, time.Now().UTC())
	if !errs.Is(err, errs.Unauthorized) {
		t.Fatalf("plain user created a promo: %v", err)
	}
}

func TestPromoValidation(t *testing.T) {
	env := NewTestEnv(t, "promo_validation_test")

	var p promo.Promo
	env.do(t, http.MethodPost, "/api/v1/promos", env.AdminToken, promo.PromoNew{Code: "SPRING", Percentage: 10}, http.StatusCreated, &p)

	toggle := func(action, want string) {
		t.Helper()

		var msg web.Message
		env.do(t, http.MethodPost, "/api/v1/promos/"+p.ID+"/"+action, env.AdminToken, nil, http.StatusOK, &msg)
		if msg.Message != want {
			t.Fatalf("%s: got %q, want %q", action, msg.Message, want)
		}
	}

	toggle("validate", "promo already validated")
	env.do(t, http.MethodPost, "/api/v1/promos/"+p.ID+"/invalidate", env.UserToken, nil, http.StatusForbidden, nil)
	toggle("invalidate", "promo invalidated")
	toggle("invalidate", "promo already invalidated")

	env.do(t, http.MethodGet, "/api/v1/promos/code/spring", env.UserToken, nil, http.StatusNotFound, nil)

	// An invalidated promo is dropped at checkout instead of failing it.
	a := env.createCourse(t, "Course P", "50")
	sess := env.checkoutPromo(t, p.ID, product.Course(a.ID))
	if !sess.GrandTotal.Equal(decimal.NewFromInt(50)) {
		t.Errorf("got grand total %s with an invalidated promo, want 50", sess.GrandTotal)
	}

	toggle("validate", "promo validated")

	var lk promo.Lookup
	env.do(t, http.MethodGet, "/api/v1/promos/code/spring", env.UserToken, nil, http.StatusOK, &lk)
	if lk.ID != p.ID || lk.Percentage != 10 {
		t.Errorf("got lookup %+v", lk)
	}

	b := env.createCourse(t, "Course Q", "50")
	sess = env.checkoutPromo(t, p.ID, product.Course(b.ID))
	if !sess.Total.Equal(decimal.NewFromInt(50)) || !sess.GrandTotal.Equal(decimal.NewFromInt(45)) {
		t.Errorf("got totals %s/%s, want 50/45", sess.Total, sess.GrandTotal)
	}
}

func TestPromoStaleUpdate(t *testing.T) {
	env := NewTestEnv(t, "promo_version_test")
	ctx := context.Background()

	env.do(t, http.MethodPost, "/api/v1/promos", env.AdminToken, promo.PromoNew{Code: "RACE", Percentage: 20}, http.StatusCreated, nil)
	p, err := promo.FetchByCode(ctx, env.DB, "RACE")
	if err != nil {
		t.Fatal(err)
	}

	stale := p
	p.Validated = false
	if err := promo.Update(ctx, env.DB, p); err != nil {
		t.Fatal(err)
	}

	stale.Validated = true
	if err := promo.Update(ctx, env.DB, stale); !errs.Is(err, errs.Conflict) {
		t.Fatalf("stale update: expected conflict, got %v", err)
	}

	got, err := promo.Fetch(ctx, env.DB, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Validated || got.Version != p.Version+1 {
		t.Fatalf("got promo %+v after the stale update", got)
	}
}

func (env *TestEnv) checkoutPromo(t *testing.T, promoID string, refs ...product.Ref) payment.Session {
	t.Helper()

	var sess payment.Session
	env.do(t, http.MethodPost, "/api/v1/processors/checkout", env.UserToken, payment.CheckoutNew{
		Products:    refs,
		PaymentType: order.Stripe,
		PromoID:     &promoID,
	}, http.StatusCreated, &sess)
	return sess
}
