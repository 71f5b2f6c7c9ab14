package test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/irsalhamdi/e-learning/core/course"
	"github.com/irsalhamdi/e-learning/core/order"
	"github.com/irsalhamdi/e-learning/core/payment"
	"github.com/irsalhamdi/e-learning/core/product"
	"github.com/irsalhamdi/e-learning/core/subscription"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
)

const period = 30 * 24 * time.Hour

func TestStripeSubscription(t *testing.T) {
	env := NewTestEnv(t, "stripe_subscription_test")

	c := env.createSubscribable(t, "Course S", "15")
	oneOff := env.createCourse(t, "Course T", "15")

	// Products must be published before they can be subscribed to.
	env.do(t, http.MethodPost, "/api/v1/processors/subscribe", env.UserToken, subscribeNew(c.ID), http.StatusBadRequest, nil)

	env.publish(t, product.Course(c.ID))
	env.publish(t, product.Course(oneOff.ID))

	env.do(t, http.MethodPost, "/api/v1/processors/subscribe", env.UserToken, subscribeNew(oneOff.ID), http.StatusBadRequest, nil)

	sess := env.subscribe(t, c.ID)
	if !sess.Total.Equal(decimal.NewFromInt(15)) {
		t.Errorf("got total %s, want 15", sess.Total)
	}

	subs := env.subscriptions(t, env.UserToken)
	if len(subs) != 1 || subs[0].Status != subscription.StatusPending || subs[0].Frequency != subscription.Monthly {
		t.Fatalf("got subscriptions %+v, want one pending monthly", subs)
	}

	subRef := "sub_" + sess.ID
	env.Stripe.subscribe(subRef, env.Stripe.customerOf(sess.ID))

	// The session of a subscription is settled by its first invoice.
	env.webhook(t, "evt_session", "checkout.session.completed", map[string]any{
		"id":       sess.ID,
		"object":   "checkout.session",
		"mode":     stripe.CheckoutSessionModeSubscription,
		"customer": env.Stripe.customerOf(sess.ID),
	}, http.StatusNoContent)
	if n := len(env.orders(t, env.UserToken)); n != 0 {
		t.Fatalf("got %d orders before the first invoice, want 0", n)
	}

	env.webhook(t, "evt_invoice_1", "invoice.paid", invoice("in_1", subRef, stripe.InvoiceBillingReasonSubscriptionCreate), http.StatusNoContent)

	if n := len(env.orders(t, env.UserToken)); n != 1 {
		t.Fatalf("got %d orders after the first invoice, want 1", n)
	}
	first := env.subscriptions(t, env.UserToken)[0]
	if first.Status != subscription.StatusCompleted {
		t.Fatalf("subscription is %s after the first invoice", first.Status)
	}

	env.webhook(t, "evt_invoice_2", "invoice.paid", invoice("in_2", subRef, stripe.InvoiceBillingReasonSubscriptionCycle), http.StatusNoContent)
	env.webhook(t, "evt_invoice_2", "invoice.paid", invoice("in_2", subRef, stripe.InvoiceBillingReasonSubscriptionCycle), http.StatusNoContent)

	ords := env.orders(t, env.UserToken)
	if len(ords) != 2 {
		t.Fatalf("got %d orders after renewal, want 2", len(ords))
	}
	for _, o := range ords {
		if !o.Total.Equal(decimal.NewFromInt(15)) || o.PaymentType != order.Stripe {
			t.Errorf("unexpected order %+v", o)
		}
	}

	renewed := env.subscriptions(t, env.UserToken)[0]
	if d := renewed.ExpiresAt.Sub(first.ExpiresAt); d != period {
		t.Errorf("renewal extended expiry by %v, want %v", d, period)
	}
}

func TestInvoiceBeforeSubscriptionStored(t *testing.T) {
	env := NewTestEnv(t, "invoice_fallback_test")

	c := env.createSubscribable(t, "Course U", "20")
	env.publish(t, product.Course(c.ID))

	// The first invoice is delivered while the session is still being
	// created, before the checkout is stored.
	type result struct {
		status int
		err    error
	}
	early := make(chan result, 1)
	env.Stripe.setOnSession(func(id string) {
		env.Stripe.subscribe("sub_"+id, env.Stripe.customerOf(id))
		status, err := env.postEvent("evt_early_invoice", "invoice.paid",
			invoice("in_early", "sub_"+id, stripe.InvoiceBillingReasonSubscriptionCreate))
		early <- result{status, err}
	})
	sess := env.subscribe(t, c.ID)
	env.Stripe.setOnSession(nil)

	select {
	case r := <-early:
		if r.err != nil || r.status != http.StatusNoContent {
			t.Fatalf("early invoice: status %d, err %v", r.status, r.err)
		}
	default:
		t.Fatal("the early invoice was not delivered")
	}

	var n int
	q := `SELECT COUNT(*) FROM checkouts WHERE customer_ref = $1`
	if err := env.DB.GetContext(context.Background(), &n, q, env.Stripe.customerOf(sess.ID)); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("got %d checkouts for the customer, want 1", n)
	}

	first := env.subscriptions(t, env.UserToken)[0]
	if first.Status != subscription.StatusCompleted {
		t.Fatalf("subscription is %s after the first invoice", first.Status)
	}

	env.webhook(t, "evt_cycle", "invoice.paid", invoice("in_cycle", "sub_"+sess.ID, stripe.InvoiceBillingReasonSubscriptionCycle), http.StatusNoContent)

	if n := len(env.orders(t, env.UserToken)); n != 2 {
		t.Fatalf("got %d orders, want 2", n)
	}
	renewed := env.subscriptions(t, env.UserToken)[0]
	if d := renewed.ExpiresAt.Sub(first.ExpiresAt); d != period {
		t.Errorf("renewal extended expiry by %v, want %v", d, period)
	}
}

func (env *TestEnv) createSubscribable(t *testing.T, name, price string) course.Course {
	t.Helper()

	var c course.Course
	env.do(t, http.MethodPost, "/api/v1/courses", env.AdminToken, course.CourseNew{
		Name:        name,
		Description: name + " description",
		Price:       decimal.RequireFromString(price),
		Validity:    30,
		ImageURL:    "https://img.example.com/course.png",
	}, http.StatusCreated, &c)
	return c
}

func (env *TestEnv) publish(t *testing.T, ref product.Ref) {
	t.Helper()

	var refs payment.Refs
	env.do(t, http.MethodPost, "/api/v1/processors/stripe/products", env.AdminToken, ref, http.StatusOK, &refs)
	if refs.Product == "" || refs.Price == "" {
		t.Fatalf("publishing %s returned %+v", ref, refs)
	}
}

func (env *TestEnv) subscribe(t *testing.T, courseID string) payment.Session {
	t.Helper()

	var sess payment.Session
	env.do(t, http.MethodPost, "/api/v1/processors/subscribe", env.UserToken, subscribeNew(courseID), http.StatusCreated, &sess)
	return sess
}

func subscribeNew(courseID string) payment.SubscribeNew {
	return payment.SubscribeNew{
		Product:     product.Course(courseID),
		Frequency:   subscription.Monthly,
		PaymentType: order.Stripe,
	}
}

func invoice(id, subRef string, reason stripe.InvoiceBillingReason) map[string]any {
	return map[string]any{
		"id":             id,
		"object":         "invoice",
		"subscription":   subRef,
		"billing_reason": reason,
		"payment_intent": "pi_" + id,
	}
}
