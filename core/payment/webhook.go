package payment

import (
	"context"
	"encoding/json"

	"github.com/irsalhamdi/e-learning/api/weberr"
	"github.com/irsalhamdi/e-learning/core/claims"
	"github.com/irsalhamdi/e-learning/core/order"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/plutov/paypal/v4"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"
)

const (
	eventCheckoutCompleted = "checkout.session.completed"
	eventInvoicePaid       = "invoice.paid"
	eventPaypalCaptured    = "paypal.order.captured"
)

// Webhook verifies and applies a Stripe event. Event types it does not
// handle are acknowledged without effect so Stripe stops redelivering them.
func (s *Service) Webhook(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	ev, err := webhook.ConstructEvent(payload, signature, s.cfg.WebhookSecret)
	if err != nil {
		return "", errs.Wrap(errs.Validation, err, "invalid stripe event")
	}
	if ev.ID == "" {
		return "", errs.New(errs.Validation, "stripe event has no id")
	}

	out, err := s.handleEvent(ctx, ev)

	if s.metrics != nil {
		label := string(out)
		if err != nil {
			label = "error"
		}
		s.metrics.Webhooks.WithLabelValues(string(ev.Type), label).Inc()
	}
	if err != nil {
		return "", weberr.Wrap(err, weberr.WithFields(map[string]any{
			"event_id":   ev.ID,
			"event_type": string(ev.Type),
		}))
	}
	return out, nil
}

func (s *Service) handleEvent(ctx context.Context, ev stripe.Event) (Outcome, error) {
	switch ev.Type {
	case eventCheckoutCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
			return "", errs.Wrap(errs.Validation, err, "unable to decode checkout session")
		}

		// Subscription sessions are settled by their first invoice.
		if cs.Mode != stripe.CheckoutSessionModePayment {
			return Ignored, nil
		}

		var customerRef string
		if cs.Customer != nil {
			customerRef = cs.Customer.ID
		}
		if err := s.ensureCheckout(ctx, cs.ID, customerRef); err != nil {
			return "", err
		}

		ref := cs.ID
		if cs.PaymentIntent != nil && cs.PaymentIntent.ID != "" {
			ref = cs.PaymentIntent.ID
		}

		return s.settle(ctx, settlement{
			eventID:        ev.ID,
			eventType:      string(ev.Type),
			provider:       order.Stripe,
			sessionRef:     cs.ID,
			transactionRef: ref,
		})

	case eventInvoicePaid:
		var inv stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return "", errs.Wrap(errs.Validation, err, "unable to decode invoice")
		}
		if inv.Subscription == nil || inv.Subscription.ID == "" {
			return Ignored, nil
		}

		sessionRef, err := s.subscriptionCheckout(ctx, inv.Subscription.ID)
		if err != nil {
			return "", err
		}

		ref := inv.ID
		if inv.PaymentIntent != nil && inv.PaymentIntent.ID != "" {
			ref = inv.PaymentIntent.ID
		}

		return s.settle(ctx, settlement{
			eventID:        ev.ID,
			eventType:      string(ev.Type),
			provider:       order.Stripe,
			sessionRef:     sessionRef,
			transactionRef: ref,
			renew:          inv.BillingReason != stripe.InvoiceBillingReasonSubscriptionCreate,
		})
	}

	return Ignored, nil
}

// subscriptionCheckout resolves a Stripe subscription to the session ref of
// its checkout, going through the subscription customer.
func (s *Service) subscriptionCheckout(ctx context.Context, subscriptionRef string) (string, error) {
	sub, err := s.stripe.Subscriptions.Get(subscriptionRef, nil)
	if err != nil {
		return "", upstream("retrieving stripe subscription", err)
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return "", errs.Newf(errs.Validation, "stripe subscription[%s] has no customer", subscriptionRef)
	}

	ck, err := fetchCheckoutByCustomer(ctx, s.db, sub.Customer.ID)
	switch {
	case err == nil:
		return ck.SessionRef, nil
	case !errs.Is(err, errs.NotFound):
		return "", err
	}

	// The rebuilt record is keyed by the subscription. A checkout stored for
	// the same customer in the meantime wins.
	if err := s.ensureCheckout(ctx, subscriptionRef, sub.Customer.ID); err != nil {
		return "", err
	}
	ck, err = fetchCheckoutByCustomer(ctx, s.db, sub.Customer.ID)
	if err != nil {
		return "", err
	}
	return ck.SessionRef, nil
}

// ensureCheckout makes sure a checkout record exists for the session,
// rebuilding it from customer metadata when the event arrived before the
// checkout was stored.
func (s *Service) ensureCheckout(ctx context.Context, sessionRef, customerRef string) error {
	_, err := fetchCheckout(ctx, s.db, sessionRef, false)
	if err == nil || !errs.Is(err, errs.NotFound) || customerRef == "" {
		return err
	}

	cust, err := s.stripe.Customers.Get(customerRef, nil)
	if err != nil {
		return upstream("retrieving stripe customer", err)
	}

	md, err := DecodeMetadata(cust.Metadata)
	if err != nil {
		return err
	}

	ck, err := s.checkoutFromMetadata(ctx, md, sessionRef, customerRef)
	if err != nil {
		return err
	}

	s.log.WithField("session_ref", sessionRef).Info("checkout rebuilt from customer metadata")
	return createCheckout(ctx, s.db, ck)
}

// CapturePaypal captures an approved PayPal order and settles its checkout.
func (s *Service) CapturePaypal(ctx context.Context, clm claims.Claims, orderRef string) (Outcome, error) {
	ck, err := fetchCheckout(ctx, s.db, orderRef, false)
	if err != nil {
		return "", err
	}
	if ck.Provider != order.Paypal {
		return "", errs.Newf(errs.Validation, "session[%s] is not a paypal order", orderRef)
	}
	if !clm.Owns(ck.UserID) {
		return "", errs.New(errs.Unauthorized, "paypal order belongs to another user")
	}
	if ck.Status == CheckoutFulfilled {
		return Duplicate, nil
	}

	resp, err := s.paypal.CaptureOrder(ctx, orderRef, paypal.CaptureOrderRequest{})
	if err != nil {
		return "", errs.Wrap(errs.Upstream, err, "capturing paypal order: "+err.Error())
	}
	if resp.Status != "COMPLETED" {
		return "", errs.Newf(errs.Upstream, "paypal order[%s] captured with status %s", orderRef, resp.Status)
	}

	return s.settle(ctx, settlement{
		eventID:        "paypal:" + orderRef,
		eventType:      eventPaypalCaptured,
		provider:       order.Paypal,
		sessionRef:     orderRef,
		transactionRef: orderRef,
	})
}
