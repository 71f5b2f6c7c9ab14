package payment

import (
	"context"
	"time"

	"github.com/irsalhamdi/e-learning/core/order"
	"github.com/irsalhamdi/e-learning/core/product"
	"github.com/irsalhamdi/e-learning/core/promo"
	"github.com/irsalhamdi/e-learning/core/subscription"
	"github.com/irsalhamdi/e-learning/core/user"
	"github.com/irsalhamdi/e-learning/database"
	"github.com/irsalhamdi/e-learning/email"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/irsalhamdi/e-learning/validate"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Outcome describes what a provider event did.
type Outcome string

const (
	Fulfilled Outcome = "fulfilled"
	Renewed   Outcome = "renewed"
	Duplicate Outcome = "duplicate"
	Ignored   Outcome = "ignored"
)

type settlement struct {
	eventID        string
	eventType      string
	provider       order.PaymentType
	sessionRef     string
	transactionRef string

	// renew turns a payment on an already fulfilled recurring checkout into
	// a renewal.
	renew bool
}

// settle applies a confirmed payment in one transaction: the event is
// recorded, an order is created, the subscriptions are completed and
// granted to the user, and the checkout is closed. Replayed events change
// nothing.
func (s *Service) settle(ctx context.Context, st settlement) (Outcome, error) {
	var (
		out  Outcome
		ck   Checkout
		ord  order.Order
		subs []subscription.Subscription
	)

	now := s.now()
	f := func(tx sqlx.ExtContext) error {
		fresh, err := recordEvent(ctx, tx, st.eventID, st.provider, st.eventType, now)
		if err != nil {
			return err
		}
		if !fresh {
			out = Duplicate
			return nil
		}

		ck, err = fetchCheckout(ctx, tx, st.sessionRef, true)
		if err != nil {
			return err
		}

		switch {
		case ck.Status == CheckoutOpen:
			out = Fulfilled
		case st.renew && ck.Frequency.Recurring():
			out = Renewed
		default:
			out = Ignored
			return nil
		}

		ord, err = order.Create(ctx, tx, s.log, order.OrderNew{
			UserID:         ck.UserID,
			PromoID:        ck.PromoID,
			Total:          ck.Total,
			GrandTotal:     ck.GrandTotal,
			TransactionRef: st.transactionRef,
			PaymentType:    ck.PaymentType,
		}, now)
		if err != nil {
			return err
		}

		if out == Renewed {
			_, err := subscription.Renew(ctx, tx, ck.SubscriptionIDs, now)
			return err
		}

		n, err := subscription.Complete(ctx, tx, ck.SubscriptionIDs, ord.ID, now)
		if err != nil {
			return err
		}
		if int(n) != len(ck.SubscriptionIDs) {
			s.log.WithFields(logrus.Fields{
				"checkout_id": ck.ID,
				"order_id":    ord.ID,
				"expected":    len(ck.SubscriptionIDs),
				"completed":   n,
			}).Warn("paid checkout references missing or completed subscriptions")
		}

		subs, err = subscription.FetchMany(ctx, tx, ck.SubscriptionIDs)
		if err != nil {
			return err
		}

		var courses, academies []string
		for _, sub := range subs {
			if sub.OrderID == nil || *sub.OrderID != ord.ID {
				continue
			}
			switch sub.Product.Kind {
			case product.KindCourse:
				courses = append(courses, sub.Product.ID)
			case product.KindAcademy:
				academies = append(academies, sub.Product.ID)
			}
		}
		if err := user.AddProducts(ctx, tx, ck.UserID, courses, academies); err != nil {
			return err
		}

		return markFulfilled(ctx, tx, ck.ID, ord.ID, now)
	}

	if err := database.Transaction(ctx, s.db, f); err != nil {
		return "", err
	}

	if out == Fulfilled || out == Renewed {
		if s.metrics != nil {
			s.metrics.Orders.WithLabelValues(string(ord.PaymentType)).Inc()
		}
		s.confirm(ord, ck.SubscriptionIDs)
	}
	return out, nil
}

// confirm emails the receipt of ord in the background.
func (s *Service) confirm(ord order.Order, subIDs []string) {
	if s.notifier == nil || s.bg == nil {
		return
	}

	s.bg.Add(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		log := s.log.WithField("order_id", ord.ID)

		usr, err := user.Fetch(ctx, s.db, ord.UserID)
		if err != nil {
			log.WithError(err).Error("fetching order owner")
			return
		}

		subs, err := subscription.FetchMany(ctx, s.db, subIDs)
		if err != nil {
			log.WithError(err).Error("fetching order subscriptions")
			return
		}

		items := make([]string, 0, len(subs))
		for _, sub := range subs {
			p, err := product.Fetch(ctx, s.db, sub.Product)
			if err != nil {
				log.WithError(err).Warn("fetching order product")
				continue
			}
			items = append(items, p.Name)
		}

		rc := email.Receipt{
			Name:       usr.Name,
			OrderID:    ord.ID,
			Total:      ord.Total.StringFixed(2),
			GrandTotal: ord.GrandTotal.StringFixed(2),
			Items:      items,
		}
		if err := s.notifier.SendOrderConfirmation(usr.Email, rc); err != nil {
			log.WithError(err).Error("sending order confirmation")
		}
	})
}

// checkoutFromMetadata rebuilds the checkout of a session from the
// correlation metadata of its customer.
func (s *Service) checkoutFromMetadata(ctx context.Context, md Metadata, sessionRef, customerRef string) (Checkout, error) {
	subs, err := subscription.FetchMany(ctx, s.db, md.SubscriptionIDs)
	if err != nil {
		return Checkout{}, err
	}
	if len(subs) != len(md.SubscriptionIDs) {
		return Checkout{}, errs.Newf(errs.NotFound, "subscriptions of session[%s] not found", sessionRef)
	}

	total := decimal.Zero
	for _, sub := range subs {
		if sub.UserID != md.UserID {
			return Checkout{}, errs.Newf(errs.Validation, "subscription[%s] does not belong to user[%s]", sub.ID, md.UserID)
		}
		total = total.Add(sub.Amount)
	}

	var promoID *string
	grand := total
	if md.PromoID != "" {
		p, err := promo.Fetch(ctx, s.db, md.PromoID)
		if err != nil {
			return Checkout{}, err
		}
		promoID = &p.ID
		grand = promo.Discount(total, p.Percentage)
	}

	pt := md.PaymentType
	if !pt.Valid() {
		pt = order.Stripe
	}

	now := s.now()
	return Checkout{
		ID:              validate.GenerateID(),
		Provider:        pt,
		SessionRef:      sessionRef,
		CustomerRef:     customerRef,
		UserID:          md.UserID,
		PromoID:         promoID,
		PaymentType:     pt,
		Frequency:       subs[0].Frequency,
		SubscriptionIDs: md.SubscriptionIDs,
		Total:           total,
		GrandTotal:      grand,
		Status:          CheckoutOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}
