// Package payment opens checkout sessions with the payment processors and
// settles them into orders when the processor confirms the payment.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/irsalhamdi/e-learning/api/background"
	"github.com/irsalhamdi/e-learning/api/metrics"
	"github.com/irsalhamdi/e-learning/config"
	"github.com/irsalhamdi/e-learning/core/order"
	"github.com/irsalhamdi/e-learning/core/product"
	"github.com/irsalhamdi/e-learning/core/promo"
	"github.com/irsalhamdi/e-learning/core/subscription"
	"github.com/irsalhamdi/e-learning/core/user"
	"github.com/irsalhamdi/e-learning/email"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/irsalhamdi/e-learning/validate"
	"github.com/jmoiron/sqlx"
	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

var ErrProductNotSubscribable = errs.New(errs.Validation, "product cannot be bought as a subscription")

// Paypal is the part of the PayPal client used to sell products.
type Paypal interface {
	CreateOrder(ctx context.Context, intent string, units []paypal.PurchaseUnitRequest, payer *paypal.CreateOrderPayer, app *paypal.ApplicationContext) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string, req paypal.CaptureOrderRequest) (*paypal.CaptureOrderResponse, error)
}

// Notifier sends order confirmations.
type Notifier interface {
	SendOrderConfirmation(to string, rc email.Receipt) error
}

type Deps struct {
	DB       *sqlx.DB
	Log      logrus.FieldLogger
	Stripe   *stripecl.API
	Paypal   Paypal
	Config   config.Stripe
	Metrics  *metrics.Metrics
	Notifier Notifier
	BG       *background.Background
}

type Service struct {
	db       *sqlx.DB
	log      logrus.FieldLogger
	stripe   *stripecl.API
	paypal   Paypal
	cfg      config.Stripe
	metrics  *metrics.Metrics
	notifier Notifier
	bg       *background.Background
	now      func() time.Time
}

func New(d Deps) *Service {
	return &Service{
		db:       d.DB,
		log:      d.Log,
		stripe:   d.Stripe,
		paypal:   d.Paypal,
		cfg:      d.Config,
		metrics:  d.Metrics,
		notifier: d.Notifier,
		bg:       d.BG,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type CheckoutNew struct {
	Products    []product.Ref     `json:"products" validate:"required,min=1,max=20,dive"`
	PaymentType order.PaymentType `json:"paymentType" validate:"required,oneof=stripe paypal"`
	PromoID     *string           `json:"promoId" validate:"omitempty,uuid"`
}

type SubscribeNew struct {
	Product     product.Ref            `json:"product"`
	Frequency   subscription.Frequency `json:"paymentFrequency" validate:"required,oneof=Month Year"`
	PaymentType order.PaymentType      `json:"paymentType" validate:"required,oneof=stripe"`
}

// Session is an opened checkout the buyer completes at URL.
type Session struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	PaymentType     order.PaymentType `json:"paymentType"`
	SubscriptionIDs []string          `json:"subscriptionIds"`
	Total           decimal.Decimal   `json:"total"`
	GrandTotal      decimal.Decimal   `json:"grandTotal"`
}

// Checkout creates a pending one-off subscription per product and opens a
// payment session for all of them.
func (s *Service) Checkout(ctx context.Context, userID string, cn CheckoutNew) (Session, error) {
	if err := unique(cn.Products); err != nil {
		return Session{}, err
	}
	if cn.PaymentType == order.Stripe {
		if err := fitsMetadata(cn.Products, cn.PromoID); err != nil {
			return Session{}, err
		}
	}

	usr, err := user.Fetch(ctx, s.db, userID)
	if err != nil {
		return Session{}, err
	}

	promoID, discount, err := s.discount(ctx, cn.PromoID)
	if err != nil {
		return Session{}, err
	}

	prods, err := product.FetchAll(ctx, s.db, cn.Products)
	if err != nil {
		return Session{}, err
	}

	subs, err := subscription.Create(ctx, s.db, subscription.Batch{
		UserID:    userID,
		Frequency: subscription.OneOff,
		Products:  cn.Products,
	}, s.now())
	if err != nil {
		return Session{}, err
	}

	ck := s.newCheckout(userID, promoID, cn.PaymentType, subscription.OneOff, subs)
	ck.Total, ck.GrandTotal = Totals(prods, discount)

	md := Metadata{
		Products:        cn.Products,
		SubscriptionIDs: ck.SubscriptionIDs,
		UserID:          userID,
		PaymentType:     cn.PaymentType,
	}
	if promoID != nil {
		md.PromoID = *promoID
	}

	var sess Session
	switch cn.PaymentType {
	case order.Stripe:
		sess, err = s.stripeCheckout(usr, md, prods, discount, &ck)
	case order.Paypal:
		sess, err = s.paypalCheckout(ctx, prods, discount, &ck)
	default:
		err = errs.Newf(errs.Validation, "unknown payment type %q", cn.PaymentType)
	}
	s.count(cn.PaymentType, err)
	if err != nil {
		return Session{}, err
	}

	if err := createCheckout(ctx, s.db, ck); err != nil {
		return Session{}, err
	}

	sess.SubscriptionIDs = ck.SubscriptionIDs
	sess.Total, sess.GrandTotal = ck.Total, ck.GrandTotal
	return sess, nil
}

func (s *Service) stripeCheckout(usr user.User, md Metadata, prods []product.Product, discount int, ck *Checkout) (Session, error) {
	cust, err := s.customer(usr, md)
	if err != nil {
		return Session{}, err
	}
	ck.CustomerRef = cust.ID

	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(prods))
	for _, p := range prods {
		pd := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:        stripe.String(p.Name),
			Description: stripe.String(p.Description),
		}
		if p.ImageURL != "" {
			pd.Images = stripe.StringSlice([]string{p.ImageURL})
		}

		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(s.cfg.Currency),
				UnitAmount:  stripe.Int64(UnitAmount(p.Price, discount)),
				ProductData: pd,
			},
		})
	}

	params := &stripe.CheckoutSessionParams{
		Customer:          stripe.String(cust.ID),
		ClientReferenceID: stripe.String(usr.ID),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         items,
	}

	sess, err := s.stripe.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, upstream("creating stripe session", err)
	}
	if sess.URL == "" {
		return Session{}, errs.New(errs.Upstream, "stripe session has no redirect url")
	}

	ck.SessionRef = sess.ID
	return Session{ID: sess.ID, URL: sess.URL, PaymentType: order.Stripe}, nil
}

func (s *Service) paypalCheckout(ctx context.Context, prods []product.Product, discount int, ck *Checkout) (Session, error) {
	currency := strings.ToUpper(s.cfg.Currency)

	var sum int64
	items := make([]paypal.Item, 0, len(prods))
	for _, p := range prods {
		unit := UnitAmount(p.Price, discount)
		sum += unit

		items = append(items, paypal.Item{
			Quantity:    "1",
			Name:        p.Name,
			Description: p.Description,
			UnitAmount:  &paypal.Money{Currency: currency, Value: amount(unit)},
		})
	}

	units := []paypal.PurchaseUnitRequest{{
		ReferenceID: ck.ID,
		Items:       items,
		Amount: &paypal.PurchaseUnitAmount{
			Currency: currency,
			Value:    amount(sum),
			Breakdown: &paypal.PurchaseUnitAmountBreakdown{
				ItemTotal: &paypal.Money{Currency: currency, Value: amount(sum)},
			},
		},
	}}

	app := &paypal.ApplicationContext{
		ReturnURL: s.cfg.SuccessURL,
		CancelURL: s.cfg.CancelURL,
	}

	ord, err := s.paypal.CreateOrder(ctx, "CAPTURE", units, nil, app)
	if err != nil {
		return Session{}, errs.Wrap(errs.Upstream, err, "creating paypal order: "+err.Error())
	}

	var url string
	for _, l := range ord.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			url = l.Href
			break
		}
	}
	if url == "" {
		return Session{}, errs.New(errs.Upstream, "paypal order has no approval url")
	}

	ck.SessionRef = ord.ID
	return Session{ID: ord.ID, URL: url, PaymentType: order.Paypal}, nil
}

// Subscribe opens a recurring Stripe subscription for a single product.
func (s *Service) Subscribe(ctx context.Context, userID string, sn SubscribeNew) (Session, error) {
	if err := validate.Check(sn.Product); err != nil {
		return Session{}, err
	}

	usr, err := user.Fetch(ctx, s.db, userID)
	if err != nil {
		return Session{}, err
	}

	p, err := product.Fetch(ctx, s.db, sn.Product)
	if err != nil {
		return Session{}, err
	}
	if !p.Subscribable() || p.ProviderRef == "" {
		return Session{}, ErrProductNotSubscribable
	}

	subs, err := subscription.Create(ctx, s.db, subscription.Batch{
		UserID:    userID,
		Frequency: sn.Frequency,
		Products:  []product.Ref{sn.Product},
	}, s.now())
	if err != nil {
		return Session{}, err
	}

	ck := s.newCheckout(userID, nil, order.Stripe, sn.Frequency, subs)
	ck.Total, ck.GrandTotal = Totals([]product.Product{p}, 0)

	cust, err := s.customer(usr, Metadata{
		Products:        []product.Ref{sn.Product},
		SubscriptionIDs: ck.SubscriptionIDs,
		UserID:          userID,
		PaymentType:     order.Stripe,
	})
	if err != nil {
		s.count(order.Stripe, err)
		return Session{}, err
	}
	ck.CustomerRef = cust.ID

	interval := stripe.PriceRecurringIntervalMonth
	if sn.Frequency == subscription.Yearly {
		interval = stripe.PriceRecurringIntervalYear
	}

	params := &stripe.CheckoutSessionParams{
		Customer:          stripe.String(cust.ID),
		ClientReferenceID: stripe.String(userID),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.cfg.Currency),
				Product:    stripe.String(p.ProviderRef),
				UnitAmount: stripe.Int64(UnitAmount(p.Price, 0)),
				Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
					Interval: stripe.String(string(interval)),
				},
			},
		}},
	}

	sess, err := s.stripe.CheckoutSessions.New(params)
	if err == nil && sess.URL == "" {
		err = errs.New(errs.Upstream, "stripe session has no redirect url")
	} else if err != nil {
		err = upstream("creating stripe subscription session", err)
	}
	s.count(order.Stripe, err)
	if err != nil {
		return Session{}, err
	}

	ck.SessionRef = sess.ID
	if err := createCheckout(ctx, s.db, ck); err != nil {
		return Session{}, err
	}

	return Session{
		ID:              sess.ID,
		URL:             sess.URL,
		PaymentType:     order.Stripe,
		SubscriptionIDs: ck.SubscriptionIDs,
		Total:           ck.Total,
		GrandTotal:      ck.GrandTotal,
	}, nil
}

// Refs names the provider side product and its current price.
type Refs struct {
	Product string `json:"product"`
	Price   string `json:"price"`
}

// ManageProduct mirrors a catalog product on Stripe and stores the
// resulting refs on it.
func (s *Service) ManageProduct(ctx context.Context, ref product.Ref) (Refs, error) {
	p, err := product.Fetch(ctx, s.db, ref)
	if err != nil {
		return Refs{}, err
	}

	refs, err := s.syncProduct(p)
	if err != nil {
		return Refs{}, err
	}

	if err := product.SetProviderRefs(ctx, s.db, ref, refs.Product, refs.Price); err != nil {
		return Refs{}, err
	}
	return refs, nil
}

// syncProduct updates the Stripe product named by p.ProviderRef, creating
// it when missing, then attaches a fresh default price. Stripe prices are
// immutable so every sync issues a new one.
func (s *Service) syncProduct(p product.Product) (Refs, error) {
	params := &stripe.ProductParams{
		Name:        stripe.String(p.Name),
		Description: stripe.String(p.Description),
	}
	if p.ImageURL != "" {
		params.Images = stripe.StringSlice([]string{p.ImageURL})
	}

	var (
		sp  *stripe.Product
		err error
	)
	if p.ProviderRef != "" {
		_, err = s.stripe.Products.Get(p.ProviderRef, nil)
		switch {
		case err == nil:
			sp, err = s.stripe.Products.Update(p.ProviderRef, params)
			if err != nil {
				return Refs{}, upstream("updating stripe product", err)
			}
		case !missing(err):
			return Refs{}, upstream("retrieving stripe product", err)
		}
	}
	if sp == nil {
		params.AddMetadata("productType", string(p.Ref.Kind))
		params.AddMetadata("productId", p.Ref.ID)

		sp, err = s.stripe.Products.New(params)
		if err != nil {
			return Refs{}, upstream("creating stripe product", err)
		}
	}

	price, err := s.stripe.Prices.New(&stripe.PriceParams{
		Currency:   stripe.String(s.cfg.Currency),
		Product:    stripe.String(sp.ID),
		UnitAmount: stripe.Int64(UnitAmount(p.Price, 0)),
	})
	if err != nil {
		return Refs{}, upstream("creating stripe price", err)
	}

	if _, err := s.stripe.Products.Update(sp.ID, &stripe.ProductParams{DefaultPrice: stripe.String(price.ID)}); err != nil {
		return Refs{}, upstream("setting stripe default price", err)
	}

	return Refs{Product: sp.ID, Price: price.ID}, nil
}

func (s *Service) customer(usr user.User, md Metadata) (*stripe.Customer, error) {
	kv, err := md.Encode()
	if err != nil {
		return nil, err
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(usr.Email),
		Name:  stripe.String(usr.Name),
	}
	for k, v := range kv {
		params.AddMetadata(k, v)
	}

	cust, err := s.stripe.Customers.New(params)
	if err != nil {
		return nil, upstream("creating stripe customer", err)
	}
	return cust, nil
}

// discount resolves the optional promo. Promos that are not validated are
// dropped rather than refused.
func (s *Service) discount(ctx context.Context, promoID *string) (*string, int, error) {
	if promoID == nil {
		return nil, 0, nil
	}

	p, err := promo.Fetch(ctx, s.db, *promoID)
	if err != nil {
		return nil, 0, err
	}
	if p.Effective() == 0 {
		return nil, 0, nil
	}
	return &p.ID, p.Effective(), nil
}

func (s *Service) newCheckout(userID string, promoID *string, pt order.PaymentType, f subscription.Frequency, subs []subscription.Subscription) Checkout {
	ids := make([]string, len(subs))
	for i, sub := range subs {
		ids[i] = sub.ID
	}

	now := s.now()
	return Checkout{
		ID:              validate.GenerateID(),
		Provider:        pt,
		UserID:          userID,
		PromoID:         promoID,
		PaymentType:     pt,
		Frequency:       f,
		SubscriptionIDs: ids,
		Status:          CheckoutOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (s *Service) count(pt order.PaymentType, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.Checkouts.WithLabelValues(string(pt), result).Inc()
}

func unique(refs []product.Ref) error {
	seen := make(map[product.Ref]bool, len(refs))
	for _, r := range refs {
		if seen[r] {
			return errs.Newf(errs.Validation, "%s appears twice in the cart", r)
		}
		seen[r] = true
	}
	return nil
}

// upstream wraps a Stripe failure, keeping the provider message for the
// client.
func upstream(op string, err error) error {
	msg := op
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		msg = fmt.Sprintf("%s: %s", op, se.Msg)
	}
	return errs.Wrap(errs.Upstream, err, msg)
}

func missing(err error) bool {
	var se *stripe.Error
	return errors.As(err, &se) && se.Code == stripe.ErrorCodeResourceMissing
}
