package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/irsalhamdi/e-learning/api/web"
	"github.com/irsalhamdi/e-learning/api/weberr"
	"github.com/irsalhamdi/e-learning/core/claims"
	"github.com/irsalhamdi/e-learning/core/product"
	"github.com/irsalhamdi/e-learning/errs"
)

const maxEventBytes = 1 << 16

func HandleCheckout(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return err
		}

		var cn CheckoutNew
		if err := web.Decode(w, r, &cn); err != nil {
			return err
		}

		sess, err := svc.Checkout(ctx, clm.UserID, cn)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, sess, http.StatusCreated)
	}
}

func HandleSubscribe(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return err
		}

		var sn SubscribeNew
		if err := web.Decode(w, r, &sn); err != nil {
			return err
		}

		sess, err := svc.Subscribe(ctx, clm.UserID, sn)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, sess, http.StatusCreated)
	}
}

// HandleManageProduct publishes a product to Stripe. The product owner and
// admins may call it.
func HandleManageProduct(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return err
		}

		var ref product.Ref
		if err := web.Decode(w, r, &ref); err != nil {
			return err
		}

		p, err := product.Fetch(ctx, svc.db, ref)
		if err != nil {
			return err
		}
		if !clm.Owns(p.OwnerID) {
			return errs.New(errs.Forbidden, "only the instructor or an admin can publish this product")
		}

		refs, err := svc.ManageProduct(ctx, ref)
		if err != nil {
			return err
		}
		return web.Respond(ctx, w, refs, http.StatusOK)
	}
}

func HandleStripeWebhook(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			return weberr.BadRequest(errors.New("received stripe event is not signed"))
		}

		if _, err := svc.Webhook(ctx, b, sig); err != nil {
			return fmt.Errorf("handling stripe event: %w", err)
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandlePaypalCapture(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return err
		}

		id := web.Param(r, "id")
		out, err := svc.CapturePaypal(ctx, clm, id)
		if err != nil {
			return weberr.Wrap(
				fmt.Errorf("capturing paypal order: %w", err),
				weberr.WithFields(map[string]any{"session_ref": id}),
			)
		}
		if out == Duplicate {
			return web.RespondMessage(ctx, w, "paypal order already captured", http.StatusOK)
		}
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
