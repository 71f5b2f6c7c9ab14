package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/irsalhamdi/e-learning/api/weberr"
	"github.com/irsalhamdi/e-learning/config"
	"github.com/irsalhamdi/e-learning/core/product"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
	mock "github.com/stripe/stripe-mock/param"
)

// fakeStripe keeps just enough of the products and prices API in memory.
type fakeStripe struct {
	mu       sync.Mutex
	products map[string]map[string]any
	created  int
	updated  int
	prices   []map[string]any
}

func newFakeStripe() *fakeStripe {
	return &fakeStripe{products: map[string]map[string]any{}}
}

func (f *fakeStripe) handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/v1/products", f.createProduct).Methods(http.MethodPost)
	r.HandleFunc("/v1/products/{id}", f.getProduct).Methods(http.MethodGet)
	r.HandleFunc("/v1/products/{id}", f.updateProduct).Methods(http.MethodPost)
	r.HandleFunc("/v1/prices", f.createPrice).Methods(http.MethodPost)
	return r
}

func (f *fakeStripe) createProduct(w http.ResponseWriter, r *http.Request) {
	params, err := mock.ParseParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.created++
	id := fmt.Sprintf("prod_%d", f.created)
	f.products[id] = map[string]any{"id": id, "object": "product", "name": params["name"]}
	reply(w, http.StatusOK, f.products[id])
}

func (f *fakeStripe) getProduct(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.products[mux.Vars(r)["id"]]
	if !ok {
		reply(w, http.StatusNotFound, map[string]any{"error": map[string]any{
			"type":    "invalid_request_error",
			"code":    "resource_missing",
			"message": "No such product",
			"param":   "id",
		}})
		return
	}
	reply(w, http.StatusOK, p)
}

func (f *fakeStripe) updateProduct(w http.ResponseWriter, r *http.Request) {
	params, err := mock.ParseParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.products[mux.Vars(r)["id"]]
	if !ok {
		http.Error(w, "unknown product", http.StatusNotFound)
		return
	}
	for _, k := range []string{"name", "default_price"} {
		if v, ok := params[k]; ok {
			p[k] = v
		}
	}
	f.updated++
	reply(w, http.StatusOK, p)
}

func (f *fakeStripe) createPrice(w http.ResponseWriter, r *http.Request) {
	params, err := mock.ParseParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := fmt.Sprintf("price_%d", len(f.prices)+1)
	price := map[string]any{"id": id, "object": "price", "product": params["product"], "unit_amount": params["unit_amount"]}
	f.prices = append(f.prices, price)
	reply(w, http.StatusOK, map[string]any{"id": id, "object": "price"})
}

func reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func stripeClient(url string) *stripecl.API {
	b := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(url),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})

	api := &stripecl.API{}
	api.Init("sk_test_123", &stripe.Backends{API: b, Connect: b, Uploads: b})
	return api
}

func TestSyncProductTwiceCreatesOneProduct(t *testing.T) {
	fake := newFakeStripe()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	log, _ := test.NewNullLogger()
	svc := New(Deps{Log: log, Stripe: stripeClient(srv.URL), Config: config.Stripe{Currency: "usd"}})

	p := product.Product{
		Ref:      product.Course("c-1"),
		Name:     "Go in practice",
		Price:    decimal.NewFromInt(100),
		Validity: 30,
	}

	first, err := svc.syncProduct(p)
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}

	p.ProviderRef = first.Product
	p.Price = decimal.NewFromInt(120)

	second, err := svc.syncProduct(p)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}

	if fake.created != 1 || len(fake.products) != 1 {
		t.Fatalf("expected exactly one provider product, created %d", fake.created)
	}
	if second.Product != first.Product {
		t.Fatalf("second sync moved product from %s to %s", first.Product, second.Product)
	}
	if second.Price == first.Price || len(fake.prices) != 2 {
		t.Fatalf("expected a new price per sync, got %v", fake.prices)
	}
	if got := fake.prices[1]["unit_amount"]; got != "12378" {
		t.Fatalf("unexpected unit amount of the second price: %v", got)
	}
	if got := fake.products[first.Product]["default_price"]; got != second.Price {
		t.Fatalf("default price %v, want %s", got, second.Price)
	}
}

func TestSyncProductRecreatesMissingProduct(t *testing.T) {
	fake := newFakeStripe()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	log, _ := test.NewNullLogger()
	svc := New(Deps{Log: log, Stripe: stripeClient(srv.URL), Config: config.Stripe{Currency: "usd"}})

	p := product.Product{Ref: product.Academy("a-1"), Name: "Backend", Price: decimal.NewFromInt(10), ProviderRef: "prod_deleted"}

	refs, err := svc.syncProduct(p)
	if err != nil {
		t.Fatal(err)
	}
	if fake.created != 1 || refs.Product == "prod_deleted" {
		t.Fatalf("missing product was not recreated: %+v", refs)
	}
}

func signed(t *testing.T, secret, id, typ string, obj any) ([]byte, string) {
	t.Helper()

	raw, err := json.Marshal(obj)
	if err != nil {
		t.Fatal(err)
	}

	b, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        typ,
		"data":        map[string]any{"object": json.RawMessage(raw)},
	})
	if err != nil {
		t.Fatal(err)
	}

	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   b,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func TestWebhookWithoutSideEffects(t *testing.T) {
	const secret = "whsec_test"

	log, _ := test.NewNullLogger()
	svc := New(Deps{Log: log, Config: config.Stripe{WebhookSecret: secret}})
	ctx := context.Background()

	payload, sig := signed(t, secret, "evt_1", "customer.created", map[string]any{"id": "cus_1"})
	out, err := svc.Webhook(ctx, payload, sig)
	if err != nil || out != Ignored {
		t.Fatalf("unknown event type: outcome %q, err %v", out, err)
	}

	payload, sig = signed(t, secret, "evt_2", "checkout.session.completed", map[string]any{
		"id":   "cs_1",
		"mode": "subscription",
	})
	out, err = svc.Webhook(ctx, payload, sig)
	if err != nil || out != Ignored {
		t.Fatalf("subscription session: outcome %q, err %v", out, err)
	}

	payload, sig = signed(t, secret, "evt_3", "invoice.paid", map[string]any{"id": "in_1"})
	out, err = svc.Webhook(ctx, payload, sig)
	if err != nil || out != Ignored {
		t.Fatalf("invoice without subscription: outcome %q, err %v", out, err)
	}

	payload, _ = signed(t, secret, "evt_4", "invoice.paid", map[string]any{"id": "in_2"})
	_, badSig := signed(t, "whsec_other", "evt_4", "invoice.paid", map[string]any{"id": "in_2"})
	if _, err := svc.Webhook(ctx, payload, badSig); !errs.Is(err, errs.Validation) {
		t.Fatalf("expected validation error for a bad signature, got %v", err)
	}
}

func TestCheckoutNewRejectsDuplicates(t *testing.T) {
	refs := []product.Ref{product.Course("c-1"), product.Academy("c-1"), product.Course("c-1")}
	if err := unique(refs); !errs.Is(err, errs.Validation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := unique(refs[:2]); err != nil {
		t.Fatalf("distinct refs rejected: %v", err)
	}
}

func TestWebhookFailureCarriesEventFields(t *testing.T) {
	const secret = "whsec_test"

	fake := newFakeStripe()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	log, _ := test.NewNullLogger()
	svc := New(Deps{Log: log, Stripe: stripeClient(srv.URL), Config: config.Stripe{WebhookSecret: secret}})

	payload, sig := signed(t, secret, "evt_sub", "invoice.paid", map[string]any{
		"id":             "in_1",
		"subscription":   "sub_unknown",
		"billing_reason": "subscription_cycle",
	})
	_, err := svc.Webhook(context.Background(), payload, sig)
	if !errs.Is(err, errs.Upstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	fields, ok := weberr.Fields(err)
	if !ok {
		t.Fatal("expected log fields on the error")
	}
	if fields["event_id"] != "evt_sub" || fields["event_type"] != "invoice.paid" {
		t.Fatalf("unexpected fields %v", fields)
	}
}
