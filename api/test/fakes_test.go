package test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/irsalhamdi/e-learning/api/web"
	"github.com/plutov/paypal/v4"
	mock "github.com/stripe/stripe-mock/param"
)

// fakeStripe serves the customer and checkout session endpoints and keeps
// what was sent to them.
type fakeStripe struct {
	mu            sync.Mutex
	n             int
	customers     map[string]map[string]any
	amounts       map[string][]int64
	subscriptions map[string]string
	products      int
	prices        int

	// onSession runs before a created session is returned.
	onSession func(id string)
}

func newFakeStripe() *fakeStripe {
	return &fakeStripe{
		customers:     make(map[string]map[string]any),
		amounts:       make(map[string][]int64),
		subscriptions: make(map[string]string),
	}
}

// subscribe registers a Stripe subscription billed to customer.
func (f *fakeStripe) subscribe(id, customer string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptions[id] = customer
}

func (f *fakeStripe) setOnSession(fn func(id string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSession = fn
}

// unitAmounts returns the sorted line item amounts of a session.
func (f *fakeStripe) unitAmounts(sessionID string) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.amounts[sessionID]...)
}

// metadata returns the metadata a customer was created with.
func (f *fakeStripe) metadata(customer string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.customers[customer]
}

func (f *fakeStripe) customerOf(sessionID string) string {
	return "cus_" + sessionID
}

func (f *fakeStripe) handler() http.Handler {
	createCustomer := func(w http.ResponseWriter, r *http.Request) {
		params, err := mock.ParseParams(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		md, _ := params["metadata"].(map[string]any)
		for k, v := range md {
			if s, _ := v.(string); len(s) > 500 {
				stripeError(w, http.StatusBadRequest, "invalid_request_error", "metadata value of "+k+" is longer than 500 characters")
				return
			}
		}

		f.mu.Lock()
		f.n++
		id := fmt.Sprintf("cus_cs_test_%d", f.n)
		f.customers[id] = md
		f.mu.Unlock()

		web.Respond(context.Background(), w, map[string]any{
			"id":       id,
			"object":   "customer",
			"metadata": md,
		}, http.StatusOK)
	}

	getCustomer := func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		f.mu.Lock()
		md, ok := f.customers[id]
		f.mu.Unlock()

		if !ok {
			missing(w)
			return
		}
		web.Respond(context.Background(), w, map[string]any{
			"id":       id,
			"object":   "customer",
			"metadata": md,
		}, http.StatusOK)
	}

	createSession := func(w http.ResponseWriter, r *http.Request) {
		params, err := mock.ParseParams(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		customer, _ := params["customer"].(string)

		var amounts []int64
		for _, li := range elems(params["line_items"]) {
			it, _ := li.(map[string]any)
			if it["quantity"] != "1" {
				http.Error(w, "quantity must be 1", http.StatusBadRequest)
				return
			}
			pd, _ := it["price_data"].(map[string]any)
			s, _ := pd["unit_amount"].(string)
			a, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			amounts = append(amounts, a)
		}
		sort.Slice(amounts, func(i, j int) bool { return amounts[i] < amounts[j] })

		// Sessions are named after their customer so tests can find one
		// from the other.
		id := customer[len("cus_"):]

		f.mu.Lock()
		f.amounts[id] = amounts
		hook := f.onSession
		f.mu.Unlock()

		if hook != nil {
			hook(id)
		}

		web.Respond(context.Background(), w, map[string]any{
			"id":       id,
			"object":   "checkout.session",
			"mode":     params["mode"],
			"customer": customer,
			"url":      "https://checkout.stripe.test/" + id,
		}, http.StatusOK)
	}

	getSubscription := func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		f.mu.Lock()
		cust, ok := f.subscriptions[id]
		f.mu.Unlock()

		if !ok {
			missing(w)
			return
		}
		web.Respond(context.Background(), w, map[string]any{
			"id":       id,
			"object":   "subscription",
			"customer": cust,
		}, http.StatusOK)
	}

	upsertProduct := func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		f.mu.Lock()
		if id == "" {
			f.products++
			id = fmt.Sprintf("prod_%d", f.products)
		}
		f.mu.Unlock()

		web.Respond(context.Background(), w, map[string]any{"id": id, "object": "product"}, http.StatusOK)
	}

	createPrice := func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.prices++
		id := fmt.Sprintf("price_%d", f.prices)
		f.mu.Unlock()

		web.Respond(context.Background(), w, map[string]any{"id": id, "object": "price"}, http.StatusOK)
	}

	r := mux.NewRouter()
	r.HandleFunc("/v1/customers", createCustomer).Methods(http.MethodPost)
	r.HandleFunc("/v1/customers/{id}", getCustomer).Methods(http.MethodGet)
	r.HandleFunc("/v1/checkout/sessions", createSession).Methods(http.MethodPost)
	r.HandleFunc("/v1/subscriptions/{id}", getSubscription).Methods(http.MethodGet)
	r.HandleFunc("/v1/products", upsertProduct).Methods(http.MethodPost)
	r.HandleFunc("/v1/products/{id}", upsertProduct).Methods(http.MethodPost)
	r.HandleFunc("/v1/prices", createPrice).Methods(http.MethodPost)
	return r
}

func stripeError(w http.ResponseWriter, status int, typ, msg string) {
	web.Respond(context.Background(), w, map[string]any{
		"error": map[string]any{"type": typ, "message": msg},
	}, status)
}

func missing(w http.ResponseWriter) {
	web.Respond(context.Background(), w, map[string]any{
		"error": map[string]any{"type": "invalid_request_error", "code": "resource_missing"},
	}, http.StatusNotFound)
}

// elems returns the elements of a form encoded list, which the param
// parser yields either as a slice or as a map keyed by index.
func elems(v any) []any {
	switch v := v.(type) {
	case []any:
		return v
	case map[string]any:
		out := make([]any, 0, len(v))
		for _, e := range v {
			out = append(out, e)
		}
		return out
	}
	return nil
}

// fakePaypal serves the token, order and capture endpoints.
type fakePaypal struct {
	mu       sync.Mutex
	n        int
	totals   map[string]string
	captured map[string]int
}

func newFakePaypal() *fakePaypal {
	return &fakePaypal{
		totals:   make(map[string]string),
		captured: make(map[string]int),
	}
}

func (f *fakePaypal) total(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.totals[id]
}

func (f *fakePaypal) captures(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captured[id]
}

func (f *fakePaypal) handler() http.Handler {
	token := func(w http.ResponseWriter, r *http.Request) {
		web.Respond(context.Background(), w, map[string]any{
			"access_token": "A21AA-test",
			"token_type":   "Bearer",
			"expires_in":   32400,
		}, http.StatusOK)
	}

	create := func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Units []paypal.PurchaseUnitRequest `json:"purchase_units"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Units) != 1 || req.Units[0].Amount == nil {
			http.Error(w, "expected one purchase unit", http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		f.n++
		id := fmt.Sprintf("PP-%d", f.n)
		f.totals[id] = req.Units[0].Amount.Value
		f.mu.Unlock()

		web.Respond(context.Background(), w, paypal.Order{
			ID:     id,
			Status: "CREATED",
			Links: []paypal.Link{
				{Href: "https://paypal.test/self/" + id, Rel: "self", Method: "GET"},
				{Href: "https://paypal.test/approve/" + id, Rel: "approve", Method: "GET"},
			},
		}, http.StatusCreated)
	}

	capture := func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		f.mu.Lock()
		f.captured[id]++
		f.mu.Unlock()

		web.Respond(context.Background(), w, paypal.CaptureOrderResponse{
			ID:     id,
			Status: "COMPLETED",
		}, http.StatusCreated)
	}

	r := mux.NewRouter()
	r.HandleFunc("/v1/oauth2/token", token).Methods(http.MethodPost)
	r.HandleFunc("/v2/checkout/orders", create).Methods(http.MethodPost)
	r.HandleFunc("/v2/checkout/orders/{id}/capture", capture).Methods(http.MethodPost)
	return r
}
