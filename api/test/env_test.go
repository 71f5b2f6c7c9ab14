package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/irsalhamdi/e-learning/api"
	"github.com/irsalhamdi/e-learning/api/background"
	"github.com/irsalhamdi/e-learning/api/metrics"
	"github.com/irsalhamdi/e-learning/config"
	"github.com/irsalhamdi/e-learning/core/auth"
	"github.com/irsalhamdi/e-learning/core/payment"
	"github.com/irsalhamdi/e-learning/core/user"
	"github.com/irsalhamdi/e-learning/database"
	"github.com/irsalhamdi/e-learning/email"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

const (
	webhookSecret = "whsec_integration"
	password      = "secret-password"
)

// TestEnv is a running api backed by a throwaway postgres container and
// fake payment processors.
type TestEnv struct {
	*httptest.Server
	DB       *sqlx.DB
	Stripe   *fakeStripe
	Paypal   *fakePaypal
	Receipts *receipts

	AdminID, UserID, OtherID          string
	AdminToken, UserToken, OtherToken string
}

func NewTestEnv(t *testing.T, name string) *TestEnv {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}

	cfg := config.DB{
		User:       "postgres",
		Password:   "postgres",
		Name:       name,
		DisableTLS: true,
	}

	res, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15-alpine",
		Env: []string{
			"POSTGRES_USER=" + cfg.User,
			"POSTGRES_PASSWORD=" + cfg.Password,
			"POSTGRES_DB=" + cfg.Name,
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("starting postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Purge(res); err != nil {
			t.Logf("purging postgres: %v", err)
		}
	})
	_ = res.Expire(300)

	cfg.Host = res.GetHostPort("5432/tcp")

	var db *sqlx.DB
	pool.MaxWait = time.Minute
	err = pool.Retry(func() error {
		var err error
		db, err = database.Open(cfg)
		if err != nil {
			return err
		}
		return database.StatusCheck(context.Background(), db)
	})
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(cfg); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	log, _ := test.NewNullLogger()
	bg := background.New(log)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = bg.Shutdown(ctx)
	})

	fs := newFakeStripe()
	ss := httptest.NewServer(fs.handler())
	t.Cleanup(ss.Close)

	fp := newFakePaypal()
	ps := httptest.NewServer(fp.handler())
	t.Cleanup(ps.Close)

	pp, err := paypal.NewClient("client", "secret", ps.URL)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pp.GetAccessToken(context.Background()); err != nil {
		t.Fatalf("getting paypal token: %v", err)
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(ss.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	strp := &stripecl.API{}
	strp.Init("sk_test_integration", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	mtr := metrics.New()
	rc := &receipts{}

	svc := payment.New(payment.Deps{
		DB:     db,
		Log:    log,
		Stripe: strp,
		Paypal: pp,
		Config: config.Stripe{
			WebhookSecret: webhookSecret,
			SuccessURL:    "http://localhost:3000/success",
			CancelURL:     "http://localhost:3000/cancel",
			Currency:      "usd",
		},
		Metrics:  mtr,
		Notifier: rc,
		BG:       bg,
	})

	sm := scs.New()
	sm.Lifetime = time.Hour

	mux := api.APIMux(api.APIConfig{
		Log:                     log,
		DB:                      db,
		Session:                 sm,
		Mailer:                  noMail{},
		TokenTimeout:            time.Hour,
		Background:              bg,
		Payment:                 svc,
		Metrics:                 mtr,
		Providers:               map[string]auth.Provider{},
		MaxInstructorPercentage: 30,
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	env := &TestEnv{
		Server:   srv,
		DB:       db,
		Stripe:   fs,
		Paypal:   fp,
		Receipts: rc,
	}

	env.AdminID, env.AdminToken = env.seedUser(t, "admin")
	env.UserID, env.UserToken = env.seedUser(t, "user")
	env.OtherID, env.OtherToken = env.seedUser(t, "user")

	return env
}

// seedUser stores an active user with the given role and logs it in.
func (env *TestEnv) seedUser(t *testing.T, role string) (string, string) {
	t.Helper()

	hash, err := user.HashPassword(password)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	usr := user.User{
		ID:           uuid.NewString(),
		Name:         role + " account",
		Email:        fmt.Sprintf("%s-%s@example.com", role, uuid.NewString()[:8]),
		Role:         role,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Create(context.Background(), env.DB, usr); err != nil {
		t.Fatalf("seeding %s: %v", role, err)
	}

	var tok auth.Token
	env.do(t, http.MethodPost, "/api/v1/auth/login", "", user.UserLogin{Email: usr.Email, Password: password}, http.StatusOK, &tok)
	return usr.ID, tok.Token
}

// do sends body as JSON with the bearer token, fails unless the response
// has status want and decodes the response into out when it is not nil.
func (env *TestEnv) do(t *testing.T, method, path, token string, body any, want int, out any) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}

	r, err := http.NewRequest(method, env.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	env.send(t, r, want, out)
}

func (env *TestEnv) send(t *testing.T, r *http.Request, want int, out any) {
	t.Helper()

	w, err := env.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	b, err := io.ReadAll(w.Body)
	if err != nil {
		t.Fatal(err)
	}

	if w.StatusCode != want {
		t.Fatalf("%s %s: status %s, want %d: %s", r.Method, r.URL.Path, w.Status, want, b)
	}

	if out != nil {
		if err := json.Unmarshal(b, out); err != nil {
			t.Fatalf("%s %s: decoding response: %v", r.Method, r.URL.Path, err)
		}
	}
}

type noMail struct{}

func (noMail) SendActivationToken(to, token string) error { return nil }
func (noMail) SendRecoveryToken(to, token string) error   { return nil }

type receipts struct {
	mu   sync.Mutex
	sent []email.Receipt
}

func (r *receipts) SendOrderConfirmation(to string, rc email.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, rc)
	return nil
}

func (r *receipts) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}
