package api

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/irsalhamdi/e-learning/api/background"
	"github.com/irsalhamdi/e-learning/api/metrics"
	"github.com/irsalhamdi/e-learning/api/middleware"
	"github.com/irsalhamdi/e-learning/api/web"
	"github.com/irsalhamdi/e-learning/core/academy"
	"github.com/irsalhamdi/e-learning/core/auth"
	"github.com/irsalhamdi/e-learning/core/course"
	"github.com/irsalhamdi/e-learning/core/lesson"
	"github.com/irsalhamdi/e-learning/core/order"
	"github.com/irsalhamdi/e-learning/core/payment"
	"github.com/irsalhamdi/e-learning/core/promo"
	"github.com/irsalhamdi/e-learning/core/review"
	"github.com/irsalhamdi/e-learning/core/subscription"
	"github.com/irsalhamdi/e-learning/core/token"
	"github.com/irsalhamdi/e-learning/core/user"
	"github.com/irsalhamdi/e-learning/core/wishlist"
	"github.com/irsalhamdi/e-learning/database"
	"github.com/irsalhamdi/e-learning/rate"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

const version = "/api/v1"

type APIConfig struct {
	CorsOrigin              string
	Log                     logrus.FieldLogger
	DB                      *sqlx.DB
	Session                 *scs.SessionManager
	Mailer                  token.Mailer
	TokenTimeout            time.Duration
	Background              *background.Background
	Payment                 *payment.Service
	Metrics                 *metrics.Metrics
	Limiter                 *rate.Limiter
	Providers               map[string]auth.Provider
	LoginRedirectURL        string
	ActivationRequired      bool
	MaxInstructorPercentage int
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	if cfg.Metrics != nil {
		a.mw = append(a.mw, middleware.Metrics(cfg.Metrics))
	}
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.handle(http.MethodOptions, "/{path:.*}", h)
	}

	if cfg.Metrics != nil {
		a.Router.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	}
	a.handle(http.MethodGet, "/readiness", handleReadiness(cfg.DB))

	authen := auth.Authenticate(cfg.Session)
	ident := auth.Identify(cfg.Session)
	admin := auth.Admin()
	author := auth.Author()

	var limit []web.Middleware
	if cfg.Limiter != nil {
		limit = append(limit, middleware.RateLimit(cfg.Limiter))
	}

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(cfg.DB, cfg.Session, cfg.ActivationRequired), limit...)
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session, cfg.ActivationRequired), limit...)
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session), authen)
	a.Handle(http.MethodGet, "/auth/oauth-login/{provider}", auth.HandleOauthLogin(cfg.Providers))
	a.Handle(http.MethodGet, "/auth/oauth-callback/{provider}", auth.HandleOauthCallback(cfg.DB, cfg.Session, cfg.Providers, cfg.LoginRedirectURL))

	a.Handle(http.MethodPost, "/tokens", token.HandleToken(cfg.DB, cfg.Mailer, cfg.TokenTimeout, cfg.Background, cfg.Log), limit...)
	a.Handle(http.MethodPost, "/tokens/activate", token.HandleActivation(cfg.DB, cfg.Session))
	a.Handle(http.MethodPost, "/tokens/recover", token.HandleRecovery(cfg.DB))

	a.Handle(http.MethodGet, "/users/current", user.HandleShowCurrent(cfg.DB), authen)
	a.Handle(http.MethodGet, "/users/{id}", user.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodPost, "/users", user.HandleCreate(cfg.DB), authen, admin)

	a.Handle(http.MethodGet, "/courses/owned", course.HandleListOwned(cfg.DB), authen, author)
	a.Handle(http.MethodGet, "/courses/pending", course.HandleListPending(cfg.DB), authen, admin)
	a.Handle(http.MethodGet, "/courses/{id}/lessons", lesson.HandleListByCourse(cfg.DB))
	a.Handle(http.MethodPost, "/courses/{id}/approve", course.HandleApprove(cfg.DB), authen, admin)
	a.Handle(http.MethodGet, "/courses/{id}", course.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/courses", course.HandleList(cfg.DB))
	a.Handle(http.MethodPost, "/courses", course.HandleCreate(cfg.DB), authen, author)
	a.Handle(http.MethodPut, "/courses/{id}", course.HandleUpdate(cfg.DB), authen, author)

	a.Handle(http.MethodGet, "/lessons/{id}/full", lesson.HandleShowFull(cfg.DB), authen)
	a.Handle(http.MethodGet, "/lessons/{id}", lesson.HandleShow(cfg.DB))
	a.Handle(http.MethodPost, "/lessons", lesson.HandleCreate(cfg.DB), authen, author)
	a.Handle(http.MethodPut, "/lessons/{id}", lesson.HandleUpdate(cfg.DB), authen, author)
	a.Handle(http.MethodDelete, "/lessons/{id}", lesson.HandleDelete(cfg.DB), authen, author)

	a.Handle(http.MethodPost, "/academies/{id}/approve", academy.HandleApprove(cfg.DB), authen, admin)
	a.Handle(http.MethodPost, "/academies/{id}/courses", academy.HandleAddCourse(cfg.DB), authen, author)
	a.Handle(http.MethodDelete, "/academies/{id}/courses/{course_id}", academy.HandleRemoveCourse(cfg.DB), authen, author)
	a.Handle(http.MethodGet, "/academies/{id}", academy.HandleShow(cfg.DB), ident)
	a.Handle(http.MethodGet, "/academies", academy.HandleList(cfg.DB), ident)
	a.Handle(http.MethodPost, "/academies", academy.HandleCreate(cfg.DB), authen, author)
	a.Handle(http.MethodPut, "/academies/{id}", academy.HandleUpdate(cfg.DB), authen, author)

	a.Handle(http.MethodGet, "/reviews", review.HandleList(cfg.DB))
	a.Handle(http.MethodPost, "/reviews", review.HandleCreate(cfg.DB), authen)
	a.Handle(http.MethodPut, "/reviews/{id}", review.HandleUpdate(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/reviews/{id}", review.HandleDelete(cfg.DB), authen)

	a.Handle(http.MethodGet, "/wishlist", wishlist.HandleList(cfg.DB), authen)
	a.Handle(http.MethodPost, "/wishlist", wishlist.HandleAdd(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/wishlist/{type}/{id}", wishlist.HandleRemove(cfg.DB), authen)

	a.Handle(http.MethodGet, "/promos/code/{code}", promo.HandleLookup(cfg.DB), authen)
	a.Handle(http.MethodPost, "/promos/{id}/validate", promo.HandleValidate(cfg.DB), authen, admin)
	a.Handle(http.MethodPost, "/promos/{id}/invalidate", promo.HandleInvalidate(cfg.DB), authen, admin)
	a.Handle(http.MethodGet, "/promos/{id}", promo.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodGet, "/promos", promo.HandleList(cfg.DB), authen, admin)
	a.Handle(http.MethodPost, "/promos", promo.HandleCreate(cfg.DB, cfg.MaxInstructorPercentage), authen, author)

	a.Handle(http.MethodGet, "/subscriptions/{id}", subscription.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodDelete, "/subscriptions/{id}", subscription.HandleDelete(cfg.DB), authen)
	a.Handle(http.MethodGet, "/subscriptions", subscription.HandleList(cfg.DB), authen)

	a.Handle(http.MethodGet, "/orders/{id}", order.HandleShow(cfg.DB), authen)
	a.Handle(http.MethodGet, "/orders", order.HandleList(cfg.DB), authen)
	a.Handle(http.MethodPost, "/orders", order.HandleCreate(cfg.DB, cfg.Log), authen, admin)

	if cfg.Payment != nil {
		a.Handle(http.MethodPost, "/processors/checkout", payment.HandleCheckout(cfg.Payment), authen)
		a.Handle(http.MethodPost, "/processors/subscribe", payment.HandleSubscribe(cfg.Payment), authen)
		a.Handle(http.MethodPost, "/processors/stripe/products", payment.HandleManageProduct(cfg.Payment), authen, author)
		a.Handle(http.MethodPost, "/processors/stripe/webhook", payment.HandleStripeWebhook(cfg.Payment))
		a.Handle(http.MethodPost, "/processors/paypal/{id}/capture", payment.HandlePaypalCapture(cfg.Payment), authen)
	}

	return a.Router
}

func handleReadiness(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()

		if err := database.StatusCheck(ctx, db); err != nil {
			return web.RespondMessage(ctx, w, "db not ready", http.StatusInternalServerError)
		}
		return web.RespondMessage(ctx, w, "ok", http.StatusOK)
	}
}

// Handle mounts handler under the versioned api prefix.
func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {
	a.handle(method, version+path, handler, mw...)
}

func (a *api) handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
