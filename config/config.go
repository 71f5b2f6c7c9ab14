package config

import "time"

type Config struct {
	Web    Web
	DB     DB
	Auth   Auth
	Cors   Cors
	Email  Email
	Oauth  Oauth
	Stripe Stripe
	Paypal Paypal
	Promo  Promo
	Rate   Rate
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	DebugAddress    string        `conf:"default:0.0.0.0:4000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User         string `conf:"default:postgres"`
	Password     string `conf:"default:postgres,mask"`
	Host         string `conf:"default:localhost:5432"`
	Name         string `conf:"default:elearn"`
	MaxIdleConns int    `conf:"default:0"`
	MaxOpenConns int    `conf:"default:0"`
	DisableTLS   bool   `conf:"default:true"`
	Migrate      bool   `conf:"default:true"`
}

type Auth struct {
	ActivationRequired bool          `conf:"default:false"`
	SessionLifetime    time.Duration `conf:"default:24h"`
}

type Cors struct {
	Origin string
}

type Email struct {
	Address       string        `conf:"default:noreply@elearn.local"`
	Password      string        `conf:"mask"`
	Host          string        `conf:"default:localhost"`
	Port          int           `conf:"default:587"`
	ActivationURL string        `conf:"default:http://localhost:3000/activate/{{token}}"`
	RecoveryURL   string        `conf:"default:http://localhost:3000/recover/{{token}}"`
	TokenTimeout  time.Duration `conf:"default:24h"`
}

type Oauth struct {
	DiscoveryTimeout time.Duration `conf:"default:5s"`
	LoginRedirectURL string        `conf:"default:http://localhost:3000/login"`
	Google           OauthProvider
}

type OauthProvider struct {
	Client      string
	Secret      string `conf:"mask"`
	URL         string `conf:"default:https://accounts.google.com"`
	RedirectURL string `conf:"default:http://localhost:8000/api/v1/auth/oauth-callback/google"`
}

type Stripe struct {
	APISecret     string `conf:"mask"`
	WebhookSecret string `conf:"mask"`
	SuccessURL    string `conf:"default:http://localhost:3000/checkout/success"`
	CancelURL     string `conf:"default:http://localhost:3000/checkout/cancel"`
	Currency      string `conf:"default:usd"`
}

type Paypal struct {
	ClientID string
	Secret   string `conf:"mask"`
	URL      string `conf:"default:https://api-m.sandbox.paypal.com"`
}

type Promo struct {
	MaxInstructorPercentage int `conf:"default:30"`
}

type Rate struct {
	Burst    int           `conf:"default:10"`
	Interval time.Duration `conf:"default:1s"`
	Expiry   time.Duration `conf:"default:10m"`
}
