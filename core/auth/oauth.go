package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/irsalhamdi/e-learning/api/web"
	"github.com/irsalhamdi/e-learning/core/claims"
	"github.com/irsalhamdi/e-learning/core/user"
	"github.com/irsalhamdi/e-learning/errs"
	"github.com/irsalhamdi/e-learning/random"
	"github.com/irsalhamdi/e-learning/validate"
	"github.com/jmoiron/sqlx"
	"golang.org/x/oauth2"
)

const stateCookie = "oauth_state"

type ProviderConfig struct {
	Name        string
	Client      string
	Secret      string
	URL         string
	RedirectURL string
}

type Provider struct {
	oauth2.Config
	Verifier *oidc.IDTokenVerifier
}

// MakeProviders discovers every configured OIDC provider. Providers without
// a client id are skipped.
func MakeProviders(ctx context.Context, cfgs []ProviderConfig) (map[string]Provider, error) {
	provs := make(map[string]Provider, len(cfgs))
	for _, c := range cfgs {
		if c.Client == "" {
			continue
		}

		p, err := oidc.NewProvider(ctx, c.URL)
		if err != nil {
			return nil, fmt.Errorf("discovering provider %s: %w", c.Name, err)
		}

		provs[c.Name] = Provider{
			Config: oauth2.Config{
				ClientID:     c.Client,
				ClientSecret: c.Secret,
				Endpoint:     p.Endpoint(),
				RedirectURL:  c.RedirectURL,
				Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			},
			Verifier: p.Verifier(&oidc.Config{ClientID: c.Client}),
		}
	}
	return provs, nil
}

func HandleOauthLogin(provs map[string]Provider) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prov, ok := provs[web.Param(r, "provider")]
		if !ok {
			return errs.New(errs.NotFound, "unknown oauth provider")
		}

		state, err := random.StringSecure(32)
		if err != nil {
			return fmt.Errorf("generating oauth state: %w", err)
		}

		http.SetCookie(w, &http.Cookie{
			Name:     stateCookie,
			Value:    state,
			Path:     "/",
			MaxAge:   int((10 * time.Minute).Seconds()),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})

		http.Redirect(w, r, prov.AuthCodeURL(state), http.StatusFound)
		return nil
	}
}

// HandleOauthCallback finishes the code flow, creates the user on first
// login and redirects to redirectURL with the session token.
func HandleOauthCallback(db *sqlx.DB, sm *scs.SessionManager, provs map[string]Provider, redirectURL string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		prov, ok := provs[web.Param(r, "provider")]
		if !ok {
			return errs.New(errs.NotFound, "unknown oauth provider")
		}

		cookie, err := r.Cookie(stateCookie)
		if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
			return errs.New(errs.Unauthorized, "oauth state mismatch")
		}

		oauthTok, err := prov.Exchange(ctx, r.URL.Query().Get("code"))
		if err != nil {
			return errs.Wrap(errs.Unauthorized, err, "exchanging oauth code")
		}

		raw, ok := oauthTok.Extra("id_token").(string)
		if !ok {
			return errs.New(errs.Unauthorized, "oauth response without id token")
		}

		idTok, err := prov.Verifier.Verify(ctx, raw)
		if err != nil {
			return errs.Wrap(errs.Unauthorized, err, "verifying id token")
		}

		var info struct {
			Email    string `json:"email"`
			Verified bool   `json:"email_verified"`
			Name     string `json:"name"`
		}
		if err := idTok.Claims(&info); err != nil {
			return fmt.Errorf("decoding id token claims: %w", err)
		}
		if !info.Verified {
			return errs.New(errs.Forbidden, "oauth email not verified")
		}

		usr, err := findOrCreate(ctx, db, info.Email, info.Name)
		if err != nil {
			return err
		}

		tok, err := Login(ctx, sm, usr)
		if err != nil {
			return err
		}

		u, err := url.Parse(redirectURL)
		if err != nil {
			return fmt.Errorf("parsing login redirect url: %w", err)
		}
		q := u.Query()
		q.Set("token", tok.Token)
		u.RawQuery = q.Encode()

		http.Redirect(w, r, u.String(), http.StatusFound)
		return nil
	}
}

func findOrCreate(ctx context.Context, db *sqlx.DB, email, name string) (user.User, error) {
	usr, err := user.FetchByEmail(ctx, db, email)
	switch {
	case err == nil:
		if !usr.Active {
			usr.Active = true
			usr.UpdatedAt = time.Now().UTC()
			if err := user.Update(ctx, db, usr); err != nil {
				return user.User{}, fmt.Errorf("activating oauth user: %w", err)
			}
			usr.Version++
		}
		return usr, nil
	case !errs.Is(err, errs.NotFound):
		return user.User{}, err
	}

	now := time.Now().UTC()
	usr = user.User{
		ID:        validate.GenerateID(),
		Name:      name,
		Email:     email,
		Role:      claims.RoleUser,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	if err := user.Create(ctx, db, usr); err != nil {
		return user.User{}, fmt.Errorf("creating oauth user: %w", err)
	}
	return usr, nil
}
