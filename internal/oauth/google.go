// Package oauth obtains a Google access token through the installed-app
// flow: the user consents in a browser and Google redirects to a loopback
// listener.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/LorenzoCecattoPaim/Math/internal/config"
	"github.com/LorenzoCecattoPaim/Math/internal/logger"
	"github.com/LorenzoCecattoPaim/Math/internal/model"
)

// GoogleEndpoint is Google's OAuth 2.0 endpoint.
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// ErrConsentTimeout means the user did not finish the consent in time.
var ErrConsentTimeout = errors.New("google sign-in was not completed in time")

var scopes = []string{"openid", "email", "profile"}

// Option configures a Provider.
type Option func(*Provider)

// WithEndpoint replaces the Google endpoint.
func WithEndpoint(e oauth2.Endpoint) Option {
	return func(p *Provider) {
		p.oauth.Endpoint = e
	}
}

// WithURLHandler sets how the consent URL is presented to the user.
func WithURLHandler(fn func(authURL string) error) Option {
	return func(p *Provider) {
		p.onURL = fn
	}
}

// Provider runs the Google consent flow.
type Provider struct {
	oauth   oauth2.Config
	port    int
	timeout time.Duration
	onURL   func(string) error
	logger  *logger.Logger
}

// NewProvider returns model.ErrGoogleDisabled when no client ID is
// configured.
func NewProvider(cfg config.Google, logger *logger.Logger, opts ...Option) (*Provider, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: set GOOGLE_CLIENT_ID to enable it", model.ErrGoogleDisabled)
	}

	p := &Provider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     GoogleEndpoint,
			Scopes:       scopes,
		},
		port:    cfg.RedirectPort,
		timeout: cfg.ConsentTimeout,
		onURL: func(authURL string) error {
			logger.Info("Google consent required", "url", authURL)
			return nil
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

type callbackResult struct {
	code string
	err  error
}

// AccessToken asks the user for consent and returns the Google access token.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", p.port))
	if err != nil {
		return "", fmt.Errorf("failed to listen for google redirect: %w", err)
	}

	conf := p.oauth
	conf.RedirectURL = fmt.Sprintf("http://%s/callback", ln.Addr().String())

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	results := make(chan callbackResult, 1)

	srv := &http.Server{
		Handler:           p.callbackRouter(state, results),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("Google provider: redirect listener failed", "error", err.Error())
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
	if err := p.onURL(authURL); err != nil {
		return "", fmt.Errorf("failed to open consent page: %w", err)
	}

	p.logger.Debug("Google provider: waiting for consent",
		"redirect_url", conf.RedirectURL,
		"timeout", p.timeout.String())

	waitCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var res callbackResult
	select {
	case res = <-results:
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", ErrConsentTimeout
	}
	if res.err != nil {
		return "", res.err
	}

	token, err := conf.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", fmt.Errorf("failed to exchange google authorization code: %w", err)
	}

	p.logger.Info("Google provider: access token obtained")

	return token.AccessToken, nil
}

func (p *Provider) callbackRouter(state string, results chan<- callbackResult) http.Handler {
	r := chi.NewRouter()
	r.Get("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var res callbackResult
		switch {
		case q.Get("state") != state:
			http.Error(w, "invalid state", http.StatusBadRequest)
			return
		case q.Get("error") != "":
			res.err = fmt.Errorf("google sign-in failed: %s", q.Get("error"))
		case q.Get("code") == "":
			res.err = errors.New("google sign-in failed: no authorization code")
		default:
			res.code = q.Get("code")
		}

		select {
		case results <- res:
		default:
			http.Error(w, "sign-in already completed", http.StatusConflict)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if res.err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, "Google sign-in failed. You can close this window.")
			return
		}
		fmt.Fprintln(w, "Google sign-in complete. You can close this window and return to the terminal.")
	})

	return r
}
