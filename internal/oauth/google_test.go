package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/LorenzoCecattoPaim/Math/internal/config"
	"github.com/LorenzoCecattoPaim/Math/internal/model"
	"github.com/LorenzoCecattoPaim/Math/internal/testutil"
)

type tokenEndpoint struct {
	mu       sync.Mutex
	form     url.Values
	server   *httptest.Server
	endpoint oauth2.Endpoint
}

func newTokenEndpoint(t *testing.T) *tokenEndpoint {
	te := &tokenEndpoint{}

	r := chi.NewRouter()
	r.Post("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		te.mu.Lock()
		te.form = r.PostForm
		te.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "google-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	te.server = httptest.NewServer(r)
	t.Cleanup(te.server.Close)

	te.endpoint = oauth2.Endpoint{
		AuthURL:   te.server.URL + "/auth",
		TokenURL:  te.server.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}

	return te
}

func googleConfig() config.Google {
	return config.Google{
		ClientID:       "client-id",
		ClientSecret:   "client-secret",
		RedirectPort:   0,
		ConsentTimeout: 5 * time.Second,
	}
}

// redirectWith simulates the browser: it follows the consent URL back to
// the loopback listener with the given query parameters.
func redirectWith(t *testing.T, params func(state string) url.Values) func(string) error {
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		q := u.Query()

		assert.Equal(t, "client-id", q.Get("client_id"))
		assert.Equal(t, "S256", q.Get("code_challenge_method"))
		assert.NotEmpty(t, q.Get("code_challenge"))
		assert.Contains(t, q.Get("scope"), "email")

		callback := q.Get("redirect_uri") + "?" + params(q.Get("state")).Encode()
		go func() {
			resp, err := http.Get(callback)
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	_, err := NewProvider(config.Google{}, testutil.MakeNoopLogger())
	require.ErrorIs(t, err, model.ErrGoogleDisabled)
	assert.Contains(t, err.Error(), "GOOGLE_CLIENT_ID")
}

func TestProvider_AccessToken(t *testing.T) {
	te := newTokenEndpoint(t)

	p, err := NewProvider(googleConfig(), testutil.MakeNoopLogger(),
		WithEndpoint(te.endpoint),
		WithURLHandler(redirectWith(t, func(state string) url.Values {
			return url.Values{"code": {"auth-code"}, "state": {state}}
		})))
	require.NoError(t, err)

	token, err := p.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "google-access", token)

	te.mu.Lock()
	defer te.mu.Unlock()
	assert.Equal(t, "auth-code", te.form.Get("code"))
	assert.NotEmpty(t, te.form.Get("code_verifier"))
	assert.Equal(t, "client-id", te.form.Get("client_id"))
}

func TestProvider_ConsentDenied(t *testing.T) {
	te := newTokenEndpoint(t)

	p, err := NewProvider(googleConfig(), testutil.MakeNoopLogger(),
		WithEndpoint(te.endpoint),
		WithURLHandler(redirectWith(t, func(state string) url.Values {
			return url.Values{"error": {"access_denied"}, "state": {state}}
		})))
	require.NoError(t, err)

	_, err = p.AccessToken(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_denied")
}

func TestProvider_ConsentTimeout(t *testing.T) {
	cfg := googleConfig()
	cfg.ConsentTimeout = 50 * time.Millisecond

	p, err := NewProvider(cfg, testutil.MakeNoopLogger(), WithURLHandler(func(string) error { return nil }))
	require.NoError(t, err)

	_, err = p.AccessToken(context.Background())
	require.ErrorIs(t, err, ErrConsentTimeout)
}

func TestProvider_CallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p, err := NewProvider(googleConfig(), testutil.MakeNoopLogger(), WithURLHandler(func(string) error {
		cancel()
		return nil
	}))
	require.NoError(t, err)

	_, err = p.AccessToken(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCallbackRouter_RejectsForeignState(t *testing.T) {
	p, err := NewProvider(googleConfig(), testutil.MakeNoopLogger())
	require.NoError(t, err)

	results := make(chan callbackResult, 1)
	handler := p.callbackRouter("expected", results)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=other&code=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, results)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=expected", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	res := <-results
	assert.EqualError(t, res.err, "google sign-in failed: no authorization code")
}
