// Package session holds the signed-in user and profile for the lifetime of
// the process and wraps the auth operations that change them.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/LorenzoCecattoPaim/Math/internal/logger"
	"github.com/LorenzoCecattoPaim/Math/internal/model"
)

// AuthService is the subset of the auth operations the session drives.
type AuthService interface {
	Signup(ctx context.Context, req model.SignupRequest) (model.TokenResponse, error)
	Login(ctx context.Context, email, password string) (model.TokenResponse, error)
	GoogleAuth(ctx context.Context, googleAccessToken string) (model.PendingGoogleAuth, error)
	VerifyEmailCode(ctx context.Context, pendingToken, code string) (model.TokenResponse, error)
	VerifyEmailMagicLink(ctx context.Context, magicToken string) (model.TokenResponse, error)
	GetMe(ctx context.Context) (model.User, error)
	Logout()
}

// ProfileFetcher loads the profile of the signed-in user.
type ProfileFetcher interface {
	Get(ctx context.Context) (model.Profile, error)
}

// GoogleTokenSource obtains a Google access token from the user.
type GoogleTokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// ProfileState tells apart the outcomes of the best-effort profile fetch.
type ProfileState int

const (
	// ProfileUnset means no fetch completed for the current user.
	ProfileUnset ProfileState = iota
	// ProfilePresent means the profile was loaded.
	ProfilePresent
	// ProfileAbsent means the server has no profile for the user.
	ProfileAbsent
	// ProfileFailed means the fetch failed for another reason.
	ProfileFailed
)

func (s ProfileState) String() string {
	switch s {
	case ProfilePresent:
		return "present"
	case ProfileAbsent:
		return "absent"
	case ProfileFailed:
		return "failed"
	}
	return "unset"
}

// ProfileResult is the outcome of the profile fetch. Profile is meaningful
// only when State is ProfilePresent and Err only when it is ProfileFailed.
type ProfileResult struct {
	State   ProfileState
	Profile model.Profile
	Err     error
}

// Manager owns the session state. It is safe for concurrent use.
type Manager struct {
	auth     AuthService
	profiles ProfileFetcher
	google   GoogleTokenSource
	tokens   model.TokenStore
	logger   *logger.Logger

	group singleflight.Group

	mu      sync.RWMutex
	user    *model.User
	profile ProfileResult
	loaded  bool
}

// NewManager creates a Manager. google may be nil when Google login is not
// configured.
func NewManager(
	auth AuthService,
	profiles ProfileFetcher,
	google GoogleTokenSource,
	tokens model.TokenStore,
	logger *logger.Logger,
) *Manager {
	return &Manager{
		auth:     auth,
		profiles: profiles,
		google:   google,
		tokens:   tokens,
		logger:   logger,
	}
}

// Bootstrap restores the session from the stored token. Whatever happens,
// the manager is Loaded afterwards. A stored token that no longer works is
// cleared and the error describing why is returned.
func (m *Manager) Bootstrap(ctx context.Context) error {
	defer m.markLoaded()

	if _, ok := m.tokens.AccessToken(); !ok {
		m.logger.Debug("Session: no stored token")
		return nil
	}

	if err := m.sync(ctx); err != nil {
		m.logger.Info("Session: stored token rejected, signing out",
			"error", err.Error())
		if clearErr := m.tokens.Clear(); clearErr != nil {
			m.logger.Error("Session: failed to clear stored token",
				"error", clearErr.Error())
		}
		m.reset()
		return fmt.Errorf("failed to restore session: %w", err)
	}

	return nil
}

// SignUp creates an account and loads the new session.
func (m *Manager) SignUp(ctx context.Context, req model.SignupRequest) error {
	if _, err := m.auth.Signup(ctx, req); err != nil {
		return err
	}
	return m.sync(ctx)
}

// SignIn logs in with email and password and loads the new session.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	if _, err := m.auth.Login(ctx, email, password); err != nil {
		return err
	}
	return m.sync(ctx)
}

// StartGoogleAuth exchanges a Google access token for a pending
// verification. When googleAccessToken is empty the configured token source
// asks the user for consent first.
func (m *Manager) StartGoogleAuth(ctx context.Context, googleAccessToken string) (model.PendingGoogleAuth, error) {
	if googleAccessToken == "" {
		if m.google == nil {
			return model.PendingGoogleAuth{}, model.ErrGoogleDisabled
		}

		token, err := m.google.AccessToken(ctx)
		if err != nil {
			return model.PendingGoogleAuth{}, fmt.Errorf("failed to get google access token: %w", err)
		}
		googleAccessToken = token
	}

	return m.auth.GoogleAuth(ctx, googleAccessToken)
}

// VerifyGoogleEmailCode completes a pending Google sign-in with the code.
func (m *Manager) VerifyGoogleEmailCode(ctx context.Context, pendingToken, code string) error {
	if _, err := m.auth.VerifyEmailCode(ctx, pendingToken, code); err != nil {
		return err
	}
	return m.sync(ctx)
}

// VerifyGoogleMagicLink completes a pending Google sign-in with the link.
func (m *Manager) VerifyGoogleMagicLink(ctx context.Context, magicToken string) error {
	if _, err := m.auth.VerifyEmailMagicLink(ctx, magicToken); err != nil {
		return err
	}
	return m.sync(ctx)
}

// SignOut forgets the session. Signing out twice is harmless.
func (m *Manager) SignOut() {
	m.auth.Logout()
	m.reset()
	m.logger.Debug("Session: signed out")
}

// Refresh reloads the user and profile of the current session.
func (m *Manager) Refresh(ctx context.Context) error {
	if _, ok := m.tokens.AccessToken(); !ok {
		m.reset()
		return model.ErrNotSignedIn
	}
	return m.sync(ctx)
}

// User returns the signed-in user.
func (m *Manager) User() (model.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.user == nil {
		return model.User{}, false
	}
	return *m.user, true
}

func (m *Manager) Profile() ProfileResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.profile
}

// Loaded reports whether Bootstrap has completed.
func (m *Manager) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.loaded
}

// Authenticated reports whether a user is signed in.
func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.user != nil
}

// sync fetches the user, then the profile. Concurrent callers share a
// single run, detached from their contexts and bounded by the HTTP client
// timeouts; a caller whose ctx is done returns without waiting for it.
func (m *Manager) sync(ctx context.Context) error {
	detached := context.WithoutCancel(ctx)
	ch := m.group.DoChan("sync", func() (any, error) {
		user, err := m.auth.GetMe(detached)
		if err != nil {
			if errors.Is(err, model.ErrUnauthorized) {
				m.reset()
			}
			return nil, err
		}

		profile := m.fetchProfile(detached)

		m.mu.Lock()
		m.user = &user
		m.profile = profile
		m.mu.Unlock()

		m.logger.Info("Session: user loaded",
			"user_id", user.ID,
			"profile", profile.State.String())

		return nil, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			m.logger.Debug("Session: joined in-flight user sync")
		}
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("user sync canceled: %w", ctx.Err())
	}
}

func (m *Manager) fetchProfile(ctx context.Context) ProfileResult {
	profile, err := m.profiles.Get(ctx)
	switch {
	case err == nil:
		return ProfileResult{State: ProfilePresent, Profile: profile}
	case errors.Is(err, model.ErrNotFound):
		return ProfileResult{State: ProfileAbsent}
	default:
		m.logger.Warn("Session: failed to load profile",
			"error", err.Error())
		return ProfileResult{State: ProfileFailed, Err: err}
	}
}

func (m *Manager) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.user = nil
	m.profile = ProfileResult{}
}

func (m *Manager) markLoaded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loaded = true
}
