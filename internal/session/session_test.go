package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/LorenzoCecattoPaim/Math/internal/mocks"
	"github.com/LorenzoCecattoPaim/Math/internal/model"
	"github.com/LorenzoCecattoPaim/Math/internal/storage/memory"
	"github.com/LorenzoCecattoPaim/Math/internal/testutil"
	"github.com/LorenzoCecattoPaim/Math/internal/token"
)

type fixture struct {
	auth     *mocks.AuthService
	profiles *mocks.ProfileFetcher
	google   *mocks.GoogleTokenSource
	tokens   *token.Store
	manager  *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tokens, err := token.NewStore(memory.NewStore(), testutil.MakeNoopLogger())
	require.NoError(t, err)

	f := &fixture{
		auth:     &mocks.AuthService{},
		profiles: &mocks.ProfileFetcher{},
		google:   &mocks.GoogleTokenSource{},
		tokens:   tokens,
	}
	f.manager = NewManager(f.auth, f.profiles, f.google, tokens, testutil.MakeNoopLogger())

	return f
}

func testUser() model.User {
	return model.User{ID: uuid.New(), Email: "aluno@provalab.com.br", EmailVerified: true}
}

func TestManager_BootstrapWithoutToken(t *testing.T) {
	f := newFixture(t)

	require.False(t, f.manager.Loaded())
	require.NoError(t, f.manager.Bootstrap(context.Background()))

	assert.True(t, f.manager.Loaded())
	assert.False(t, f.manager.Authenticated())
	f.auth.AssertNotCalled(t, "GetMe", mock.Anything)
}

func TestManager_BootstrapRestoresSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.tokens.Set("stored"))

	user := testUser()
	name := "Aluno"
	profile := model.Profile{ID: uuid.New(), UserID: user.ID, FullName: &name}
	f.auth.On("GetMe", mock.Anything).Return(user, nil).Once()
	f.profiles.On("Get", mock.Anything).Return(profile, nil).Once()

	require.NoError(t, f.manager.Bootstrap(context.Background()))

	assert.True(t, f.manager.Loaded())
	got, ok := f.manager.User()
	require.True(t, ok)
	assert.Equal(t, user, got)
	assert.Equal(t, ProfileResult{State: ProfilePresent, Profile: profile}, f.manager.Profile())
	f.auth.AssertExpectations(t)
	f.profiles.AssertExpectations(t)
}

func TestManager_BootstrapClearsRejectedToken(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "unauthorized", err: model.NewAPIError(model.ErrUnauthorized, http.StatusUnauthorized, "expired")},
		{name: "server error", err: model.NewAPIError(model.ErrRemote, http.StatusInternalServerError, "boom")},
		{name: "timeout", err: model.NewAPIError(model.ErrTimeout, 0, "communication timed out")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.tokens.Set("stored"))
			f.auth.On("GetMe", mock.Anything).Return(model.User{}, tt.err).Once()

			err := f.manager.Bootstrap(context.Background())
			require.ErrorIs(t, err, tt.err)

			assert.True(t, f.manager.Loaded())
			assert.False(t, f.manager.Authenticated())
			_, ok := f.tokens.AccessToken()
			assert.False(t, ok)
			f.profiles.AssertNotCalled(t, "Get", mock.Anything)
		})
	}
}

func TestManager_ProfileOutcomes(t *testing.T) {
	serverErr := model.NewAPIError(model.ErrRemote, http.StatusInternalServerError, "database down")

	tests := []struct {
		name       string
		profileErr error
		wantState  ProfileState
		wantErr    error
	}{
		{name: "absent", profileErr: model.NewAPIError(model.ErrNotFound, http.StatusNotFound, "Profile not found"), wantState: ProfileAbsent},
		{name: "failed", profileErr: serverErr, wantState: ProfileFailed, wantErr: serverErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.auth.On("Login", mock.Anything, "a@b.co", "secret").Return(model.TokenResponse{AccessToken: "t"}, nil).Once()
			f.auth.On("GetMe", mock.Anything).Return(testUser(), nil).Once()
			f.profiles.On("Get", mock.Anything).Return(model.Profile{}, tt.profileErr).Once()

			require.NoError(t, f.manager.SignIn(context.Background(), "a@b.co", "secret"))

			assert.True(t, f.manager.Authenticated())
			result := f.manager.Profile()
			assert.Equal(t, tt.wantState, result.State)
			assert.Equal(t, tt.wantErr, result.Err)
		})
	}
}

func TestManager_SignInFailureLeavesSessionEmpty(t *testing.T) {
	f := newFixture(t)
	loginErr := model.NewAPIError(model.ErrUnauthorized, http.StatusUnauthorized, "Incorrect email or password")
	f.auth.On("Login", mock.Anything, "a@b.co", "wrong").Return(model.TokenResponse{}, loginErr).Once()

	err := f.manager.SignIn(context.Background(), "a@b.co", "wrong")
	require.ErrorIs(t, err, model.ErrUnauthorized)
	assert.Equal(t, "Incorrect email or password", err.Error())
	assert.False(t, f.manager.Authenticated())
	f.auth.AssertNotCalled(t, "GetMe", mock.Anything)
}

func TestManager_SignUpLoadsUserOnce(t *testing.T) {
	f := newFixture(t)
	req := model.SignupRequest{Email: "a@b.co", Password: "abcdef", ConfirmPassword: "abcdef"}
	f.auth.On("Signup", mock.Anything, req).Return(model.TokenResponse{AccessToken: "t"}, nil).Once()
	f.auth.On("GetMe", mock.Anything).Return(testUser(), nil).Once()
	f.profiles.On("Get", mock.Anything).Return(model.Profile{}, model.ErrNotFound).Once()

	require.NoError(t, f.manager.SignUp(context.Background(), req))

	f.auth.AssertNumberOfCalls(t, "GetMe", 1)
	f.profiles.AssertNumberOfCalls(t, "Get", 1)
}

func TestManager_StartGoogleAuth(t *testing.T) {
	pending := model.PendingGoogleAuth{PendingToken: "p", Email: "g@b.co", ExpiresInSeconds: 600}

	t.Run("explicit token", func(t *testing.T) {
		f := newFixture(t)
		f.auth.On("GoogleAuth", mock.Anything, "google-token").Return(pending, nil).Once()

		got, err := f.manager.StartGoogleAuth(context.Background(), "google-token")
		require.NoError(t, err)
		assert.Equal(t, pending, got)
		f.google.AssertNotCalled(t, "AccessToken", mock.Anything)
		assert.False(t, f.manager.Authenticated())
	})

	t.Run("token from consent flow", func(t *testing.T) {
		f := newFixture(t)
		f.google.On("AccessToken", mock.Anything).Return("consented", nil).Once()
		f.auth.On("GoogleAuth", mock.Anything, "consented").Return(pending, nil).Once()

		got, err := f.manager.StartGoogleAuth(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, pending, got)
	})

	t.Run("consent denied", func(t *testing.T) {
		f := newFixture(t)
		f.google.On("AccessToken", mock.Anything).Return("", errors.New("access_denied")).Once()

		_, err := f.manager.StartGoogleAuth(context.Background(), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access_denied")
		f.auth.AssertNotCalled(t, "GoogleAuth", mock.Anything, mock.Anything)
	})

	t.Run("google not configured", func(t *testing.T) {
		f := newFixture(t)
		m := NewManager(f.auth, f.profiles, nil, f.tokens, testutil.MakeNoopLogger())

		_, err := m.StartGoogleAuth(context.Background(), "")
		require.ErrorIs(t, err, model.ErrGoogleDisabled)
	})
}

func TestManager_VerifyGoogle(t *testing.T) {
	t.Run("code", func(t *testing.T) {
		f := newFixture(t)
		f.auth.On("VerifyEmailCode", mock.Anything, "p", "123456").Return(model.TokenResponse{AccessToken: "t"}, nil).Once()
		f.auth.On("GetMe", mock.Anything).Return(testUser(), nil).Once()
		f.profiles.On("Get", mock.Anything).Return(model.Profile{}, model.ErrNotFound).Once()

		require.NoError(t, f.manager.VerifyGoogleEmailCode(context.Background(), "p", "123456"))
		assert.True(t, f.manager.Authenticated())
	})

	t.Run("magic link", func(t *testing.T) {
		f := newFixture(t)
		f.auth.On("VerifyEmailMagicLink", mock.Anything, "m").Return(model.TokenResponse{AccessToken: "t"}, nil).Once()
		f.auth.On("GetMe", mock.Anything).Return(testUser(), nil).Once()
		f.profiles.On("Get", mock.Anything).Return(model.Profile{}, model.ErrNotFound).Once()

		require.NoError(t, f.manager.VerifyGoogleMagicLink(context.Background(), "m"))
		assert.True(t, f.manager.Authenticated())
	})

	t.Run("invalid code", func(t *testing.T) {
		f := newFixture(t)
		codeErr := model.NewAPIError(model.ErrRemote, http.StatusBadRequest, "Invalid verification code")
		f.auth.On("VerifyEmailCode", mock.Anything, "p", "000000").Return(model.TokenResponse{}, codeErr).Once()

		err := f.manager.VerifyGoogleEmailCode(context.Background(), "p", "000000")
		require.ErrorIs(t, err, model.ErrRemote)
		assert.False(t, f.manager.Authenticated())
	})
}

func TestManager_SignOutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.auth.On("Logout").Run(func(mock.Arguments) { _ = f.tokens.Clear() }).Return()
	f.auth.On("Login", mock.Anything, "a@b.co", "secret").Return(model.TokenResponse{AccessToken: "t"}, nil).Once()
	f.auth.On("GetMe", mock.Anything).Return(testUser(), nil).Once()
	f.profiles.On("Get", mock.Anything).Return(model.Profile{}, model.ErrNotFound).Once()
	require.NoError(t, f.tokens.Set("t"))
	require.NoError(t, f.manager.SignIn(context.Background(), "a@b.co", "secret"))

	f.manager.SignOut()
	f.manager.SignOut()

	assert.False(t, f.manager.Authenticated())
	assert.Equal(t, ProfileUnset, f.manager.Profile().State)
	_, ok := f.tokens.AccessToken()
	assert.False(t, ok)
	f.auth.AssertNumberOfCalls(t, "Logout", 2)
}

func TestManager_RefreshWithoutSession(t *testing.T) {
	f := newFixture(t)

	err := f.manager.Refresh(context.Background())
	require.ErrorIs(t, err, model.ErrNotSignedIn)
	f.auth.AssertNotCalled(t, "GetMe", mock.Anything)
}

func TestManager_RefreshUnauthorizedResetsUser(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.tokens.Set("t"))
	f.auth.On("GetMe", mock.Anything).Return(testUser(), nil).Once()
	f.profiles.On("Get", mock.Anything).Return(model.Profile{}, model.ErrNotFound).Once()
	require.NoError(t, f.manager.Refresh(context.Background()))
	require.True(t, f.manager.Authenticated())

	f.auth.On("GetMe", mock.Anything).Return(model.User{}, model.NewAPIError(model.ErrUnauthorized, http.StatusUnauthorized, "expired")).Once()

	err := f.manager.Refresh(context.Background())
	require.ErrorIs(t, err, model.ErrUnauthorized)
	assert.False(t, f.manager.Authenticated())
}

func TestManager_ConcurrentSyncSharesOneFetch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.tokens.Set("t"))

	release := make(chan struct{})
	f.auth.On("GetMe", mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(testUser(), nil)
	f.profiles.On("Get", mock.Anything).Return(model.Profile{}, model.ErrNotFound)

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.manager.Refresh(context.Background())
		}()
	}

	// let every caller reach the shared call before releasing it
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	calls := 0
	for _, c := range f.auth.Calls {
		if c.Method == "GetMe" {
			calls++
		}
	}
	assert.Less(t, calls, n)
}

func TestManager_CanceledCallerDoesNotFailSharedSync(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.tokens.Set("t"))

	release := make(chan struct{})
	f.auth.On("GetMe", mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(testUser(), nil).Once()
	f.profiles.On("Get", mock.Anything).Return(model.Profile{}, model.ErrNotFound).Once()

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		first <- f.manager.Refresh(ctx)
	}()
	time.Sleep(30 * time.Millisecond)

	second := make(chan error, 1)
	go func() {
		second <- f.manager.Refresh(context.Background())
	}()
	time.Sleep(30 * time.Millisecond)

	cancel()
	select {
	case err := <-first:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("canceled caller did not return")
	}

	close(release)
	select {
	case err := <-second:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}
	assert.True(t, f.manager.Authenticated())
	f.auth.AssertNumberOfCalls(t, "GetMe", 1)
}
