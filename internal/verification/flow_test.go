package verification

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/LorenzoCecattoPaim/Math/internal/mocks"
	"github.com/LorenzoCecattoPaim/Math/internal/model"
	"github.com/LorenzoCecattoPaim/Math/internal/storage/memory"
	"github.com/LorenzoCecattoPaim/Math/internal/testutil"
)

type fakeServer struct {
	mu          sync.Mutex
	codeCalls   int
	linkCalls   int
	resendCalls int
	codeErr     error
	linkErr     error
	resendErr   error
	codeGate    chan struct{}
	rotateTo    string
	rotateEmail string
}

func (s *fakeServer) VerifyGoogleEmailCode(ctx context.Context, pendingToken, code string) error {
	s.mu.Lock()
	s.codeCalls++
	gate, err := s.codeGate, s.codeErr
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return err
}

func (s *fakeServer) VerifyGoogleMagicLink(ctx context.Context, magicToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.linkCalls++
	return s.linkErr
}

func (s *fakeServer) ResendVerificationCode(ctx context.Context, pendingToken string) (model.ResendVerificationResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resendCalls++
	if s.resendErr != nil {
		return model.ResendVerificationResponse{}, s.resendErr
	}
	resp := model.ResendVerificationResponse{Message: "sent"}
	if s.rotateTo != "" {
		rotated := s.rotateTo
		resp.PendingToken = &rotated
	}
	if s.rotateEmail != "" {
		email := s.rotateEmail
		resp.Email = &email
	}
	return resp, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFlow(entry Entry, server *fakeServer, opts ...Option) (*Flow, *clock) {
	c := &clock{now: t0}
	opts = append([]Option{WithClock(c.Now)}, opts...)
	return NewFlow(entry, server, server, NewLimiter(DefaultLimits()), testutil.MakeNoopLogger(), opts...), c
}

func TestFlow_SubmitCode(t *testing.T) {
	server := &fakeServer{}
	flow, _ := newFlow(Entry{PendingToken: "p", Email: "a@b.co"}, server)

	require.Equal(t, AwaitingInput, flow.State())
	require.NoError(t, flow.SubmitCode(context.Background(), " 123456 "))

	assert.Equal(t, Verified, flow.State())
	assert.Equal(t, 1, server.codeCalls)
	assert.ErrorIs(t, flow.SubmitCode(context.Background(), "123456"), ErrAlreadyVerified)
}

func TestFlow_MalformedCodeNeverReachesServer(t *testing.T) {
	for _, code := range []string{"12345", "12a456", "", "1234567"} {
		t.Run(code, func(t *testing.T) {
			server := &fakeServer{}
			flow, _ := newFlow(Entry{PendingToken: "p"}, server)

			err := flow.SubmitCode(context.Background(), code)
			require.ErrorIs(t, err, model.ErrValidation)
			assert.Equal(t, AwaitingInput, flow.State())
			assert.Equal(t, 0, server.codeCalls)
			assert.ErrorIs(t, flow.Err(), model.ErrValidation)
		})
	}
}

func TestFlow_RejectedCodeReturnsToInput(t *testing.T) {
	server := &fakeServer{codeErr: model.NewAPIError(model.ErrRemote, http.StatusBadRequest, "Invalid verification code")}
	flow, _ := newFlow(Entry{PendingToken: "p"}, server)

	err := flow.SubmitCode(context.Background(), "000000")
	require.ErrorIs(t, err, model.ErrRemote)
	assert.Equal(t, AwaitingInput, flow.State())
	assert.Equal(t, "Invalid verification code", flow.Err().Error())

	server.codeErr = nil
	require.NoError(t, flow.SubmitCode(context.Background(), "123456"))
	assert.Equal(t, Verified, flow.State())
	assert.NoError(t, flow.Err())
}

func TestFlow_NoPendingToken(t *testing.T) {
	server := &fakeServer{}
	flow, _ := newFlow(Entry{}, server)

	assert.ErrorIs(t, flow.SubmitCode(context.Background(), "123456"), ErrNoPendingToken)
	_, err := flow.Resend(context.Background())
	assert.ErrorIs(t, err, ErrNoPendingToken)
	assert.Equal(t, 0, server.codeCalls+server.resendCalls)
}

func TestFlow_SecondSubmitWhileSubmittingIsRefused(t *testing.T) {
	server := &fakeServer{codeGate: make(chan struct{})}
	flow, _ := newFlow(Entry{PendingToken: "p"}, server)

	done := make(chan error, 1)
	go func() { done <- flow.SubmitCode(context.Background(), "123456") }()

	require.Eventually(t, func() bool { return flow.State() == Submitting }, time.Second, time.Millisecond)
	assert.ErrorIs(t, flow.SubmitCode(context.Background(), "123456"), ErrBusy)

	close(server.codeGate)
	require.NoError(t, <-done)
	assert.Equal(t, Verified, flow.State())
	assert.Equal(t, 1, server.codeCalls)
}

func TestFlow_MagicLinkVerifiesAutomatically(t *testing.T) {
	server := &fakeServer{}
	flow, _ := newFlow(Entry{MagicToken: "m", Email: "a@b.co"}, server)

	require.NoError(t, flow.Start(context.Background()))

	assert.Equal(t, Verified, flow.State())
	assert.False(t, flow.Checking())
	assert.Equal(t, 1, server.linkCalls)
	assert.Equal(t, 0, server.codeCalls)
}

func TestFlow_MagicLinkFailureKeepsCodePath(t *testing.T) {
	server := &fakeServer{linkErr: model.NewAPIError(model.ErrRemote, http.StatusBadRequest, "Invalid or expired link")}
	flow, _ := newFlow(Entry{MagicToken: "m", PendingToken: "p"}, server)

	err := flow.Start(context.Background())
	require.ErrorIs(t, err, model.ErrRemote)
	assert.Equal(t, AwaitingInput, flow.State())
	assert.False(t, flow.Checking())

	require.NoError(t, flow.SubmitCode(context.Background(), "123456"))
	assert.Equal(t, Verified, flow.State())
}

func TestFlow_StartWithoutMagicToken(t *testing.T) {
	server := &fakeServer{}
	flow, _ := newFlow(Entry{PendingToken: "p"}, server)

	require.NoError(t, flow.Start(context.Background()))
	assert.Equal(t, 0, server.linkCalls)
	assert.Equal(t, AwaitingInput, flow.State())
}

func TestFlow_ResendRotatesPendingToken(t *testing.T) {
	server := &fakeServer{rotateTo: "p2"}
	flow, c := newFlow(Entry{PendingToken: "p1", Email: "a@b.co"}, server)

	_, err := flow.Resend(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "p2", flow.Entry().PendingToken)

	state, seconds := flow.ResendStatus(c.Now())
	assert.IsType(t, CoolingDown{}, state)
	assert.Equal(t, 60, seconds)

	_, err = flow.Resend(context.Background())
	assert.ErrorIs(t, err, ErrCoolingDown)
	assert.Equal(t, 1, server.resendCalls)
}

func TestFlow_ResendRateLimit(t *testing.T) {
	server := &fakeServer{}
	flow, c := newFlow(Entry{PendingToken: "p", Email: "a@b.co"}, server)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := flow.Resend(ctx)
		require.NoError(t, err, "resend %d", i+1)
		c.Advance(time.Minute)
		flow.Tick(c.Now())
	}
	fifth := c.Now().Add(-time.Minute)

	_, err := flow.Resend(ctx)
	require.ErrorIs(t, err, ErrBlocked)
	assert.Equal(t, 5, server.resendCalls)
	assert.False(t, flow.CanResend(fifth.Add(59*time.Minute)))

	c.Advance(59 * time.Minute)
	flow.Tick(c.Now())
	state, _ := flow.ResendStatus(c.Now())
	assert.Equal(t, Idle{}, state)
	assert.True(t, flow.CanResend(c.Now()))

	_, err = flow.Resend(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, server.resendCalls)
}

func TestFlow_FailedResendIsNotCounted(t *testing.T) {
	server := &fakeServer{resendErr: model.NewAPIError(model.ErrRemote, http.StatusTooManyRequests, "Too many requests")}
	flow, c := newFlow(Entry{PendingToken: "p"}, server)

	_, err := flow.Resend(context.Background())
	require.ErrorIs(t, err, model.ErrRemote)
	assert.True(t, flow.CanResend(c.Now()))
	state, _ := flow.ResendStatus(c.Now())
	assert.Equal(t, Idle{}, state)
}

func TestFlow_LimitSurvivesRestart(t *testing.T) {
	store := memory.NewStore()
	server := &fakeServer{}
	flow, c := newFlow(Entry{PendingToken: "p", Email: "a@b.co"}, server, WithStore(store))

	_, err := flow.Resend(context.Background())
	require.NoError(t, err)

	limiter, err := LoadLimiter(store, "a@b.co", DefaultLimits())
	require.NoError(t, err)
	next := NewFlow(Entry{PendingToken: "p", Email: "a@b.co"}, server, server, limiter, testutil.MakeNoopLogger(), WithClock(c.Now))

	assert.False(t, next.CanResend(c.Now()))
	_, err = next.Resend(context.Background())
	assert.ErrorIs(t, err, ErrCoolingDown)
}

func TestFlow_LimitKeptUnderStartingEmail(t *testing.T) {
	store := memory.NewStore()
	server := &fakeServer{rotateTo: "p2", rotateEmail: "other@b.co"}
	flow, c := newFlow(Entry{PendingToken: "p", Email: "a@b.co"}, server, WithStore(store))

	_, err := flow.Resend(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "other@b.co", flow.Entry().Email)

	limiter, err := LoadLimiter(store, "a@b.co", DefaultLimits())
	require.NoError(t, err)
	assert.False(t, limiter.CanResend(c.Now()))

	_, err = store.Get(stateKey("other@b.co"))
	assert.ErrorIs(t, err, model.ErrStorageKeyNotFound)
}

func TestFlow_SaveFailureDoesNotFailResend(t *testing.T) {
	store := &mocks.KeyValueStore{}
	store.On("Put", stateKey("a@b.co"), mock.Anything).Return(errors.New("disk full"))
	server := &fakeServer{rotateTo: "p2"}
	flow, _ := newFlow(Entry{PendingToken: "p", Email: "a@b.co"}, server, WithStore(store))

	_, err := flow.Resend(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "p2", flow.Entry().PendingToken)
	store.AssertExpectations(t)
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name    string
		link    string
		want    Entry
		wantErr bool
	}{
		{
			name: "full link",
			link: "https://provalab.com.br/verify-email?pending_token=p&email=a%40b.co",
			want: Entry{PendingToken: "p", Email: "a@b.co"},
		},
		{
			name: "magic link",
			link: "https://provalab.com.br/verify-email?magic_token=m&email=a%40b.co",
			want: Entry{MagicToken: "m", Email: "a@b.co"},
		},
		{
			name: "bare query",
			link: "pending_token=p&magic_token=m",
			want: Entry{PendingToken: "p", MagicToken: "m"},
		},
		{
			name:    "no token",
			link:    "https://provalab.com.br/verify-email?email=a%40b.co",
			wantErr: true,
		},
		{
			name:    "garbage",
			link:    "%zz",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEntry(tt.link)
			if tt.wantErr {
				require.ErrorIs(t, err, model.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
