// Package verification drives the email confirmation step that follows a
// Google sign-in: code submission, magic link verification and the resend
// rate limit.
package verification

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/LorenzoCecattoPaim/Math/internal/logger"
	"github.com/LorenzoCecattoPaim/Math/internal/model"
	"github.com/LorenzoCecattoPaim/Math/internal/validate"
)

var (
	// ErrBusy means a code submission is already in flight.
	ErrBusy = errors.New("verification already in progress")
	// ErrNoPendingToken means the flow was entered without a pending
	// verification; the Google sign-in has to be restarted.
	ErrNoPendingToken = errors.New("invalid verification session, start the Google sign-in again")
	// ErrAlreadyVerified means the flow has already completed.
	ErrAlreadyVerified = errors.New("email already verified")
)

// State of the code submission machine.
type State int

const (
	AwaitingInput State = iota
	Submitting
	Verified
)

func (s State) String() string {
	switch s {
	case Submitting:
		return "submitting"
	case Verified:
		return "verified"
	}
	return "awaiting_input"
}

// Verifier completes a pending sign-in.
type Verifier interface {
	VerifyGoogleEmailCode(ctx context.Context, pendingToken, code string) error
	VerifyGoogleMagicLink(ctx context.Context, magicToken string) error
}

// Resender asks the server for a new code.
type Resender interface {
	ResendVerificationCode(ctx context.Context, pendingToken string) (model.ResendVerificationResponse, error)
}

// Entry is what the flow is started with, usually parsed from the
// /verify-email link.
type Entry struct {
	PendingToken string
	MagicToken   string
	Email        string
}

// EntryFromPending builds an Entry from a Google token exchange result.
func EntryFromPending(p model.PendingGoogleAuth) Entry {
	return Entry{PendingToken: p.PendingToken, Email: p.Email}
}

// ParseEntry reads pending_token, magic_token and email from a verification
// link. A bare query string is accepted too.
func ParseEntry(link string) (Entry, error) {
	u, err := url.Parse(link)
	if err != nil {
		return Entry{}, model.NewValidationError("link", "invalid verification link: %v", err)
	}

	q := u.Query()
	if u.RawQuery == "" && u.Scheme == "" && u.Host == "" {
		if q, err = url.ParseQuery(link); err != nil {
			return Entry{}, model.NewValidationError("link", "invalid verification link: %v", err)
		}
	}

	entry := Entry{
		PendingToken: q.Get("pending_token"),
		MagicToken:   q.Get("magic_token"),
		Email:        q.Get("email"),
	}
	if entry.PendingToken == "" && entry.MagicToken == "" {
		return Entry{}, model.NewValidationError("link", "verification link has no token")
	}

	return entry, nil
}

// Option configures a Flow.
type Option func(*Flow)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(f *Flow) {
		f.now = now
	}
}

// WithStore persists the resend limit so later processes honor it.
func WithStore(store model.KeyValueStore) Option {
	return func(f *Flow) {
		f.store = store
	}
}

// Flow is the verification state machine. It is safe for concurrent use:
// the magic link check, code submission and resend may overlap.
type Flow struct {
	verifier Verifier
	resender Resender
	limiter  *Limiter
	store    model.KeyValueStore
	now      func() time.Time
	logger   *logger.Logger

	// limitKey is the email the resend limit is saved under. It stays the
	// entry email the flow started with, even when a resend returns another.
	limitKey string

	mu        sync.Mutex
	entry     Entry
	state     State
	lastErr   error
	checking  bool
	resending bool
}

func NewFlow(entry Entry, verifier Verifier, resender Resender, limiter *Limiter, logger *logger.Logger, opts ...Option) *Flow {
	f := &Flow{
		verifier: verifier,
		resender: resender,
		limiter:  limiter,
		now:      time.Now,
		logger:   logger,
		entry:    entry,
		limitKey: entry.Email,
		state:    AwaitingInput,
	}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Start attempts magic link verification when the entry carries a magic
// token. It returns nil when there is nothing to check. A failed check
// leaves the code path available.
func (f *Flow) Start(ctx context.Context) error {
	f.mu.Lock()
	magic := f.entry.MagicToken
	if magic == "" || f.state == Verified {
		f.mu.Unlock()
		return nil
	}
	f.checking = true
	f.mu.Unlock()

	f.logger.Debug("Verification: checking magic link",
		"email", f.entry.Email)

	err := f.verifier.VerifyGoogleMagicLink(ctx, magic)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.checking = false
	if err != nil {
		f.lastErr = err
		f.logger.Info("Verification: magic link rejected",
			"error", err.Error())
		return fmt.Errorf("failed to verify link: %w", err)
	}
	f.state = Verified
	f.lastErr = nil
	f.logger.Info("Verification: verified by magic link")

	return nil
}

// SubmitCode verifies a 6-digit code. Malformed codes are rejected before
// any request is made.
func (f *Flow) SubmitCode(ctx context.Context, code string) error {
	f.mu.Lock()
	switch {
	case f.state == Verified:
		f.mu.Unlock()
		return ErrAlreadyVerified
	case f.state == Submitting:
		f.mu.Unlock()
		return ErrBusy
	case f.entry.PendingToken == "":
		f.mu.Unlock()
		return ErrNoPendingToken
	}
	if err := validate.Code(code); err != nil {
		f.lastErr = err
		f.mu.Unlock()
		return err
	}
	f.state = Submitting
	pending := f.entry.PendingToken
	f.mu.Unlock()

	err := f.verifier.VerifyGoogleEmailCode(ctx, pending, code)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state == Verified {
		// the magic link won the race
		return nil
	}
	if err != nil {
		f.state = AwaitingInput
		f.lastErr = err
		return err
	}
	f.state = Verified
	f.lastErr = nil
	f.logger.Info("Verification: verified by code",
		"email", f.entry.Email)

	return nil
}

// Resend requests a new code if the limiter allows it. On success the
// pending token is replaced by the one the server returned, if any.
func (f *Flow) Resend(ctx context.Context) (model.ResendVerificationResponse, error) {
	now := f.now()

	f.mu.Lock()
	switch {
	case f.state == Verified:
		f.mu.Unlock()
		return model.ResendVerificationResponse{}, ErrAlreadyVerified
	case f.entry.PendingToken == "":
		f.mu.Unlock()
		return model.ResendVerificationResponse{}, ErrNoPendingToken
	case f.resending:
		f.mu.Unlock()
		return model.ResendVerificationResponse{}, ErrBusy
	}
	if err := f.limiter.Check(now); err != nil {
		f.mu.Unlock()
		return model.ResendVerificationResponse{}, err
	}
	f.resending = true
	pending := f.entry.PendingToken
	f.mu.Unlock()

	resp, err := f.resender.ResendVerificationCode(ctx, pending)

	f.mu.Lock()
	defer f.mu.Unlock()

	f.resending = false
	if err != nil {
		return model.ResendVerificationResponse{}, err
	}

	if err := f.limiter.Record(now); err != nil {
		f.logger.Warn("Verification: resend counted while limited",
			"error", err.Error())
	}
	if resp.PendingToken != nil && *resp.PendingToken != "" {
		f.entry.PendingToken = *resp.PendingToken
	}
	if resp.Email != nil && *resp.Email != "" {
		f.entry.Email = *resp.Email
	}
	f.saveLocked()

	f.logger.Info("Verification: code resent",
		"email", f.entry.Email,
		"attempts", f.limiter.Attempts())

	return resp, nil
}

// Tick advances the resend countdowns.
func (f *Flow) Tick(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	before := f.limiter.State()
	f.limiter.Tick(now)
	if f.limiter.State() != before {
		f.saveLocked()
	}
}

// ResendStatus reports the limiter state and the cooldown left at now.
func (f *Flow) ResendStatus(now time.Time) (ResendState, int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	seconds := f.limiter.CooldownSecondsRemaining(now)
	return f.limiter.State(), seconds
}

// CanResend reports whether Resend would be attempted at now.
func (f *Flow) CanResend(now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return !f.resending && f.state != Verified && f.entry.PendingToken != "" && f.limiter.CanResend(now)
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state
}

// Checking reports whether the magic link check is running.
func (f *Flow) Checking() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.checking
}

// Err returns the error of the last failed step.
func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.lastErr
}

// Entry returns the current entry, including a rotated pending token.
func (f *Flow) Entry() Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.entry
}

func (f *Flow) saveLocked() {
	if f.store == nil || f.limitKey == "" {
		return
	}
	if err := f.limiter.Save(f.store, f.limitKey); err != nil {
		f.logger.Warn("Verification: failed to save resend limit",
			"error", err.Error())
	}
}
