package verification

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/LorenzoCecattoPaim/Math/internal/model"
)

var (
	// ErrCoolingDown means a code was resent too recently.
	ErrCoolingDown = errors.New("wait before requesting another code")
	// ErrBlocked means the resend quota is exhausted for now.
	ErrBlocked = errors.New("too many codes requested")
)

// Limits mirror the server's resend rate limit.
type Limits struct {
	Cooldown      time.Duration
	MaxResends    int
	BlockDuration time.Duration
}

// DefaultLimits returns the limits enforced by the ProvaLab API.
func DefaultLimits() Limits {
	return Limits{
		Cooldown:      60 * time.Second,
		MaxResends:    5,
		BlockDuration: time.Hour,
	}
}

// ResendState is one of Idle, CoolingDown or Blocked.
type ResendState interface {
	resendState()
}

// Idle allows a resend. Attempts counts resends in the current window.
type Idle struct {
	Attempts int
}

// CoolingDown refuses resends until Until.
type CoolingDown struct {
	Until    time.Time
	Attempts int
}

// Blocked refuses resends until Until, after which the count restarts.
type Blocked struct {
	Until time.Time
}

func (Idle) resendState()        {}
func (CoolingDown) resendState() {}
func (Blocked) resendState()     {}

// Limiter tracks client-side resend availability. It is not safe for
// concurrent use; Flow serializes access to it.
type Limiter struct {
	limits Limits
	state  ResendState
}

func NewLimiter(limits Limits) *Limiter {
	return &Limiter{limits: limits, state: Idle{}}
}

// State returns the current state without advancing it.
func (l *Limiter) State() ResendState {
	return l.state
}

// Tick moves expired cooldowns and blocks back to Idle.
func (l *Limiter) Tick(now time.Time) {
	switch s := l.state.(type) {
	case CoolingDown:
		if !now.Before(s.Until) {
			l.state = Idle{Attempts: s.Attempts}
		}
	case Blocked:
		if !now.Before(s.Until) {
			l.state = Idle{}
		}
	}
}

// CanResend reports whether a resend is allowed at now.
func (l *Limiter) CanResend(now time.Time) bool {
	l.Tick(now)
	_, idle := l.state.(Idle)
	return idle
}

// Check returns nil when a resend is allowed and otherwise an error
// matching ErrCoolingDown or ErrBlocked.
func (l *Limiter) Check(now time.Time) error {
	l.Tick(now)

	switch s := l.state.(type) {
	case CoolingDown:
		return fmt.Errorf("%w: try again in %d seconds", ErrCoolingDown, secondsUntil(now, s.Until))
	case Blocked:
		return fmt.Errorf("%w: try again after %s", ErrBlocked, s.Until.Local().Format("15:04"))
	}
	return nil
}

// Record registers a successful resend at now.
func (l *Limiter) Record(now time.Time) error {
	if err := l.Check(now); err != nil {
		return err
	}

	attempts := l.state.(Idle).Attempts + 1
	if attempts >= l.limits.MaxResends {
		l.state = Blocked{Until: now.Add(l.limits.BlockDuration)}
		return nil
	}
	l.state = CoolingDown{Until: now.Add(l.limits.Cooldown), Attempts: attempts}

	return nil
}

// CooldownSecondsRemaining is the whole number of seconds until the
// cooldown ends, rounded up; zero when not cooling down.
func (l *Limiter) CooldownSecondsRemaining(now time.Time) int {
	l.Tick(now)
	if s, ok := l.state.(CoolingDown); ok {
		return secondsUntil(now, s.Until)
	}
	return 0
}

// BlockedUntil returns the end of the current block.
func (l *Limiter) BlockedUntil(now time.Time) (time.Time, bool) {
	l.Tick(now)
	if s, ok := l.state.(Blocked); ok {
		return s.Until, true
	}
	return time.Time{}, false
}

// Attempts returns the resends counted in the current window.
func (l *Limiter) Attempts() int {
	switch s := l.state.(type) {
	case Idle:
		return s.Attempts
	case CoolingDown:
		return s.Attempts
	case Blocked:
		return l.limits.MaxResends
	}
	return 0
}

func secondsUntil(now, until time.Time) int {
	return int(math.Ceil(until.Sub(now).Seconds()))
}

type persistedState struct {
	Kind     string    `json:"kind"`
	Until    time.Time `json:"until,omitzero"`
	Attempts int       `json:"attempts,omitempty"`
}

func stateKey(email string) string {
	return "resend_limit:" + strings.ToLower(strings.TrimSpace(email))
}

// LoadLimiter restores the limiter saved for email, or a fresh one.
func LoadLimiter(store model.KeyValueStore, email string, limits Limits) (*Limiter, error) {
	l := NewLimiter(limits)

	data, err := store.Get(stateKey(email))
	if errors.Is(err, model.ErrStorageKeyNotFound) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load resend limit: %w", err)
	}

	var p persistedState
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode resend limit: %w", err)
	}

	switch p.Kind {
	case "cooling_down":
		l.state = CoolingDown{Until: p.Until, Attempts: p.Attempts}
	case "blocked":
		l.state = Blocked{Until: p.Until}
	default:
		l.state = Idle{Attempts: p.Attempts}
	}

	return l, nil
}

// Save persists the limiter state for email.
func (l *Limiter) Save(store model.KeyValueStore, email string) error {
	var p persistedState
	switch s := l.state.(type) {
	case Idle:
		p = persistedState{Kind: "idle", Attempts: s.Attempts}
	case CoolingDown:
		p = persistedState{Kind: "cooling_down", Until: s.Until, Attempts: s.Attempts}
	case Blocked:
		p = persistedState{Kind: "blocked", Until: s.Until}
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode resend limit: %w", err)
	}
	if err := store.Put(stateKey(email), data); err != nil {
		return fmt.Errorf("failed to save resend limit: %w", err)
	}

	return nil
}
