// Package cli is the provalab command line front end. Every command is a
// thin layer over the session, verification, practice and progress
// packages.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/LorenzoCecattoPaim/Math/internal/api/rest"
	"github.com/LorenzoCecattoPaim/Math/internal/config"
	"github.com/LorenzoCecattoPaim/Math/internal/logger"
	"github.com/LorenzoCecattoPaim/Math/internal/model"
	"github.com/LorenzoCecattoPaim/Math/internal/service"
	"github.com/LorenzoCecattoPaim/Math/internal/session"
	"github.com/LorenzoCecattoPaim/Math/internal/validate"
	"github.com/LorenzoCecattoPaim/Math/internal/verification"
)

// BuildInfo is stamped at link time.
type BuildInfo struct {
	Version string
	Date    string
	Commit  string
}

// Option configures an App.
type Option func(*App)

// WithIO replaces stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.out = out
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// App holds the services shared by all commands.
type App struct {
	cfg    *config.Config
	logger *logger.Logger
	store  model.KeyValueStore
	tokens model.TokenStore
	build  BuildInfo

	session   *session.Manager
	auth      *service.Auth
	profiles  *service.Profile
	exercises *service.Exercises
	attempts  *service.Attempts
	limits    verification.Limits

	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
	now    func() time.Time
}

// NewApp wires the API client and services. google and storage may be nil
// when Google login or avatar uploads are not configured.
func NewApp(
	cfg *config.Config,
	logger *logger.Logger,
	store model.KeyValueStore,
	tokens model.TokenStore,
	google session.GoogleTokenSource,
	storage model.ObjectStorage,
	build BuildInfo,
	opts ...Option,
) *App {
	client := rest.NewClient(cfg.API.URL, tokens, logger, rest.WithTimeout(cfg.API.Timeout))
	validator := validate.New(cfg.Password.MinLength)
	auth := service.NewAuth(client, tokens, validator, cfg.API.ExtendedTimeout, logger)
	profiles := service.NewProfile(client, storage, logger)

	a := &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		tokens:    tokens,
		build:     build,
		session:   session.NewManager(auth, profiles, google, tokens, logger),
		auth:      auth,
		profiles:  profiles,
		exercises: service.NewExercises(client),
		attempts:  service.NewAttempts(client, logger),
		limits: verification.Limits{
			Cooldown:      cfg.Verification.ResendCooldown,
			MaxResends:    cfg.Verification.MaxResends,
			BlockDuration: cfg.Verification.BlockDuration,
		},
		in:  os.Stdin,
		out: os.Stdout,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.reader = bufio.NewReader(a.in)

	return a
}

// requireSession restores the stored session and fails when nobody is
// signed in.
func (a *App) requireSession(ctx context.Context) error {
	if err := a.session.Bootstrap(ctx); err != nil {
		if errors.Is(err, model.ErrUnauthorized) {
			return fmt.Errorf("%w: session expired, run provalab login", model.ErrNotSignedIn)
		}
		return err
	}
	if !a.session.Authenticated() {
		return fmt.Errorf("%w: run provalab login first", model.ErrNotSignedIn)
	}
	return nil
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// readLine prompts and returns the trimmed answer. io.EOF means the input
// was closed.
func (a *App) readLine(prompt string) (string, error) {
	a.printf("%s", prompt)

	line, err := a.reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}

	return strings.TrimSpace(line), nil
}

// readSecret prompts without echo when stdin is a terminal.
func (a *App) readSecret(prompt string) (string, error) {
	f, ok := a.in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return a.readLine(prompt)
	}

	a.printf("%s", prompt)
	secret, err := term.ReadPassword(int(f.Fd()))
	a.printf("\n")
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	return string(secret), nil
}
