package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/LorenzoCecattoPaim/Math/internal/model"
	"github.com/LorenzoCecattoPaim/Math/internal/verification"
)

func newGoogleCommand(app *App) *cobra.Command {
	var accessToken string

	cmd := &cobra.Command{
		Use:   "google",
		Short: "Sign in with Google",
		Long: `Opens the Google consent screen, then asks for the 6-digit code sent
to your email. The magic link from the same email works too: pass it to
provalab verify --link.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pending, err := app.session.StartGoogleAuth(cmd.Context(), accessToken)
			if errors.Is(err, model.ErrGoogleDisabled) {
				return fmt.Errorf("%w: set GOOGLE_CLIENT_ID to enable it, or pass --access-token", err)
			}
			if err != nil {
				return err
			}

			app.printf("We sent a 6-digit code to %s. It expires in %d minutes.\n",
				pending.Email, int(pending.ExpiresIn().Minutes()))

			flow := app.newFlow(verification.EntryFromPending(pending))
			return app.verifyInteractive(cmd.Context(), flow)
		},
	}
	cmd.Flags().StringVar(&accessToken, "access-token", "", "Google access token, skips the consent screen")

	return cmd
}

func newVerifyCommand(app *App) *cobra.Command {
	var (
		link  string
		entry verification.Entry
		code  string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Confirm your email after a Google sign-in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if link != "" {
				parsed, err := verification.ParseEntry(link)
				if err != nil {
					return err
				}
				entry = parsed
			}

			flow := app.newFlow(entry)

			if err := flow.Start(cmd.Context()); err != nil && entry.PendingToken == "" {
				return err
			} else if err != nil {
				app.printf("The link could not be verified (%v). You can still use the code.\n", err)
			}
			if flow.State() == verification.Verified {
				app.greet()
				return nil
			}

			if code != "" {
				if err := flow.SubmitCode(cmd.Context(), code); err != nil {
					return err
				}
				app.greet()
				return nil
			}

			return app.verifyInteractive(cmd.Context(), flow)
		},
	}
	cmd.Flags().StringVar(&link, "link", "", "verification link from the email")
	cmd.Flags().StringVar(&entry.PendingToken, "pending-token", "", "pending verification token")
	cmd.Flags().StringVar(&entry.MagicToken, "magic-token", "", "magic link token")
	cmd.Flags().StringVar(&entry.Email, "email", "", "email being verified")
	cmd.Flags().StringVar(&code, "code", "", "6-digit verification code")

	return cmd
}

func newResendCommand(app *App) *cobra.Command {
	var (
		entry verification.Entry
		wait  bool
	)

	cmd := &cobra.Command{
		Use:   "resend",
		Short: "Send a new verification code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flow := app.newFlow(entry)

			if wait {
				if err := app.waitForResend(cmd.Context(), flow); err != nil {
					return err
				}
			}

			return app.resend(cmd.Context(), flow)
		},
	}
	cmd.Flags().StringVar(&entry.PendingToken, "pending-token", "", "pending verification token")
	cmd.Flags().StringVar(&entry.Email, "email", "", "email being verified")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the cooldown to end instead of failing")
	cmd.MarkFlagRequired("pending-token")
	cmd.MarkFlagRequired("email")

	return cmd
}

// newFlow restores the resend limit saved for the entry's email.
func (a *App) newFlow(entry verification.Entry) *verification.Flow {
	limiter := verification.NewLimiter(a.limits)
	if entry.Email != "" {
		loaded, err := verification.LoadLimiter(a.store, entry.Email, a.limits)
		if err != nil {
			a.logger.Warn("CLI: failed to restore resend limit", "error", err.Error())
		} else {
			limiter = loaded
		}
	}

	return verification.NewFlow(entry, a.session, a.auth, limiter, a.logger,
		verification.WithClock(a.now),
		verification.WithStore(a.store),
	)
}

// verifyInteractive reads codes until the email is verified. Typing
// "resend" asks for a new code; an empty line or closed input stops.
func (a *App) verifyInteractive(ctx context.Context, flow *verification.Flow) error {
	for {
		a.printResendStatus(flow)

		line, err := a.readLine("Code (or \"resend\"): ")
		if errors.Is(err, io.EOF) || (err == nil && line == "") {
			entry := flow.Entry()
			a.printf("\nVerification not finished. Continue later with:\n  provalab verify --pending-token %s --email %s\n",
				entry.PendingToken, entry.Email)
			return nil
		}
		if err != nil {
			return err
		}

		if strings.EqualFold(line, "resend") {
			if err := a.resend(ctx, flow); err != nil {
				a.printf("%v\n", err)
			}
			continue
		}

		err = flow.SubmitCode(ctx, line)
		if err == nil {
			a.greet()
			return nil
		}
		if errors.Is(err, verification.ErrNoPendingToken) || ctx.Err() != nil {
			return err
		}
		a.printf("%v\n", err)
	}
}

func (a *App) resend(ctx context.Context, flow *verification.Flow) error {
	resp, err := flow.Resend(ctx)
	if err != nil {
		return err
	}

	msg := resp.Message
	if msg == "" {
		msg = "A new code is on its way."
	}
	a.printf("%s\n", msg)
	if resp.PendingToken != nil {
		entry := flow.Entry()
		a.printf("Pending token: %s\n", entry.PendingToken)
	}

	return nil
}

func (a *App) printResendStatus(flow *verification.Flow) {
	state, seconds := flow.ResendStatus(a.now())
	switch s := state.(type) {
	case verification.CoolingDown:
		a.printf("You can request a new code in %ds.\n", seconds)
	case verification.Blocked:
		a.printf("Too many codes requested. Try again after %s.\n", s.Until.Local().Format("15:04"))
	}
}

// waitForResend shows the cooldown countdown once per second until a resend
// is allowed. A block is not waited out.
func (a *App) waitForResend(ctx context.Context, flow *verification.Flow) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	waited := false
	for {
		now := a.now()
		flow.Tick(now)

		state, seconds := flow.ResendStatus(now)
		switch s := state.(type) {
		case verification.Idle:
			if waited {
				a.printf("\n")
			}
			return nil
		case verification.Blocked:
			return fmt.Errorf("%w: try again after %s", verification.ErrBlocked, s.Until.Local().Format("15:04"))
		}

		a.printf("\rYou can request a new code in %ds ", seconds)
		waited = true

		select {
		case <-ctx.Done():
			a.printf("\n")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
