package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the provalab command tree.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "provalab",
		Short: "ProvaLab math practice from the terminal",
		Long: `Practice math exercises, follow your progress and manage your ProvaLab
account. Configuration is read from the environment and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(app.in)
	root.SetOut(app.out)

	root.AddCommand(
		newSignupCommand(app),
		newLoginCommand(app),
		newLogoutCommand(app),
		newWhoamiCommand(app),
		newGoogleCommand(app),
		newVerifyCommand(app),
		newResendCommand(app),
		newForgotPasswordCommand(app),
		newResetPasswordCommand(app),
		newProfileCommand(app),
		newPlanCommand(app),
		newExercisesCommand(app),
		newPracticeCommand(app),
		newHistoryCommand(app),
		newStatsCommand(app),
		newProgressCommand(app),
		newVersionCommand(app),
	)

	return root
}

// Execute runs the command line args against app.
func Execute(ctx context.Context, app *App, args []string) error {
	root := NewRootCommand(app)
	root.SetArgs(args)

	return root.ExecuteContext(ctx)
}

// protected runs the session bootstrap before run.
func (a *App) protected(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.requireSession(cmd.Context()); err != nil {
			return err
		}
		return run(cmd, args)
	}
}

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			tmpl := `Build version: %s
Build date: %s
Build commit: %s
`
			app.printf(tmpl, app.build.Version, app.build.Date, app.build.Commit)
		},
	}
}
