package cli

import (
	"github.com/spf13/cobra"

	"github.com/LorenzoCecattoPaim/Math/internal/model"
	"github.com/LorenzoCecattoPaim/Math/internal/session"
	"github.com/LorenzoCecattoPaim/Math/internal/token"
)

func newSignupCommand(app *App) *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a ProvaLab account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := app.readSecret("Password: ")
			if err != nil {
				return err
			}
			confirm, err := app.readSecret("Confirm password: ")
			if err != nil {
				return err
			}

			err = app.session.SignUp(cmd.Context(), model.SignupRequest{
				Email:           email,
				Password:        password,
				ConfirmPassword: confirm,
				FullName:        name,
			})
			if err != nil {
				return err
			}

			app.greet()
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.MarkFlagRequired("email")

	return cmd
}

func newLoginCommand(app *App) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := app.readSecret("Password: ")
			if err != nil {
				return err
			}

			if err := app.session.SignIn(cmd.Context(), email, password); err != nil {
				return err
			}

			app.greet()
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.MarkFlagRequired("email")

	return cmd
}

func newLogoutCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			app.session.SignOut()
			app.printf("Signed out.\n")
		},
	}
}

func newWhoamiCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: app.protected(func(cmd *cobra.Command, args []string) error {
			user, _ := app.session.User()

			app.printf("Email:    %s\n", user.Email)
			app.printf("Name:     %s\n", user.DisplayName())
			app.printf("Verified: %t\n", user.EmailVerified)
			if user.GoogleID != nil {
				app.printf("Login:    Google\n")
			}

			if raw, ok := app.tokens.AccessToken(); ok {
				if claims, err := token.Inspect(raw); err == nil && !claims.ExpiresAt.IsZero() {
					app.printf("Session:  expires %s\n", claims.ExpiresAt.Local().Format("2006-01-02 15:04"))
				}
			}

			app.printProfileState(app.session.Profile())
			return nil
		}),
	}
}

func (a *App) printProfileState(result session.ProfileResult) {
	switch result.State {
	case session.ProfilePresent:
		if result.Profile.AvatarURL != nil {
			a.printf("Avatar:   %s\n", *result.Profile.AvatarURL)
		}
	case session.ProfileAbsent:
		a.printf("Profile:  not created yet\n")
	case session.ProfileFailed:
		a.printf("Profile:  unavailable (%v)\n", result.Err)
	}
}

func (a *App) greet() {
	user, ok := a.session.User()
	if !ok {
		a.printf("Signed in.\n")
		return
	}
	a.printf("Welcome, %s!\n", user.DisplayName())
}

func newForgotPasswordCommand(app *App) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Email a password reset link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := app.auth.ForgotPassword(cmd.Context(), email)
			if err != nil {
				return err
			}
			app.printf("%s\n", msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.MarkFlagRequired("email")

	return cmd
}

func newResetPasswordCommand(app *App) *cobra.Command {
	var resetToken string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with the token from the reset email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := app.readSecret("New password: ")
			if err != nil {
				return err
			}
			confirm, err := app.readSecret("Confirm new password: ")
			if err != nil {
				return err
			}

			msg, err := app.auth.ResetPassword(cmd.Context(), resetToken, password, confirm)
			if err != nil {
				return err
			}
			app.printf("%s\n", msg)
			return nil
		},
	}
	cmd.Flags().StringVar(&resetToken, "token", "", "reset token from the email link")
	cmd.MarkFlagRequired("token")

	return cmd
}
