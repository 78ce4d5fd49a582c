package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/LorenzoCecattoPaim/Math/internal/model"
	"github.com/LorenzoCecattoPaim/Math/internal/session"
)

func newProfileCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit your profile",
		Args:  cobra.NoArgs,
		RunE:  app.protected(app.showProfile),
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show your profile",
		Args:  cobra.NoArgs,
		RunE:  app.protected(app.showProfile),
	}

	var name string
	update := &cobra.Command{
		Use:   "update",
		Short: "Change your display name",
		Args:  cobra.NoArgs,
		RunE: app.protected(func(cmd *cobra.Command, args []string) error {
			profile, err := app.profiles.Update(cmd.Context(), model.ProfileUpdate{FullName: &name})
			if err != nil {
				return err
			}
			app.printProfile(profile)
			return nil
		}),
	}
	update.Flags().StringVar(&name, "name", "", "full name")
	update.MarkFlagRequired("name")

	avatar := &cobra.Command{
		Use:   "avatar <image>",
		Short: "Upload a profile picture (png, jpg, gif or webp)",
		Args:  cobra.ExactArgs(1),
		RunE: app.protected(func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open image: %w", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			user, _ := app.session.User()
			profile, err := app.profiles.UploadAvatar(cmd.Context(), user.ID, filepath.Base(args[0]), f, info.Size())
			if err != nil {
				return err
			}
			app.printProfile(profile)
			return nil
		}),
	}

	cmd.AddCommand(show, update, avatar)

	return cmd
}

func (a *App) showProfile(cmd *cobra.Command, args []string) error {
	result := a.session.Profile()
	switch result.State {
	case session.ProfilePresent:
		a.printProfile(result.Profile)
	case session.ProfileAbsent:
		a.printf("No profile yet. Create one with provalab profile update --name \"Your Name\".\n")
	case session.ProfileFailed:
		return result.Err
	}
	return nil
}

func (a *App) printProfile(p model.Profile) {
	name := "-"
	if p.FullName != nil && *p.FullName != "" {
		name = *p.FullName
	}
	avatar := "-"
	if p.AvatarURL != nil && *p.AvatarURL != "" {
		avatar = *p.AvatarURL
	}

	a.printf("Name:    %s\n", name)
	a.printf("Avatar:  %s\n", avatar)
	a.printf("Updated: %s\n", p.UpdatedAt.Local().Format("2006-01-02 15:04"))
}

func newPlanCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show your subscription plan",
		Args:  cobra.NoArgs,
		RunE: app.protected(func(cmd *cobra.Command, args []string) error {
			plan, err := app.profiles.Plan(cmd.Context())
			if err != nil {
				return err
			}

			app.printf("Plan:            %s\n", plan.Plan)
			app.printf("Uses:            %d\n", plan.UsesCount)
			app.printf("Free uses left:  %d\n", plan.RemainingFreeUses())
			return nil
		}),
	}
}
