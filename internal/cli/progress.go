package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/LorenzoCecattoPaim/Math/internal/model"
	"github.com/LorenzoCecattoPaim/Math/internal/practice"
	"github.com/LorenzoCecattoPaim/Math/internal/progress"
)

func newHistoryCommand(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List your latest answers",
		Args:  cobra.NoArgs,
		RunE: app.protected(func(cmd *cobra.Command, args []string) error {
			attempts, err := app.attempts.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(attempts) == 0 {
				app.printf("No answers yet. Start with provalab practice algebra.\n")
				return nil
			}

			w := tabwriter.NewWriter(app.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tSUBJECT\tRESULT\tANSWER\tTIME")
			for _, a := range attempts {
				subject := progress.DefaultSubject
				if a.Exercise != nil && a.Exercise.Subject != "" {
					subject = a.Exercise.Subject
				}
				result := "wrong"
				if a.IsCorrect {
					result = "right"
				}
				spent := "-"
				if a.TimeSpentSeconds != nil {
					spent = practice.FormatClock(time.Duration(*a.TimeSpentSeconds) * time.Second)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					a.CreatedAt.Local().Format("2006-01-02 15:04"), model.SubjectName(subject), result, truncate(a.UserAnswer, 30), spent)
			}
			return w.Flush()
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of answers to show")

	return cmd
}

func newStatsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show your overall accuracy",
		Args:  cobra.NoArgs,
		RunE: app.protected(func(cmd *cobra.Command, args []string) error {
			stats, err := app.attempts.Stats(cmd.Context())
			if err != nil {
				return err
			}

			app.printf("Answered: %d\n", stats.Total)
			app.printf("Correct:  %d\n", stats.Correct)
			app.printf("Accuracy: %d%%\n", stats.Accuracy)
			return nil
		}),
	}
}

func newProgressCommand(app *App) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show your streak, recent days and subjects",
		Args:  cobra.NoArgs,
		RunE: app.protected(func(cmd *cobra.Command, args []string) error {
			p, err := app.attempts.Progress(cmd.Context())
			if err != nil {
				return err
			}
			now := app.now()

			app.printf("Answered: %d  Correct: %d  Accuracy: %d%%\n", p.Stats.Total, p.Stats.Correct, p.Stats.Accuracy)
			app.printf("Streak:   %d day(s)\n\n", progress.Streak(p.Attempts, now))

			w := tabwriter.NewWriter(app.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DAY\tANSWERED\tCORRECT\t")
			for _, d := range progress.LastDays(p.Attempts, now, days) {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", d.Date.Format("Mon 02/01"), d.Total, d.Correct, strings.Repeat("#", d.Total))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			subjects := progress.BySubject(p.Attempts)
			if len(subjects) == 0 {
				return nil
			}

			app.printf("\n")
			w = tabwriter.NewWriter(app.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SUBJECT\tANSWERED\tCORRECT\tACCURACY")
			for _, s := range subjects {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d%%\n", s.Name, s.Total, s.Correct, s.Percentage)
			}
			return w.Flush()
		}),
	}
	cmd.Flags().IntVar(&days, "days", 7, "number of days to chart")

	return cmd
}
