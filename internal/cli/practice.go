package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/LorenzoCecattoPaim/Math/internal/model"
	"github.com/LorenzoCecattoPaim/Math/internal/practice"
)

func newExercisesCommand(app *App) *cobra.Command {
	var (
		subject    string
		difficulty string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "exercises",
		Short: "List exercises",
		Args:  cobra.NoArgs,
		RunE: app.protected(func(cmd *cobra.Command, args []string) error {
			filter := model.ExerciseFilter{Subject: subject, Limit: limit}
			if difficulty != "" {
				d, err := model.ParseDifficulty(difficulty)
				if err != nil {
					return err
				}
				filter.Difficulty = d
			}

			exercises, err := app.exercises.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(exercises) == 0 {
				app.printf("No exercises found.\n")
				return nil
			}

			w := tabwriter.NewWriter(app.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSUBJECT\tLEVEL\tQUESTION")
			for _, e := range exercises {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, model.SubjectName(e.Subject), e.Difficulty.Label(), truncate(e.Question, 60))
			}
			return w.Flush()
		}),
	}
	cmd.Flags().StringVar(&subject, "subject", "", "subject slug, e.g. algebra")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "easy, medium or hard")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of exercises")

	return cmd
}

func newPracticeCommand(app *App) *cobra.Command {
	var (
		difficulty string
		count      int
	)

	cmd := &cobra.Command{
		Use:   "practice <subject>",
		Short: "Answer exercises of a subject",
		Long: `Shows one exercise at a time. Answer with the option number; "d" changes
the difficulty and "q" quits.`,
		Args: cobra.ExactArgs(1),
		RunE: app.protected(func(cmd *cobra.Command, args []string) error {
			s := practice.NewSession(args[0], app.exercises, app.attempts, app.logger, practice.WithClock(app.now))
			return app.practice(cmd.Context(), s, model.Difficulty(difficulty), count)
		}),
	}
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "easy, medium or hard")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many exercises (0 means until you quit)")

	return cmd
}

var errQuit = errors.New("quit")

func (a *App) practice(ctx context.Context, s *practice.Session, difficulty model.Difficulty, count int) error {
	a.printf("%s\n", model.SubjectName(s.Subject()))

	err := a.runPractice(ctx, s, difficulty, count)
	if err != nil && !errors.Is(err, errQuit) && !errors.Is(err, io.EOF) {
		return err
	}

	answered, correct := s.Score()
	if answered > 0 {
		a.printf("\nScore: %d/%d correct\n", correct, answered)
	}
	return nil
}

func (a *App) runPractice(ctx context.Context, s *practice.Session, difficulty model.Difficulty, count int) error {
	if err := a.chooseDifficulty(s, difficulty); err != nil {
		return err
	}

	for {
		exercise, err := s.Next(ctx)
		if errors.Is(err, model.ErrNotFound) {
			a.printf("No %s exercises available right now.\n", strings.ToLower(s.Difficulty().Label()))
			if err := a.chooseDifficulty(s, ""); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		a.printExercise(exercise)

		changed, err := a.answer(s, len(exercise.Options))
		if err != nil {
			return err
		}
		if changed {
			continue
		}

		feedback, err := s.Submit(ctx)
		if err != nil {
			return err
		}
		a.printFeedback(feedback)

		if answered, _ := s.Score(); count > 0 && answered >= count {
			return nil
		}

		line, err := a.readLine("Next exercise? [Y/n/d] ")
		if err != nil {
			return err
		}
		switch strings.ToLower(line) {
		case "n", "q":
			return errQuit
		case "d":
			if err := a.chooseDifficulty(s, ""); err != nil {
				return err
			}
		}
	}
}

func (a *App) chooseDifficulty(s *practice.Session, d model.Difficulty) error {
	for {
		if d == "" {
			line, err := a.readLine("Difficulty [easy/medium/hard]: ")
			if err != nil {
				return err
			}
			d = model.Difficulty(strings.ToLower(line))
		}

		err := s.ChooseDifficulty(d)
		if err == nil {
			return nil
		}
		a.printf("%v\n", err)
		d = ""
	}
}

// answer reads the option number. It reports true when the difficulty was
// changed instead.
func (a *App) answer(s *practice.Session, options int) (bool, error) {
	for {
		line, err := a.readLine(fmt.Sprintf("Answer [1-%d]: ", options))
		if err != nil {
			return false, err
		}

		switch strings.ToLower(line) {
		case "q":
			return false, errQuit
		case "d":
			s.ChangeDifficulty()
			return true, a.chooseDifficulty(s, "")
		}

		n, err := strconv.Atoi(line)
		if err != nil {
			a.printf("Type the number of an option.\n")
			continue
		}
		if err := s.SelectIndex(n - 1); err != nil {
			a.printf("%v\n", err)
			continue
		}
		return false, nil
	}
}

func (a *App) printExercise(e model.Exercise) {
	a.printf("\n[%s] %s\n", e.Difficulty.Label(), e.Question)
	for i, option := range e.Options {
		a.printf("  %d) %s\n", i+1, option)
	}
}

func (a *App) printFeedback(f practice.Feedback) {
	if f.Correct {
		a.printf("Correct!")
	} else {
		a.printf("Incorrect. The answer is %s.", f.CorrectAnswer)
	}
	a.printf(" (%s)\n", practice.FormatClock(f.TimeSpent))
	a.printf("Explanation: %s\n", f.Explanation)
	if f.SaveErr != nil {
		a.printf("Your answer could not be saved: %v\n", f.SaveErr)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
