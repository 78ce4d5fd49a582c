// Package practice runs a practice round: choose a difficulty, fetch an
// exercise, answer it, grade it locally and save the attempt.
package practice

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/LorenzoCecattoPaim/Math/internal/logger"
	"github.com/LorenzoCecattoPaim/Math/internal/model"
)

// NoExplanation is shown when an exercise has no explanation.
const NoExplanation = "No explanation available."

var (
	ErrNoDifficulty     = errors.New("choose a difficulty first")
	ErrNoExercise       = errors.New("no exercise loaded")
	ErrNoSelection      = errors.New("select an answer first")
	ErrAlreadySubmitted = errors.New("answer already submitted")
	ErrExerciseAnswered = errors.New("exercise already answered, load the next one")
)

// Phase of a practice session.
type Phase int

const (
	ChoosingDifficulty Phase = iota
	NoExercise
	Answering
	Submitted
)

func (p Phase) String() string {
	switch p {
	case NoExercise:
		return "no_exercise"
	case Answering:
		return "answering"
	case Submitted:
		return "submitted"
	}
	return "choosing_difficulty"
}

// ExerciseSource fetches exercises.
type ExerciseSource interface {
	Random(ctx context.Context, subject string, difficulty model.Difficulty) (model.Exercise, error)
}

// AttemptRecorder saves graded attempts.
type AttemptRecorder interface {
	Submit(ctx context.Context, attempt model.AttemptCreate) (model.Attempt, error)
}

// Feedback is the result of a submission. The grade is always present;
// SaveErr reports a failure to store the attempt.
type Feedback struct {
	Correct       bool
	Selected      string
	CorrectAnswer string
	Explanation   string
	TimeSpent     time.Duration
	Attempt       *model.Attempt
	SaveErr       error
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces time.Now for the exercise timer.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.timer = NewTimer(now)
	}
}

// Session is one practice round on a subject. It is safe for concurrent
// use.
type Session struct {
	subject   string
	exercises ExerciseSource
	attempts  AttemptRecorder
	timer     *Timer
	logger    *logger.Logger

	mu         sync.Mutex
	phase      Phase
	difficulty model.Difficulty
	exercise   *model.Exercise
	selected   string
	answered   int
	correct    int
}

func NewSession(subject string, exercises ExerciseSource, attempts AttemptRecorder, logger *logger.Logger, opts ...Option) *Session {
	s := &Session{
		subject:   subject,
		exercises: exercises,
		attempts:  attempts,
		timer:     NewTimer(nil),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ChooseDifficulty sets the level for the following exercises.
func (s *Session) ChooseDifficulty(d model.Difficulty) error {
	if _, err := model.ParseDifficulty(string(d)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.difficulty = d
	s.clearExerciseLocked()
	s.phase = NoExercise

	return nil
}

// ChangeDifficulty goes back to the difficulty choice.
func (s *Session) ChangeDifficulty() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.difficulty = ""
	s.clearExerciseLocked()
	s.phase = ChoosingDifficulty
}

// Next fetches a new exercise and restarts the timer. An unanswered
// exercise is replaced.
func (s *Session) Next(ctx context.Context) (model.Exercise, error) {
	s.mu.Lock()
	if s.phase == ChoosingDifficulty {
		s.mu.Unlock()
		return model.Exercise{}, ErrNoDifficulty
	}
	difficulty := s.difficulty
	s.mu.Unlock()

	exercise, err := s.exercises.Random(ctx, s.subject, difficulty)
	if err != nil {
		s.logger.Info("Practice: failed to load exercise",
			"subject", s.subject,
			"difficulty", difficulty,
			"error", err.Error())
		return model.Exercise{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.difficulty != difficulty {
		return model.Exercise{}, fmt.Errorf("difficulty changed while loading: %w", ErrNoExercise)
	}
	s.exercise = &exercise
	s.selected = ""
	s.phase = Answering
	s.timer.Reset()
	s.timer.Start()

	return exercise, nil
}

// Select picks one of the options of the current exercise.
func (s *Session) Select(option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case Submitted:
		return ErrExerciseAnswered
	case Answering:
	default:
		return ErrNoExercise
	}
	if !slices.Contains(s.exercise.Options, option) {
		return model.NewValidationError("answer", "%q is not one of the options", option)
	}
	s.selected = option

	return nil
}

// SelectIndex picks the option at the zero-based index i.
func (s *Session) SelectIndex(i int) error {
	s.mu.Lock()
	if s.exercise == nil {
		s.mu.Unlock()
		return ErrNoExercise
	}
	options := s.exercise.Options
	s.mu.Unlock()

	if i < 0 || i >= len(options) {
		return model.NewValidationError("answer", "choose an option between 1 and %d", len(options))
	}
	return s.Select(options[i])
}

// Submit grades the selected answer and saves the attempt. The returned
// error is non-nil only when nothing could be graded.
func (s *Session) Submit(ctx context.Context) (Feedback, error) {
	s.mu.Lock()
	switch {
	case s.phase == Submitted:
		s.mu.Unlock()
		return Feedback{}, ErrAlreadySubmitted
	case s.phase != Answering:
		s.mu.Unlock()
		return Feedback{}, ErrNoExercise
	case s.selected == "":
		s.mu.Unlock()
		return Feedback{}, ErrNoSelection
	}

	s.phase = Submitted
	s.timer.Pause()
	exercise := *s.exercise
	feedback := Feedback{
		Correct:       s.selected == exercise.CorrectAnswer,
		Selected:      s.selected,
		CorrectAnswer: exercise.CorrectAnswer,
		Explanation:   Explanation(exercise),
		TimeSpent:     s.timer.Elapsed(),
	}
	s.answered++
	if feedback.Correct {
		s.correct++
	}
	s.mu.Unlock()

	seconds := int(feedback.TimeSpent / time.Second)
	saved, err := s.attempts.Submit(ctx, model.AttemptCreate{
		ExerciseID:       exercise.ID,
		UserAnswer:       feedback.Selected,
		IsCorrect:        feedback.Correct,
		TimeSpentSeconds: &seconds,
	})
	if err != nil {
		feedback.SaveErr = err
	} else {
		feedback.Attempt = &saved
	}

	s.logger.Debug("Practice: answer graded",
		"exercise_id", exercise.ID,
		"correct", feedback.Correct,
		"saved", feedback.SaveErr == nil)

	return feedback, nil
}

func (s *Session) Subject() string {
	return s.subject
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.phase
}

func (s *Session) Difficulty() model.Difficulty {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.difficulty
}

// Exercise returns the current exercise.
func (s *Session) Exercise() (model.Exercise, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exercise == nil {
		return model.Exercise{}, false
	}
	return *s.exercise, true
}

// Score returns how many exercises were answered and how many correctly.
func (s *Session) Score() (answered, correct int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.answered, s.correct
}

// Timer exposes the exercise timer.
func (s *Session) Timer() *Timer {
	return s.timer
}

func (s *Session) clearExerciseLocked() {
	s.exercise = nil
	s.selected = ""
	s.timer.Reset()
}

// Explanation returns the exercise explanation or NoExplanation.
func Explanation(e model.Exercise) string {
	if e.Explanation == nil || *e.Explanation == "" {
		return NoExplanation
	}
	return *e.Explanation
}
