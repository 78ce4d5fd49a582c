package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptCreate is the body of POST /attempts. Grading happens client-side.
type AttemptCreate struct {
	ExerciseID       uuid.UUID `json:"exercise_id"`
	UserAnswer       string    `json:"user_answer"`
	IsCorrect        bool      `json:"is_correct"`
	TimeSpentSeconds *int      `json:"time_spent_seconds,omitempty"`
}

// Attempt is a stored answer, optionally with its exercise embedded.
type Attempt struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	ExerciseID       uuid.UUID `json:"exercise_id"`
	UserAnswer       string    `json:"user_answer"`
	IsCorrect        bool      `json:"is_correct"`
	TimeSpentSeconds *int      `json:"time_spent_seconds"`
	CreatedAt        time.Time `json:"created_at"`
	Exercise         *Exercise `json:"exercise"`
}

// Stats aggregates a user's attempts. Accuracy is a whole percentage.
type Stats struct {
	Total    int `json:"total"`
	Correct  int `json:"correct"`
	Accuracy int `json:"accuracy"`
}

// Progress is returned by GET /attempts/progress.
type Progress struct {
	Attempts []Attempt `json:"attempts"`
	Stats    Stats     `json:"stats"`
}
