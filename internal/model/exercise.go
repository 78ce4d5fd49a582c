package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Exercise is a practice question served by the API.
type Exercise struct {
	ID            uuid.UUID  `json:"id"`
	Question      string     `json:"question"`
	Options       []string   `json:"options"`
	CorrectAnswer string     `json:"correct_answer"`
	Explanation   *string    `json:"explanation"`
	Difficulty    Difficulty `json:"difficulty"`
	Subject       string     `json:"subject"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Difficulty enumerates exercise levels.
type Difficulty string

const (
	// DifficultyEasy covers basic concepts.
	DifficultyEasy Difficulty = "easy"
	// DifficultyMedium covers intermediate questions.
	DifficultyMedium Difficulty = "medium"
	// DifficultyHard covers advanced challenges.
	DifficultyHard Difficulty = "hard"
)

// Difficulties lists every level in presentation order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// ParseDifficulty validates a user supplied level.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(s)
	for _, known := range Difficulties {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: unknown difficulty %q (want easy, medium or hard)", ErrValidation, s)
}

// Label returns the display label of the level.
func (d Difficulty) Label() string {
	switch d {
	case DifficultyEasy:
		return "Easy"
	case DifficultyMedium:
		return "Medium"
	case DifficultyHard:
		return "Hard"
	}
	return string(d)
}

var subjectNames = map[string]string{
	"algebra":      "Algebra",
	"geometry":     "Geometria",
	"calculus":     "Calculo",
	"statistics":   "Estatistica",
	"trigonometry": "Trigonometria",
	"arithmetic":   "Aritmetica",
}

// SubjectName returns the display name of a subject slug. Unknown slugs are
// title-cased.
func SubjectName(subject string) string {
	if name, ok := subjectNames[subject]; ok {
		return name
	}
	if subject == "" {
		return "Disciplina"
	}
	return cases.Title(language.BrazilianPortuguese).String(subject)
}

// ExerciseFilter narrows GET /exercises.
type ExerciseFilter struct {
	Subject    string
	Difficulty Difficulty
	Limit      int
}
