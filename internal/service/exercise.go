package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/LorenzoCecattoPaim/Math/internal/api/rest"
	"github.com/LorenzoCecattoPaim/Math/internal/model"
)

// DefaultListLimit is used when a listing does not set a limit.
const DefaultListLimit = 50

type Exercises struct {
	client Requester
}

func NewExercises(client Requester) *Exercises {
	return &Exercises{client: client}
}

// Random fetches one exercise of the subject and difficulty.
func (e *Exercises) Random(ctx context.Context, subject string, difficulty model.Difficulty) (model.Exercise, error) {
	if subject == "" {
		return model.Exercise{}, model.NewValidationError("subject", "subject is required")
	}
	if _, err := model.ParseDifficulty(string(difficulty)); err != nil {
		return model.Exercise{}, err
	}

	var exercise model.Exercise
	err := e.client.Do(ctx, rest.Request{
		Endpoint: "/exercises/random",
		Query:    url.Values{"subject": {subject}, "difficulty": {string(difficulty)}},
		Fallback: "could not load exercise",
	}, &exercise)
	if err != nil {
		return model.Exercise{}, fmt.Errorf("failed to get random exercise: %w", err)
	}

	return exercise, nil
}

func (e *Exercises) List(ctx context.Context, filter model.ExerciseFilter) ([]model.Exercise, error) {
	query := url.Values{}
	if filter.Subject != "" {
		query.Set("subject", filter.Subject)
	}
	if filter.Difficulty != "" {
		query.Set("difficulty", string(filter.Difficulty))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query.Set("limit", strconv.Itoa(limit))

	var exercises []model.Exercise
	err := e.client.Do(ctx, rest.Request{
		Endpoint: "/exercises",
		Query:    query,
		Fallback: "could not list exercises",
	}, &exercises)
	if err != nil {
		return nil, fmt.Errorf("failed to list exercises: %w", err)
	}

	return exercises, nil
}

func (e *Exercises) Get(ctx context.Context, id uuid.UUID) (model.Exercise, error) {
	var exercise model.Exercise
	err := e.client.Do(ctx, rest.Request{
		Endpoint: "/exercises/" + id.String(),
		Fallback: "could not load exercise",
	}, &exercise)
	if err != nil {
		return model.Exercise{}, fmt.Errorf("failed to get exercise %s: %w", id, err)
	}

	return exercise, nil
}
