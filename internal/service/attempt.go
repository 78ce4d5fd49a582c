package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/LorenzoCecattoPaim/Math/internal/api/rest"
	"github.com/LorenzoCecattoPaim/Math/internal/logger"
	"github.com/LorenzoCecattoPaim/Math/internal/model"
)

type Attempts struct {
	client Requester
	logger *logger.Logger
}

func NewAttempts(client Requester, logger *logger.Logger) *Attempts {
	return &Attempts{client: client, logger: logger}
}

// Submit records an attempt graded by the caller.
func (a *Attempts) Submit(ctx context.Context, attempt model.AttemptCreate) (model.Attempt, error) {
	if attempt.ExerciseID == uuid.Nil {
		return model.Attempt{}, model.NewValidationError("exercise_id", "exercise is required")
	}
	if attempt.TimeSpentSeconds != nil && *attempt.TimeSpentSeconds < 0 {
		return model.Attempt{}, model.NewValidationError("time_spent_seconds", "time spent cannot be negative")
	}

	var saved model.Attempt
	err := a.client.Do(ctx, rest.Request{
		Method:   http.MethodPost,
		Endpoint: "/attempts",
		JSON:     attempt,
		Fallback: "could not save attempt",
	}, &saved)
	if err != nil {
		a.logger.Warn("Attempt service: failed to save attempt",
			"exercise_id", attempt.ExerciseID,
			"error", err.Error())
		return model.Attempt{}, fmt.Errorf("failed to submit attempt: %w", err)
	}

	a.logger.Debug("Attempt service: attempt saved",
		"attempt_id", saved.ID,
		"correct", saved.IsCorrect)

	return saved, nil
}

// History returns the most recent attempts, newest first.
func (a *Attempts) History(ctx context.Context, limit int) ([]model.Attempt, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var attempts []model.Attempt
	err := a.client.Do(ctx, rest.Request{
		Endpoint: "/attempts",
		Query:    url.Values{"limit": {strconv.Itoa(limit)}},
		Fallback: "could not load history",
	}, &attempts)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt history: %w", err)
	}

	return attempts, nil
}

func (a *Attempts) Stats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats
	err := a.client.Do(ctx, rest.Request{
		Endpoint: "/attempts/stats",
		Fallback: "could not load statistics",
	}, &stats)
	if err != nil {
		return model.Stats{}, fmt.Errorf("failed to get stats: %w", err)
	}

	return stats, nil
}

func (a *Attempts) Progress(ctx context.Context) (model.Progress, error) {
	var progress model.Progress
	err := a.client.Do(ctx, rest.Request{
		Endpoint: "/attempts/progress",
		Fallback: "could not load progress",
	}, &progress)
	if err != nil {
		return model.Progress{}, fmt.Errorf("failed to get progress: %w", err)
	}

	return progress, nil
}
