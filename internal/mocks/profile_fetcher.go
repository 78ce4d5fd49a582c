package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/LorenzoCecattoPaim/Math/internal/model"
)

// ProfileFetcher is a mock of session.ProfileFetcher.
type ProfileFetcher struct {
	mock.Mock
}

func (_m *ProfileFetcher) Get(ctx context.Context) (model.Profile, error) {
	ret := _m.Called(ctx)
	return ret.Get(0).(model.Profile), ret.Error(1)
}

// GoogleTokenSource is a mock of session.GoogleTokenSource.
type GoogleTokenSource struct {
	mock.Mock
}

func (_m *GoogleTokenSource) AccessToken(ctx context.Context) (string, error) {
	ret := _m.Called(ctx)
	return ret.String(0), ret.Error(1)
}
