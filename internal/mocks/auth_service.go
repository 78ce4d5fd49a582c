package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/LorenzoCecattoPaim/Math/internal/model"
)

// AuthService is a mock of session.AuthService.
type AuthService struct {
	mock.Mock
}

func (_m *AuthService) Signup(ctx context.Context, req model.SignupRequest) (model.TokenResponse, error) {
	ret := _m.Called(ctx, req)
	return ret.Get(0).(model.TokenResponse), ret.Error(1)
}

func (_m *AuthService) Login(ctx context.Context, email, password string) (model.TokenResponse, error) {
	ret := _m.Called(ctx, email, password)
	return ret.Get(0).(model.TokenResponse), ret.Error(1)
}

func (_m *AuthService) GoogleAuth(ctx context.Context, googleAccessToken string) (model.PendingGoogleAuth, error) {
	ret := _m.Called(ctx, googleAccessToken)
	return ret.Get(0).(model.PendingGoogleAuth), ret.Error(1)
}

func (_m *AuthService) VerifyEmailCode(ctx context.Context, pendingToken, code string) (model.TokenResponse, error) {
	ret := _m.Called(ctx, pendingToken, code)
	return ret.Get(0).(model.TokenResponse), ret.Error(1)
}

func (_m *AuthService) VerifyEmailMagicLink(ctx context.Context, magicToken string) (model.TokenResponse, error) {
	ret := _m.Called(ctx, magicToken)
	return ret.Get(0).(model.TokenResponse), ret.Error(1)
}

func (_m *AuthService) GetMe(ctx context.Context) (model.User, error) {
	ret := _m.Called(ctx)
	return ret.Get(0).(model.User), ret.Error(1)
}

func (_m *AuthService) ResendVerificationCode(ctx context.Context, pendingToken string) (model.ResendVerificationResponse, error) {
	ret := _m.Called(ctx, pendingToken)
	return ret.Get(0).(model.ResendVerificationResponse), ret.Error(1)
}

func (_m *AuthService) Logout() {
	_m.Called()
}
