package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LorenzoCecattoPaim/Math/internal/api/rest"
	"github.com/LorenzoCecattoPaim/Math/internal/logger"
	"github.com/LorenzoCecattoPaim/Math/internal/model"
	"github.com/LorenzoCecattoPaim/Math/internal/validate"
)

type Auth struct {
	client          Requester
	tokens          model.TokenStore
	validator       *validate.Validator
	extendedTimeout time.Duration
	logger          *logger.Logger
}

func NewAuth(
	client Requester,
	tokens model.TokenStore,
	validator *validate.Validator,
	extendedTimeout time.Duration,
	logger *logger.Logger,
) *Auth {
	return &Auth{
		client:          client,
		tokens:          tokens,
		validator:       validator,
		extendedTimeout: extendedTimeout,
		logger:          logger,
	}
}

// Signup registers a new account and stores the issued access token.
func (a *Auth) Signup(ctx context.Context, req model.SignupRequest) (model.TokenResponse, error) {
	a.logger.Debug("Auth service: starting signup",
		"email", req.Email)

	err := a.validator.Struct(validate.SignupForm{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FullName:        req.FullName,
	})
	if err != nil {
		return model.TokenResponse{}, err
	}

	var resp model.TokenResponse
	err = a.client.Do(ctx, rest.Request{
		Method:   http.MethodPost,
		Endpoint: "/auth/signup",
		JSON:     req,
		Timeout:  a.extendedTimeout,
		Fallback: "could not create account",
	}, &resp)
	if err != nil {
		a.logger.Info("Auth service: signup rejected",
			"email", req.Email,
			"error", err.Error())
		return model.TokenResponse{}, fmt.Errorf("failed to sign up: %w", err)
	}

	if err := a.storeToken(resp); err != nil {
		return model.TokenResponse{}, err
	}

	a.logger.Info("Auth service: signup completed successfully",
		"email", req.Email)

	return resp, nil
}

// Login exchanges email and password for an access token. The API expects
// an OAuth2 password form with the email as username.
func (a *Auth) Login(ctx context.Context, email, password string) (model.TokenResponse, error) {
	a.logger.Debug("Auth service: starting login",
		"email", email)

	if err := a.validator.Struct(validate.LoginForm{Email: email, Password: password}); err != nil {
		return model.TokenResponse{}, err
	}

	var resp model.TokenResponse
	err := a.client.Do(ctx, rest.Request{
		Method:   http.MethodPost,
		Endpoint: "/auth/login",
		Form:     url.Values{"username": {email}, "password": {password}},
		Fallback: "incorrect email or password",
	}, &resp)
	if err != nil {
		a.logger.Info("Auth service: login rejected",
			"email", email,
			"error", err.Error())
		return model.TokenResponse{}, fmt.Errorf("failed to log in: %w", err)
	}

	if err := a.storeToken(resp); err != nil {
		return model.TokenResponse{}, err
	}

	a.logger.Info("Auth service: login completed successfully",
		"email", email)

	return resp, nil
}

// GoogleAuth exchanges a Google access token for a pending verification.
// No session is issued until the email is confirmed.
func (a *Auth) GoogleAuth(ctx context.Context, googleAccessToken string) (model.PendingGoogleAuth, error) {
	if strings.TrimSpace(googleAccessToken) == "" {
		return model.PendingGoogleAuth{}, model.NewValidationError("access_token", "google access token is required")
	}

	var resp model.GoogleAuthResponse
	err := a.client.Do(ctx, rest.Request{
		Method:   http.MethodPost,
		Endpoint: "/auth/google",
		JSON:     map[string]string{"access_token": googleAccessToken},
		Timeout:  a.extendedTimeout,
		Fallback: "could not sign in with Google",
	}, &resp)
	if err != nil {
		a.logger.Info("Auth service: google exchange rejected",
			"error", err.Error())
		return model.PendingGoogleAuth{}, fmt.Errorf("failed to exchange google token: %w", err)
	}

	if resp.PendingToken == "" {
		return model.PendingGoogleAuth{}, model.NewAPIError(model.ErrDecode, http.StatusOK, "google sign-in returned no verification session")
	}

	a.logger.Info("Auth service: email verification pending",
		"email", resp.Email,
		"expires_in", resp.CodeExpiresInSeconds)

	return model.PendingGoogleAuth{
		PendingToken:     resp.PendingToken,
		Email:            resp.Email,
		ExpiresInSeconds: resp.CodeExpiresInSeconds,
	}, nil
}

// VerifyEmailCode confirms a pending Google sign-in with the emailed code.
func (a *Auth) VerifyEmailCode(ctx context.Context, pendingToken, code string) (model.TokenResponse, error) {
	code = strings.TrimSpace(code)
	if err := a.validator.Struct(validate.CodeForm{PendingToken: pendingToken, Code: code}); err != nil {
		return model.TokenResponse{}, err
	}

	var resp model.TokenResponse
	err := a.client.Do(ctx, rest.Request{
		Method:   http.MethodPost,
		Endpoint: "/auth/verify-email-code",
		JSON:     map[string]string{"pending_token": pendingToken, "code": code},
		Timeout:  a.extendedTimeout,
		Fallback: "invalid or expired code",
	}, &resp)
	if err != nil {
		return model.TokenResponse{}, fmt.Errorf("failed to verify email code: %w", err)
	}

	if err := a.storeToken(resp); err != nil {
		return model.TokenResponse{}, err
	}

	a.logger.Info("Auth service: email verified by code")

	return resp, nil
}

// VerifyEmailMagicLink confirms a pending sign-in with the token of the
// emailed link.
func (a *Auth) VerifyEmailMagicLink(ctx context.Context, magicToken string) (model.TokenResponse, error) {
	if strings.TrimSpace(magicToken) == "" {
		return model.TokenResponse{}, model.NewValidationError("magic_token", "verification link is incomplete")
	}

	var resp model.TokenResponse
	err := a.client.Do(ctx, rest.Request{
		Method:   http.MethodPost,
		Endpoint: "/auth/verify-email-link",
		JSON:     map[string]string{"magic_token": magicToken},
		Timeout:  a.extendedTimeout,
		Fallback: "invalid or expired verification link",
	}, &resp)
	if err != nil {
		return model.TokenResponse{}, fmt.Errorf("failed to verify email link: %w", err)
	}

	if err := a.storeToken(resp); err != nil {
		return model.TokenResponse{}, err
	}

	a.logger.Info("Auth service: email verified by link")

	return resp, nil
}

// GetMe returns the user owning the stored token.
func (a *Auth) GetMe(ctx context.Context) (model.User, error) {
	var user model.User
	err := a.client.Do(ctx, rest.Request{
		Endpoint: "/auth/me",
		Fallback: "not authenticated",
	}, &user)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get current user: %w", err)
	}

	return user, nil
}

// ResendVerificationCode asks for a new code. The returned pending token, if
// any, replaces the one sent.
func (a *Auth) ResendVerificationCode(ctx context.Context, pendingToken string) (model.ResendVerificationResponse, error) {
	if pendingToken == "" {
		return model.ResendVerificationResponse{}, model.NewValidationError("pending_token", "verification session is required")
	}

	var resp model.ResendVerificationResponse
	err := a.client.Do(ctx, rest.Request{
		Method:   http.MethodPost,
		Endpoint: "/auth/resend-verification",
		JSON:     map[string]string{"pending_token": pendingToken},
		Timeout:  a.extendedTimeout,
		Fallback: "could not resend the code",
	}, &resp)
	if err != nil {
		a.logger.Info("Auth service: resend rejected",
			"error", err.Error())
		return model.ResendVerificationResponse{}, fmt.Errorf("failed to resend verification code: %w", err)
	}

	a.logger.Info("Auth service: verification code resent",
		"rotated", resp.PendingToken != nil)

	return resp, nil
}

// Logout forgets the local session. It never fails.
func (a *Auth) Logout() {
	if err := a.tokens.Clear(); err != nil {
		a.logger.Error("Auth service: failed to clear stored token",
			"error", err.Error())
		return
	}
	a.logger.Debug("Auth service: logged out")
}

// ForgotPassword requests a password reset email.
func (a *Auth) ForgotPassword(ctx context.Context, email string) (string, error) {
	if err := a.validator.Struct(validate.ForgotPasswordForm{Email: email}); err != nil {
		return "", err
	}

	var resp model.MessageResponse
	err := a.client.Do(ctx, rest.Request{
		Method:   http.MethodPost,
		Endpoint: "/auth/forgot-password",
		JSON:     map[string]string{"email": email},
		Timeout:  a.extendedTimeout,
		Fallback: "could not request a password reset",
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to request password reset: %w", err)
	}

	return resp.Message, nil
}

// ResetPassword sets a new password using the token from the reset email.
func (a *Auth) ResetPassword(ctx context.Context, resetToken, password, confirmPassword string) (string, error) {
	err := a.validator.Struct(validate.ResetPasswordForm{
		Token:           resetToken,
		Password:        password,
		ConfirmPassword: confirmPassword,
	})
	if err != nil {
		return "", err
	}

	var resp model.MessageResponse
	err = a.client.Do(ctx, rest.Request{
		Method:   http.MethodPost,
		Endpoint: "/auth/reset-password",
		JSON:     map[string]string{"token": resetToken, "new_password": password},
		Timeout:  a.extendedTimeout,
		Fallback: "could not reset password",
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to reset password: %w", err)
	}

	a.logger.Info("Auth service: password reset completed")

	return resp.Message, nil
}

func (a *Auth) storeToken(resp model.TokenResponse) error {
	if resp.AccessToken == "" {
		return model.NewAPIError(model.ErrDecode, http.StatusOK, "server returned no access token")
	}

	if err := a.tokens.Set(resp.AccessToken); err != nil {
		// the in-memory session is still usable
		a.logger.Warn("Auth service: failed to persist access token",
			"error", err.Error())
	}

	return nil
}
