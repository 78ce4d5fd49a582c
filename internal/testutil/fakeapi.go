package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/LorenzoCecattoPaim/Math/internal/model"
)

// Values accepted by FakeAPI.
const (
	FakeVerificationCode  = "123456"
	FakeGoogleAccessToken = "google-access-token"
	FakeGoogleEmail       = "google.user@provalab.com.br"
	FakeResetToken        = "reset-token"
	FakeCodeTTLSeconds    = 600
)

type fakeUser struct {
	user     model.User
	password string
}

type failure struct {
	status int
	detail string
}

type ctxKey struct{}

// FakeAPI is an in-memory ProvaLab API served over httptest.
type FakeAPI struct {
	Server *httptest.Server

	mu        sync.Mutex
	users     map[string]*fakeUser
	sessions  map[string]uuid.UUID
	pending   map[string]string
	magic     map[string]string
	profiles  map[uuid.UUID]model.Profile
	plans     map[uuid.UUID]model.Plan
	exercises []model.Exercise
	attempts  []model.Attempt
	calls     map[string]int
	failures  map[string]failure
	delays    map[string]time.Duration
}

// NewFakeAPI starts a FakeAPI that is closed when the test ends.
func NewFakeAPI(t testing.TB) *FakeAPI {
	t.Helper()

	f := &FakeAPI{
		users:    make(map[string]*fakeUser),
		sessions: make(map[string]uuid.UUID),
		pending:  make(map[string]string),
		magic:    make(map[string]string),
		profiles: make(map[uuid.UUID]model.Profile),
		plans:    make(map[uuid.UUID]model.Plan),
		calls:    make(map[string]int),
		failures: make(map[string]failure),
		delays:   make(map[string]time.Duration),
	}
	f.Server = httptest.NewServer(f.router())
	t.Cleanup(f.Server.Close)

	return f
}

// URL is the base URL of the fake API.
func (f *FakeAPI) URL() string {
	return f.Server.URL
}

func (f *FakeAPI) router() chi.Router {
	r := chi.NewRouter()
	r.Use(f.record)

	r.Post("/auth/signup", f.signup)
	r.Post("/auth/login", f.login)
	r.Post("/auth/google", f.google)
	r.Post("/auth/verify-email-code", f.verifyCode)
	r.Post("/auth/verify-email-link", f.verifyLink)
	r.Post("/auth/resend-verification", f.resend)
	r.Post("/auth/forgot-password", f.forgotPassword)
	r.Post("/auth/reset-password", f.resetPassword)

	r.Group(func(r chi.Router) {
		r.Use(f.authenticate)

		r.Get("/auth/me", f.me)
		r.Get("/profiles/me", f.getProfile)
		r.Put("/profiles/me", f.putProfile)
		r.Get("/profiles/plan", f.plan)
		r.Get("/exercises/random", f.randomExercise)
		r.Get("/exercises", f.listExercises)
		r.Get("/exercises/{exerciseID}", f.getExercise)
		r.Post("/attempts", f.createAttempt)
		r.Get("/attempts", f.listAttempts)
		r.Get("/attempts/stats", f.stats)
		r.Get("/attempts/progress", f.progress)
	})

	return r
}

// AddUser registers a verified password user.
func (f *FakeAPI) AddUser(email, password, fullName string) model.User {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.addUserLocked(email, password, fullName)
}

func (f *FakeAPI) addUserLocked(email, password, fullName string) model.User {
	user := model.User{
		ID:            uuid.New(),
		Email:         email,
		EmailVerified: true,
		CreatedAt:     time.Now().UTC(),
	}
	if fullName != "" {
		user.FullName = &fullName
	}
	f.users[email] = &fakeUser{user: user, password: password}
	f.plans[user.ID] = model.Plan{
		ID:        uuid.New(),
		Email:     email,
		Plan:      "free",
		FreeUses:  3,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.CreatedAt,
	}

	return user
}

// IssueToken creates a session for email and returns its bearer token.
func (f *FakeAPI) IssueToken(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.issueLocked(email)
}

func (f *FakeAPI) issueLocked(email string) string {
	token := "tok-" + uuid.NewString()
	f.sessions[token] = f.users[email].user.ID
	return token
}

// RevokeAll invalidates every issued token.
func (f *FakeAPI) RevokeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sessions = make(map[string]uuid.UUID)
}

// SetProfile stores the profile of a user.
func (f *FakeAPI) SetProfile(userID uuid.UUID, fullName string) model.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	profile := model.Profile{
		ID:        uuid.New(),
		UserID:    userID,
		FullName:  &fullName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.profiles[userID] = profile

	return profile
}

// AddExercise stores an exercise and returns it with an ID set.
func (f *FakeAPI) AddExercise(e model.Exercise) model.Exercise {
	f.mu.Lock()
	defer f.mu.Unlock()

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	f.exercises = append(f.exercises, e)

	return e
}

// Attempts returns the attempts saved so far.
func (f *FakeAPI) Attempts() []model.Attempt {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]model.Attempt(nil), f.attempts...)
}

// PendingToken returns the live pending token issued for email.
func (f *FakeAPI) PendingToken(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	for token, e := range f.pending {
		if e == email {
			return token
		}
	}
	return ""
}

// MagicToken returns the live magic link token issued for email.
func (f *FakeAPI) MagicToken(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	for token, e := range f.magic {
		if e == email {
			return token
		}
	}
	return ""
}

// Fail makes every request to method and path answer status with detail.
func (f *FakeAPI) Fail(method, path string, status int, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failures[method+" "+path] = failure{status: status, detail: detail}
}

// Delay holds requests to method and path for d before handling them.
func (f *FakeAPI) Delay(method, path string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.delays[method+" "+path] = d
}

// Calls returns how many requests reached method and path.
func (f *FakeAPI) Calls(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[method+" "+path]
}

// TotalCalls returns how many requests reached the fake API.
func (f *FakeAPI) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *FakeAPI) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		f.mu.Lock()
		f.calls[key]++
		fail, failing := f.failures[key]
		delay := f.delays[key]
		f.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			writeDetail(w, fail.status, fail.detail)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (f *FakeAPI) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")

		f.mu.Lock()
		userID, known := f.sessions[token]
		f.mu.Unlock()

		if !ok || !known {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	})
}

func userIDFrom(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(ctxKey{}).(uuid.UUID)
	return id
}

func (f *FakeAPI) signup(w http.ResponseWriter, r *http.Request) {
	var req model.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid body")
		return
	}
	if req.Password != req.ConfirmPassword {
		writeValidation(w, "Passwords do not match")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.users[req.Email]; exists {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	f.addUserLocked(req.Email, req.Password, req.FullName)

	writeJSON(w, http.StatusOK, model.TokenResponse{AccessToken: f.issueLocked(req.Email), TokenType: "bearer"})
}

func (f *FakeAPI) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid form")
		return
	}
	email := r.PostForm.Get("username")

	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[email]
	if !ok || u.password == "" || u.password != r.PostForm.Get("password") {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}

	writeJSON(w, http.StatusOK, model.TokenResponse{AccessToken: f.issueLocked(email), TokenType: "bearer"})
}

func (f *FakeAPI) google(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccessToken != FakeGoogleAccessToken {
		writeDetail(w, http.StatusBadRequest, "Invalid Google token")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[FakeGoogleEmail]; !ok {
		user := f.addUserLocked(FakeGoogleEmail, "", "Google User")
		googleID := "google-" + user.ID.String()
		f.users[FakeGoogleEmail].user.GoogleID = &googleID
		f.users[FakeGoogleEmail].user.EmailVerified = false
	}
	pending := f.rotatePendingLocked(FakeGoogleEmail)
	f.magic["magic-"+uuid.NewString()] = FakeGoogleEmail

	writeJSON(w, http.StatusOK, model.GoogleAuthResponse{
		PendingToken:         pending,
		PendingTokenType:     "email_verification",
		VerificationRequired: true,
		Email:                FakeGoogleEmail,
		CodeExpiresInSeconds: FakeCodeTTLSeconds,
	})
}

func (f *FakeAPI) rotatePendingLocked(email string) string {
	for token, e := range f.pending {
		if e == email {
			delete(f.pending, token)
		}
	}
	token := "pending-" + uuid.NewString()
	f.pending[token] = email
	return token
}

func (f *FakeAPI) verifyCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PendingToken string `json:"pending_token"`
		Code         string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	email, ok := f.pending[req.PendingToken]
	if !ok {
		writeDetail(w, http.StatusBadRequest, "Verification session expired")
		return
	}
	if req.Code != FakeVerificationCode {
		writeDetail(w, http.StatusBadRequest, "Invalid verification code")
		return
	}
	delete(f.pending, req.PendingToken)
	f.completeVerificationLocked(email)

	writeJSON(w, http.StatusOK, model.TokenResponse{AccessToken: f.issueLocked(email), TokenType: "bearer"})
}

func (f *FakeAPI) verifyLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MagicToken string `json:"magic_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	email, ok := f.magic[req.MagicToken]
	if !ok {
		writeDetail(w, http.StatusBadRequest, "Invalid or expired link")
		return
	}
	delete(f.magic, req.MagicToken)
	f.completeVerificationLocked(email)

	writeJSON(w, http.StatusOK, model.TokenResponse{AccessToken: f.issueLocked(email), TokenType: "bearer"})
}

func (f *FakeAPI) completeVerificationLocked(email string) {
	f.users[email].user.EmailVerified = true
	for token, e := range f.pending {
		if e == email {
			delete(f.pending, token)
		}
	}
	for token, e := range f.magic {
		if e == email {
			delete(f.magic, token)
		}
	}
}

func (f *FakeAPI) resend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PendingToken string `json:"pending_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	email, ok := f.pending[req.PendingToken]
	if !ok {
		writeDetail(w, http.StatusBadRequest, "Verification session expired")
		return
	}
	pending := f.rotatePendingLocked(email)
	ttl := FakeCodeTTLSeconds

	writeJSON(w, http.StatusOK, model.ResendVerificationResponse{
		Message:              "Verification code sent",
		PendingToken:         &pending,
		Email:                &email,
		CodeExpiresInSeconds: &ttl,
	})
}

func (f *FakeAPI) forgotPassword(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "If the email exists, a reset link was sent"})
}

func (f *FakeAPI) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid body")
		return
	}
	if req.Token != FakeResetToken {
		writeDetail(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}

	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Password updated"})
}

func (f *FakeAPI) me(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if u := f.userByIDLocked(userIDFrom(r)); u != nil {
		writeJSON(w, http.StatusOK, u.user)
		return
	}
	writeDetail(w, http.StatusNotFound, "User not found")
}

func (f *FakeAPI) userByIDLocked(id uuid.UUID) *fakeUser {
	for _, u := range f.users {
		if u.user.ID == id {
			return u
		}
	}
	return nil
}

func (f *FakeAPI) getProfile(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	profile, ok := f.profiles[userIDFrom(r)]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (f *FakeAPI) putProfile(w http.ResponseWriter, r *http.Request) {
	var update model.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	userID := userIDFrom(r)
	now := time.Now().UTC()
	profile, ok := f.profiles[userID]
	if !ok {
		profile = model.Profile{ID: uuid.New(), UserID: userID, CreatedAt: now}
	}
	if update.FullName != nil {
		profile.FullName = update.FullName
	}
	if update.AvatarURL != nil {
		profile.AvatarURL = update.AvatarURL
	}
	profile.UpdatedAt = now
	f.profiles[userID] = profile

	writeJSON(w, http.StatusOK, profile)
}

func (f *FakeAPI) plan(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	writeJSON(w, http.StatusOK, f.plans[userIDFrom(r)])
}

func (f *FakeAPI) matching(subject, difficulty string) []model.Exercise {
	var out []model.Exercise
	for _, e := range f.exercises {
		if subject != "" && e.Subject != subject {
			continue
		}
		if difficulty != "" && string(e.Difficulty) != difficulty {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (f *FakeAPI) randomExercise(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	found := f.matching(r.URL.Query().Get("subject"), r.URL.Query().Get("difficulty"))
	if len(found) == 0 {
		writeDetail(w, http.StatusNotFound, "No exercises found for this subject and difficulty")
		return
	}
	writeJSON(w, http.StatusOK, found[len(f.attempts)%len(found)])
}

func (f *FakeAPI) listExercises(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	found := f.matching(r.URL.Query().Get("subject"), r.URL.Query().Get("difficulty"))
	writeJSON(w, http.StatusOK, limit(found, r))
}

func (f *FakeAPI) getExercise(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "exerciseID"))
	if err != nil {
		writeValidation(w, "Invalid exercise id")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if e := f.exerciseLocked(id); e != nil {
		writeJSON(w, http.StatusOK, e)
		return
	}
	writeDetail(w, http.StatusNotFound, "Exercise not found")
}

func (f *FakeAPI) exerciseLocked(id uuid.UUID) *model.Exercise {
	for i := range f.exercises {
		if f.exercises[i].ID == id {
			e := f.exercises[i]
			return &e
		}
	}
	return nil
}

func (f *FakeAPI) createAttempt(w http.ResponseWriter, r *http.Request) {
	var req model.AttemptCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.exerciseLocked(req.ExerciseID) == nil {
		writeDetail(w, http.StatusNotFound, "Exercise not found")
		return
	}

	attempt := model.Attempt{
		ID:               uuid.New(),
		UserID:           userIDFrom(r),
		ExerciseID:       req.ExerciseID,
		UserAnswer:       req.UserAnswer,
		IsCorrect:        req.IsCorrect,
		TimeSpentSeconds: req.TimeSpentSeconds,
		CreatedAt:        time.Now().UTC(),
	}
	f.attempts = append(f.attempts, attempt)

	writeJSON(w, http.StatusOK, attempt)
}

func (f *FakeAPI) userAttemptsLocked(userID uuid.UUID) []model.Attempt {
	var out []model.Attempt
	for i := len(f.attempts) - 1; i >= 0; i-- {
		a := f.attempts[i]
		if a.UserID != userID {
			continue
		}
		a.Exercise = f.exerciseLocked(a.ExerciseID)
		out = append(out, a)
	}
	return out
}

func (f *FakeAPI) listAttempts(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	writeJSON(w, http.StatusOK, limit(f.userAttemptsLocked(userIDFrom(r)), r))
}

func (f *FakeAPI) statsLocked(attempts []model.Attempt) model.Stats {
	stats := model.Stats{Total: len(attempts)}
	for _, a := range attempts {
		if a.IsCorrect {
			stats.Correct++
		}
	}
	if stats.Total > 0 {
		stats.Accuracy = stats.Correct * 100 / stats.Total
	}
	return stats
}

func (f *FakeAPI) stats(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	writeJSON(w, http.StatusOK, f.statsLocked(f.userAttemptsLocked(userIDFrom(r))))
}

func (f *FakeAPI) progress(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	attempts := f.userAttemptsLocked(userIDFrom(r))
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	writeJSON(w, http.StatusOK, model.Progress{Attempts: attempts, Stats: f.statsLocked(attempts)})
}

func limit[T any](items []T, r *http.Request) []T {
	if items == nil {
		items = []T{}
	}
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 || n >= len(items) {
		return items
	}
	return items[:n]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeValidation(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]any{{"loc": []string{"body"}, "msg": msg, "type": "value_error"}},
	})
}
