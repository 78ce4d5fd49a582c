package service

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/LorenzoCecattoPaim/Math/internal/mocks"
	"github.com/LorenzoCecattoPaim/Math/internal/model"
	"github.com/LorenzoCecattoPaim/Math/internal/testutil"
)

func TestProfile_GetMissing(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "aluno@provalab.com.br")

	_, err := NewProfile(h.client, nil, testutil.MakeNoopLogger()).Get(context.Background())
	require.ErrorIs(t, err, model.ErrNotFound)
	assert.Contains(t, err.Error(), "Profile not found")
}

func TestProfile_UpdateAndGet(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "aluno@provalab.com.br")
	p := NewProfile(h.client, nil, testutil.MakeNoopLogger())
	ctx := context.Background()

	blank := "   "
	_, err := p.Update(ctx, model.ProfileUpdate{FullName: &blank})
	require.ErrorIs(t, err, model.ErrValidation)
	assert.Zero(t, h.api.Calls(http.MethodPut, "/profiles/me"))

	name := "  Maria Souza "
	updated, err := p.Update(ctx, model.ProfileUpdate{FullName: &name})
	require.NoError(t, err)
	require.NotNil(t, updated.FullName)
	assert.Equal(t, "Maria Souza", *updated.FullName)

	got, err := p.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, updated.ID, got.ID)
}

func TestProfile_Plan(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "aluno@provalab.com.br")

	plan, err := NewProfile(h.client, nil, testutil.MakeNoopLogger()).Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "free", plan.Plan)
	assert.Equal(t, 3, plan.RemainingFreeUses())
}

func TestProfile_UploadAvatar(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "aluno@provalab.com.br")
	userID := uuid.New()

	storage := &mocks.ObjectStorage{}
	var key string
	storage.On("Upload", mock.Anything, mock.MatchedBy(func(k string) bool {
		key = k
		return strings.HasPrefix(k, "avatars/"+userID.String()+"/") && strings.HasSuffix(k, ".png")
	}), mock.Anything, int64(4), "image/png").Return(nil)
	storage.On("URL", mock.AnythingOfType("string")).Return("https://cdn.example.com/avatar.png")

	p := NewProfile(h.client, storage, testutil.MakeNoopLogger())
	profile, err := p.UploadAvatar(context.Background(), userID, "Foto.PNG", bytes.NewReader([]byte("data")), 4)
	require.NoError(t, err)
	require.NotNil(t, profile.AvatarURL)
	assert.Equal(t, "https://cdn.example.com/avatar.png", *profile.AvatarURL)
	assert.NotEmpty(t, key)
	storage.AssertExpectations(t)
	storage.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestProfile_UploadAvatar_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		storage  bool
		filename string
		size     int64
		wantErr  error
	}{
		{name: "storage disabled", storage: false, filename: "a.png", size: 10, wantErr: model.ErrAvatarStorageDisabled},
		{name: "unsupported type", storage: true, filename: "a.bmp", size: 10, wantErr: model.ErrValidation},
		{name: "empty file", storage: true, filename: "a.png", size: 0, wantErr: model.ErrValidation},
		{name: "too large", storage: true, filename: "a.jpg", size: MaxAvatarSize + 1, wantErr: model.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			var storage model.ObjectStorage
			if tt.storage {
				storage = &mocks.ObjectStorage{}
			}

			p := NewProfile(h.client, storage, testutil.MakeNoopLogger())
			_, err := p.UploadAvatar(context.Background(), uuid.New(), tt.filename, bytes.NewReader(nil), tt.size)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, h.api.TotalCalls())
		})
	}
}

func TestProfile_UploadAvatar_StorageFailure(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "aluno@provalab.com.br")

	storage := &mocks.ObjectStorage{}
	storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket gone"))

	_, err := NewProfile(h.client, storage, testutil.MakeNoopLogger()).
		UploadAvatar(context.Background(), uuid.New(), "a.webp", bytes.NewReader([]byte("x")), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload avatar")
	assert.Zero(t, h.api.Calls(http.MethodPut, "/profiles/me"))
}

func TestProfile_UploadAvatar_UpdateFailureRemovesObject(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "aluno@provalab.com.br")
	h.api.Fail(http.MethodPut, "/profiles/me", http.StatusInternalServerError, "database unavailable")

	storage := &mocks.ObjectStorage{}
	storage.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "image/gif").Return(nil)
	storage.On("URL", mock.Anything).Return("https://cdn.example.com/a.gif")
	storage.On("Delete", mock.Anything, mock.AnythingOfType("string")).Return(nil)

	_, err := NewProfile(h.client, storage, testutil.MakeNoopLogger()).
		UploadAvatar(context.Background(), uuid.New(), "a.gif", bytes.NewReader([]byte("x")), 1)
	require.ErrorIs(t, err, model.ErrRemote)
	storage.AssertExpectations(t)
}
