package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/LorenzoCecattoPaim/Math/internal/api/rest"
	"github.com/LorenzoCecattoPaim/Math/internal/logger"
	"github.com/LorenzoCecattoPaim/Math/internal/model"
)

// MaxAvatarSize caps avatar uploads.
const MaxAvatarSize = 5 << 20

var avatarTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

type Profile struct {
	client  Requester
	storage model.ObjectStorage
	logger  *logger.Logger
}

// NewProfile creates the profile service. storage may be nil, in which case
// avatar uploads are refused.
func NewProfile(client Requester, storage model.ObjectStorage, logger *logger.Logger) *Profile {
	return &Profile{
		client:  client,
		storage: storage,
		logger:  logger,
	}
}

// Get returns the profile of the current user. A user without a profile
// yields an error matching model.ErrNotFound.
func (p *Profile) Get(ctx context.Context) (model.Profile, error) {
	var profile model.Profile
	err := p.client.Do(ctx, rest.Request{
		Endpoint: "/profiles/me",
		Fallback: "could not load profile",
	}, &profile)
	if err != nil {
		return model.Profile{}, fmt.Errorf("failed to get profile: %w", err)
	}

	return profile, nil
}

func (p *Profile) Update(ctx context.Context, update model.ProfileUpdate) (model.Profile, error) {
	if update.FullName != nil {
		name := strings.TrimSpace(*update.FullName)
		if name == "" {
			return model.Profile{}, model.NewValidationError("full_name", "full name cannot be empty")
		}
		update.FullName = &name
	}

	var profile model.Profile
	err := p.client.Do(ctx, rest.Request{
		Method:   http.MethodPut,
		Endpoint: "/profiles/me",
		JSON:     update,
		Fallback: "could not update profile",
	}, &profile)
	if err != nil {
		return model.Profile{}, fmt.Errorf("failed to update profile: %w", err)
	}

	p.logger.Info("Profile service: profile updated",
		"user_id", profile.UserID)

	return profile, nil
}

func (p *Profile) Plan(ctx context.Context) (model.Plan, error) {
	var plan model.Plan
	err := p.client.Do(ctx, rest.Request{
		Endpoint: "/profiles/plan",
		Fallback: "could not load plan",
	}, &plan)
	if err != nil {
		return model.Plan{}, fmt.Errorf("failed to get plan: %w", err)
	}

	return plan, nil
}

// UploadAvatar stores an image in object storage and points the profile's
// avatar_url at it.
func (p *Profile) UploadAvatar(ctx context.Context, userID uuid.UUID, filename string, reader io.Reader, size int64) (model.Profile, error) {
	if p.storage == nil {
		return model.Profile{}, model.ErrAvatarStorageDisabled
	}

	ext := strings.ToLower(path.Ext(filename))
	contentType, ok := avatarTypes[ext]
	if !ok {
		return model.Profile{}, model.NewValidationError("avatar", "unsupported image type %q", ext)
	}
	if size <= 0 || size > MaxAvatarSize {
		return model.Profile{}, model.NewValidationError("avatar", "avatar must be between 1 byte and %d MiB", MaxAvatarSize>>20)
	}

	key := fmt.Sprintf("avatars/%s/%s%s", userID, uuid.New(), ext)

	p.logger.Debug("Profile service: uploading avatar",
		"user_id", userID,
		"key", key,
		"size", size)

	if err := p.storage.Upload(ctx, key, reader, size, contentType); err != nil {
		p.logger.Error("Profile service: failed to upload avatar",
			"user_id", userID,
			"key", key,
			"error", err.Error())
		return model.Profile{}, fmt.Errorf("failed to upload avatar: %w", err)
	}

	avatarURL := p.storage.URL(key)
	profile, err := p.Update(ctx, model.ProfileUpdate{AvatarURL: &avatarURL})
	if err != nil {
		// the object is orphaned if the profile never points at it
		if delErr := p.storage.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			p.logger.Warn("Profile service: failed to remove orphaned avatar",
				"key", key,
				"error", delErr.Error())
		}
		return model.Profile{}, err
	}

	return profile, nil
}
