package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/illegalcall/linkbio/internal/models"
)

const profileColumns = `id, auth_id, email, username, display_name, bio, profile_image_url, banner_image_url, payment_account_id, payment_onboarding_complete, created_at, updated_at`

const (
	selectProfileByAuthID = `SELECT ` + profileColumns + ` FROM profiles WHERE auth_id = $1`
	selectProfileByID     = `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	selectProfileByHandle = `SELECT ` + profileColumns + ` FROM profiles WHERE lower(username) = lower($1)`
	selectProfilesByAcct  = `SELECT ` + profileColumns + ` FROM profiles WHERE payment_account_id = $1`

	selectHandleTaken = `SELECT EXISTS (SELECT 1 FROM profiles WHERE lower(username) = lower($1) AND auth_id <> $2)`

	upsertProfile = `INSERT INTO profiles (id, auth_id, email, username, display_name, bio, profile_image_url, banner_image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (auth_id) DO UPDATE SET
			email = EXCLUDED.email,
			username = EXCLUDED.username,
			display_name = EXCLUDED.display_name,
			bio = EXCLUDED.bio,
			profile_image_url = EXCLUDED.profile_image_url,
			banner_image_url = EXCLUDED.banner_image_url,
			updated_at = now()
		RETURNING ` + profileColumns

	updatePaymentAccount = `UPDATE profiles SET payment_account_id = $2, payment_onboarding_complete = FALSE, updated_at = now() WHERE id = $1`
	updateOnboardingByID = `UPDATE profiles SET payment_onboarding_complete = $2, updated_at = now() WHERE id = $1`
	updateAvatarURL      = `UPDATE profiles SET profile_image_url = $2, updated_at = now() WHERE id = $1`
	updateBannerURL      = `UPDATE profiles SET banner_image_url = $2, updated_at = now() WHERE id = $1`

	// Only rows whose flag actually changes are touched, so the affected row
	// count tells the caller whether anything transitioned.
	updateOnboardingByAcct = `UPDATE profiles SET payment_onboarding_complete = $2, updated_at = now() WHERE payment_account_id = $1 AND payment_onboarding_complete <> $2`
)

type ProfileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetByAuthID(ctx context.Context, authID string) (*models.Profile, error) {
	return r.getOne(ctx, selectProfileByAuthID, authID)
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	return r.getOne(ctx, selectProfileByID, id)
}

// GetByHandle looks a profile up by username, ignoring case.
func (r *ProfileRepository) GetByHandle(ctx context.Context, handle string) (*models.Profile, error) {
	return r.getOne(ctx, selectProfileByHandle, handle)
}

func (r *ProfileRepository) getOne(ctx context.Context, query string, arg any) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return &profile, nil
}

// HandleTakenByOther reports whether handle belongs to an identity other than
// authID.
func (r *ProfileRepository) HandleTakenByOther(ctx context.Context, handle, authID string) (bool, error) {
	var taken bool
	if err := r.db.GetContext(ctx, &taken, selectHandleTaken, handle, authID); err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return taken, nil
}

// Upsert creates the profile for input.AuthID or updates it in place. A
// concurrent claim of the same username surfaces as ErrHandleTaken.
func (r *ProfileRepository) Upsert(ctx context.Context, input models.ProfileInput) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.GetContext(ctx, &profile, upsertProfile,
		uuid.NewString(),
		input.AuthID,
		input.Email,
		input.Username,
		input.DisplayName,
		input.Bio,
		input.ProfileImageURL,
		input.BannerImageURL,
	)
	if err != nil {
		if isUniqueViolation(err, usernameIndex) {
			return nil, ErrHandleTaken
		}
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}
	return &profile, nil
}

// SetPaymentAccount links a payment account and resets onboarding until the
// processor reports the account ready.
func (r *ProfileRepository) SetPaymentAccount(ctx context.Context, profileID, accountID string) error {
	return r.execOne(ctx, updatePaymentAccount, profileID, accountID)
}

func (r *ProfileRepository) SetOnboardingComplete(ctx context.Context, profileID string, complete bool) error {
	return r.execOne(ctx, updateOnboardingByID, profileID, complete)
}

// SetImageURL replaces the avatar or banner URL of a profile.
func (r *ProfileRepository) SetImageURL(ctx context.Context, profileID string, kind models.ImageKind, url string) error {
	switch kind {
	case models.ImageAvatar:
		return r.execOne(ctx, updateAvatarURL, profileID, url)
	case models.ImageBanner:
		return r.execOne(ctx, updateBannerURL, profileID, url)
	default:
		return fmt.Errorf("unknown image kind %q", kind)
	}
}

func (r *ProfileRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProfileRepository) FindByPaymentAccount(ctx context.Context, accountID string) ([]models.Profile, error) {
	var profiles []models.Profile
	if err := r.db.SelectContext(ctx, &profiles, selectProfilesByAcct, accountID); err != nil {
		return nil, fmt.Errorf("failed to fetch profiles by payment account: %w", err)
	}
	return profiles, nil
}

// SetOnboardingByAccount applies complete to every profile linked to
// accountID and returns how many flags changed.
func (r *ProfileRepository) SetOnboardingByAccount(ctx context.Context, accountID string, complete bool) (int64, error) {
	res, err := r.db.ExecContext(ctx, updateOnboardingByAcct, accountID, complete)
	if err != nil {
		return 0, fmt.Errorf("failed to update onboarding status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to update onboarding status: %w", err)
	}
	return n, nil
}
