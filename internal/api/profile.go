package api

import (
	"errors"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/linkbio/internal/apperrors"
	"github.com/illegalcall/linkbio/internal/middleware"
	"github.com/illegalcall/linkbio/internal/models"
	"github.com/illegalcall/linkbio/internal/repository"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,20}$`)

var errHandleTaken = apperrors.New(apperrors.KindConflict, apperrors.CodeHandleTaken, "Username is already taken by another user.")

func profileNotFound() *apperrors.Error {
	return apperrors.New(apperrors.KindNotFound, apperrors.CodeProfileNotFound, "Profile not found.")
}

// handleGetMe returns the caller's own profile, including private fields.
func (s *Server) handleGetMe(c *fiber.Ctx) error {
	profile := middleware.Profile(c)
	if profile == nil {
		return apperrors.New(apperrors.KindNotFound, apperrors.CodeProfileNotFound,
			"Application profile not found. Please complete your profile setup.")
	}
	return c.JSON(profile)
}

// handleUpsertProfile creates the caller's profile or updates it. Claiming a
// username that differs only in case from the caller's current one is a
// rename, not a conflict.
func (s *Server) handleUpsertProfile(c *fiber.Ctx) error {
	var req models.ProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validation("Invalid request body")
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		return apperrors.Validation("Username is required and cannot be empty.")
	}
	if !usernamePattern.MatchString(username) {
		return apperrors.Validation("Username must be 3-20 characters (letters, numbers, _, ., -).")
	}

	ident := middleware.Identity(c)
	ctx := c.UserContext()

	taken, err := s.profiles.HandleTakenByOther(ctx, username, ident.ID)
	if err != nil {
		return apperrors.Persistence("Failed to save profile", err)
	}
	if taken {
		return errHandleTaken
	}

	input := models.ProfileInput{
		AuthID:          ident.ID,
		Email:           optional(&ident.Email),
		Username:        username,
		DisplayName:     optional(req.DisplayName),
		Bio:             optional(req.Bio),
		ProfileImageURL: optional(req.ProfileImageURL),
		BannerImageURL:  optional(req.BannerImageURL),
	}
	// Images and email not sent with the form keep their stored values; an
	// empty string clears an image.
	if previous := middleware.Profile(c); previous != nil {
		if req.ProfileImageURL == nil {
			input.ProfileImageURL = previous.ProfileImageURL
		}
		if req.BannerImageURL == nil {
			input.BannerImageURL = previous.BannerImageURL
		}
		if input.Email == nil {
			input.Email = previous.Email
		}
	}

	profile, err := s.profiles.Upsert(ctx, input)
	if err != nil {
		if errors.Is(err, repository.ErrHandleTaken) {
			return errHandleTaken
		}
		return apperrors.Persistence("Failed to save profile", err)
	}

	stale := []string{profile.Username}
	if previous := middleware.Profile(c); previous != nil && !strings.EqualFold(previous.Username, profile.Username) {
		stale = append(stale, previous.Username)
	}
	s.invalidateProfiles(ctx, stale...)

	s.logger.Info("Profile saved", "auth_id", ident.ID, "profile_id", profile.ID, "username", profile.Username)
	return c.JSON(profile)
}

// handlePublicProfile serves the public view of a profile. It never exposes
// the payment account id.
func (s *Server) handlePublicProfile(c *fiber.Ctx) error {
	username := strings.TrimSpace(c.Params("username"))
	if username == "" {
		return profileNotFound()
	}
	ctx := c.UserContext()

	cached, err := s.cache.Get(ctx, username)
	if err != nil {
		s.logger.Warn("Profile cache read failed", "username", username, "error", err)
	}
	if cached != nil {
		return c.JSON(cached)
	}

	profile, err := s.profiles.GetByHandle(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return profileNotFound()
		}
		return apperrors.Persistence("Failed to fetch profile", err)
	}

	links, err := s.links.ListByOwner(ctx, profile.ID)
	if err != nil {
		return apperrors.Persistence("Failed to fetch profile", err)
	}

	public := models.NewPublicProfile(profile, links)
	if err := s.cache.Set(ctx, public); err != nil {
		s.logger.Warn("Profile cache write failed", "username", profile.Username, "error", err)
	}
	return c.JSON(public)
}

// optional maps blank strings to nil.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
