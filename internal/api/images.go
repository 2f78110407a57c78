package api

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/linkbio/internal/apperrors"
	"github.com/illegalcall/linkbio/internal/middleware"
	"github.com/illegalcall/linkbio/internal/models"
	"github.com/illegalcall/linkbio/internal/storage"
)

// handleUploadImage stores an avatar or banner image. When the caller already
// has a profile the matching image URL is updated as well; otherwise the URL
// is only returned so it can be sent with the profile setup.
func (s *Server) handleUploadImage(c *fiber.Ctx) error {
	kind := models.ImageKind(c.FormValue("kind", string(models.ImageAvatar)))
	if !kind.Valid() {
		return apperrors.Validation("kind must be avatar or banner")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperrors.Validation("Image file is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.Validation("Failed to read image")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return apperrors.Validation("Failed to read image")
	}

	ctx := c.UserContext()
	name, err := s.storage.StoreImage(ctx, data)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUnsupportedType),
			errors.Is(err, storage.ErrTooLarge),
			errors.Is(err, storage.ErrEmpty):
			return apperrors.Validation(err.Error())
		default:
			return apperrors.Persistence("Failed to store image", err)
		}
	}
	url := s.cfg.Server.PublicBaseURL + "/uploads/" + name

	if profile := middleware.Profile(c); profile != nil {
		if err := s.profiles.SetImageURL(ctx, profile.ID, kind, url); err != nil {
			if delErr := s.storage.Delete(ctx, name); delErr != nil {
				s.logger.Warn("Failed to remove orphaned image", "name", name, "error", delErr)
			}
			return apperrors.Persistence("Failed to update profile image", err)
		}
		s.invalidateProfiles(ctx, profile.Username)
	}

	s.logger.Info("Image uploaded", "auth_id", middleware.Identity(c).ID, "kind", kind, "name", name)
	return c.Status(fiber.StatusCreated).JSON(models.URLResponse{URL: url})
}
