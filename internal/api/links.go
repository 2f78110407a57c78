package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/illegalcall/linkbio/internal/apperrors"
	"github.com/illegalcall/linkbio/internal/middleware"
	"github.com/illegalcall/linkbio/internal/models"
	"github.com/illegalcall/linkbio/internal/repository"
)

var errLinkNotFound = apperrors.NotFound("Link not found or unauthorized")

func (s *Server) handleListLinks(c *fiber.Ctx) error {
	profile, err := middleware.RequireProfile(c)
	if err != nil {
		return err
	}

	links, err := s.links.ListByOwner(c.UserContext(), profile.ID)
	if err != nil {
		return apperrors.Persistence("Error fetching links", err)
	}
	return c.JSON(links)
}

func (s *Server) handleCreateLink(c *fiber.Ctx) error {
	profile, err := middleware.RequireProfile(c)
	if err != nil {
		return err
	}

	var req models.LinkRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.Validation("Invalid request body")
	}
	req.Title = strings.TrimSpace(req.Title)
	req.URL = strings.TrimSpace(req.URL)
	if req.Title == "" || req.URL == "" {
		return apperrors.Validation("Title and URL are required")
	}

	ctx := c.UserContext()
	link, err := s.links.Create(ctx, profile.ID, req)
	if err != nil {
		return apperrors.Persistence("Error creating link", err)
	}
	s.invalidateProfiles(ctx, profile.Username)

	return c.Status(fiber.StatusCreated).JSON(link)
}

func (s *Server) handleUpdateLink(c *fiber.Ctx) error {
	profile, err := middleware.RequireProfile(c)
	if err != nil {
		return err
	}
	linkID, ok := parseLinkID(c)
	if !ok {
		return errLinkNotFound
	}

	var patch models.LinkPatch
	if err := c.BodyParser(&patch); err != nil {
		return apperrors.Validation("Invalid request body")
	}
	if blank(patch.Title) || blank(patch.URL) {
		return apperrors.Validation("Title and URL cannot be empty")
	}

	ctx := c.UserContext()
	link, err := s.links.Update(ctx, linkID, profile.ID, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errLinkNotFound
		}
		return apperrors.Persistence("Error updating link", err)
	}
	s.invalidateProfiles(ctx, profile.Username)

	return c.JSON(link)
}

func (s *Server) handleDeleteLink(c *fiber.Ctx) error {
	profile, err := middleware.RequireProfile(c)
	if err != nil {
		return err
	}
	linkID, ok := parseLinkID(c)
	if !ok {
		return errLinkNotFound
	}

	ctx := c.UserContext()
	if err := s.links.Delete(ctx, linkID, profile.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errLinkNotFound
		}
		return apperrors.Persistence("Error deleting link", err)
	}
	s.invalidateProfiles(ctx, profile.Username)

	return c.SendStatus(fiber.StatusNoContent)
}

// parseLinkID rejects ids that cannot name a link before they reach the
// database.
func parseLinkID(c *fiber.Ctx) (string, bool) {
	id, err := uuid.Parse(c.Params("linkId"))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func blank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) == ""
}
