// Package middleware holds the request gate that authenticates callers and
// attaches their identity and profile to the request.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/illegalcall/linkbio/internal/apperrors"
	"github.com/illegalcall/linkbio/internal/identity"
	"github.com/illegalcall/linkbio/internal/models"
	"github.com/illegalcall/linkbio/internal/repository"
)

const (
	identityKey = "identity"
	profileKey  = "profile"
)

type ProfileLookup interface {
	GetByAuthID(ctx context.Context, authID string) (*models.Profile, error)
}

// AccessGate verifies the bearer token and loads the caller's profile, which
// may not exist yet. It does not require a profile; handlers that need one
// call RequireProfile.
func AccessGate(verifier identity.Verifier, profiles ProfileLookup, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return apperrors.New(apperrors.KindUnauthorized, apperrors.CodeUnauthorized, "Missing or malformed bearer token")
		}

		ctx := c.UserContext()
		ident, err := verifier.Verify(ctx, token)
		if errors.Is(err, identity.ErrInvalidToken) {
			return apperrors.Wrap(apperrors.KindUnauthorized, apperrors.CodeUnauthorized, "Invalid or expired token", err)
		}
		if err != nil {
			logger.Error("Identity verification unavailable", "error", err)
			return apperrors.Wrap(apperrors.KindAuthInfra, apperrors.CodeAuthInfra, "Authentication service unavailable", err)
		}

		profile, err := profiles.GetByAuthID(ctx, ident.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			logger.Error("Profile lookup failed during authentication", "auth_id", ident.ID, "error", err)
			return apperrors.Wrap(apperrors.KindAuthInfra, apperrors.CodeAuthInfra, "Authentication service unavailable", err)
		}

		c.Locals(identityKey, ident)
		c.Locals(profileKey, profile)
		return c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Identity returns the verified identity attached by AccessGate.
func Identity(c *fiber.Ctx) *models.Identity {
	ident, _ := c.Locals(identityKey).(*models.Identity)
	return ident
}

// Profile returns the caller's profile, or nil if they have not set one up.
func Profile(c *fiber.Ctx) *models.Profile {
	profile, _ := c.Locals(profileKey).(*models.Profile)
	return profile
}

// RequireProfile returns the caller's profile or a ProfileSetupRequired error.
func RequireProfile(c *fiber.Ctx) (*models.Profile, error) {
	profile := Profile(c)
	if profile == nil {
		return nil, apperrors.New(apperrors.KindForbidden, apperrors.CodeProfileSetupRequired, "Profile setup required")
	}
	return profile, nil
}
