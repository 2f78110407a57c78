// Package identity resolves bearer credentials issued by the external identity
// provider into verified identities.
package identity

import (
	"context"
	"errors"

	"github.com/illegalcall/linkbio/internal/models"
)

// ErrInvalidToken marks a credential the provider rejected. Any other error
// returned by a Verifier means the provider could not be consulted.
var ErrInvalidToken = errors.New("invalid or expired token")

type Verifier interface {
	Verify(ctx context.Context, token string) (*models.Identity, error)
}
