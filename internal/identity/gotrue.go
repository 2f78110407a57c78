package identity

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/supabase-community/gotrue-go"

	"github.com/illegalcall/linkbio/internal/models"
)

var statusPattern = regexp.MustCompile(`response status code (\d+)`)

// GoTrueVerifier asks the Supabase auth server who owns a token.
type GoTrueVerifier struct {
	client gotrue.Client
	logger *slog.Logger
}

// NewGoTrueVerifier builds a verifier against supabaseURL. The auth API is
// expected under /auth/v1.
func NewGoTrueVerifier(supabaseURL, serviceKey string, logger *slog.Logger) *GoTrueVerifier {
	base := strings.TrimRight(supabaseURL, "/")
	client := gotrue.New(extractProjectRef(base), serviceKey).
		WithCustomGoTrueURL(base + "/auth/v1")
	return &GoTrueVerifier{client: client, logger: logger}
}

// extractProjectRef turns https://abcd.supabase.co into abcd
func extractProjectRef(url string) string {
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	return strings.Split(url, ".")[0]
}

func (v *GoTrueVerifier) Verify(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	// gotrue-go has no context support; bail out early if the request is gone.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	user, err := v.client.WithToken(token).GetUser()
	if err != nil {
		if rejected(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		v.logger.Error("Identity provider unavailable", "error", err)
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}

	return &models.Identity{ID: user.ID.String(), Email: user.Email}, nil
}

// rejected reports whether the provider answered with a client error about
// the credential itself.
func rejected(err error) bool {
	m := statusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return false
	}
	code, _ := strconv.Atoi(m[1])
	switch code {
	case 400, 401, 403, 404:
		return true
	}
	return false
}
