package payments

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/illegalcall/linkbio/internal/apperrors"
	"github.com/illegalcall/linkbio/internal/gateway"
	"github.com/illegalcall/linkbio/internal/models"
)

const expressDashboardURL = "https://connect.stripe.com/app/express/"

type AccountStore interface {
	SetPaymentAccount(ctx context.Context, profileID, accountID string) error
	SetOnboardingComplete(ctx context.Context, profileID string, complete bool) error
}

type ConnectConfig struct {
	Country     string
	FrontendURL string
}

// ConnectService links creators to connected payment accounts.
type ConnectService struct {
	accounts AccountStore
	gateway  gateway.Gateway
	cache    ProfileInvalidator
	cfg      ConnectConfig
	logger   *slog.Logger
}

// NewConnectService wires the service. cache may be nil.
func NewConnectService(accounts AccountStore, gw gateway.Gateway, cache ProfileInvalidator, cfg ConnectConfig, logger *slog.Logger) *ConnectService {
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	return &ConnectService{accounts: accounts, gateway: gw, cache: cache, cfg: cfg, logger: logger}
}

// Onboard returns a hosted onboarding URL for the profile, creating its
// connected account on first use.
func (s *ConnectService) Onboard(ctx context.Context, profile *models.Profile, email string) (string, error) {
	accountID := ""
	if profile.PaymentAccountID != nil {
		accountID = *profile.PaymentAccountID
	}

	if accountID == "" {
		id, err := s.gateway.CreateConnectedAccount(ctx, gateway.AccountRequest{
			Email:    email,
			Country:  s.cfg.Country,
			Metadata: map[string]string{"app_user_id": profile.ID},
		})
		if err != nil {
			s.logger.Error("Connected account creation failed", "profile_id", profile.ID, "error", err)
			return "", apperrors.Wrap(apperrors.KindGateway, apperrors.CodeGateway, "Payment account onboarding failed", err)
		}
		if err := s.accounts.SetPaymentAccount(ctx, profile.ID, id); err != nil {
			return "", apperrors.Persistence("Failed to link payment account", err)
		}
		s.logger.Info("Connected account created", "profile_id", profile.ID, "account_id", id)
		accountID = id
		s.invalidate(ctx, profile)
	}

	q := "&stripe_account_id=" + url.QueryEscape(accountID)
	link, err := s.gateway.CreateOnboardingLink(ctx, accountID,
		s.cfg.FrontendURL+"/connect-stripe?reauth=true"+q,
		s.cfg.FrontendURL+"/connect-stripe?success=true"+q,
	)
	if err != nil {
		s.logger.Error("Onboarding link creation failed", "account_id", accountID, "error", err)
		return "", apperrors.Wrap(apperrors.KindGateway, apperrors.CodeGateway, "Payment account onboarding failed", err)
	}
	return link, nil
}

// Status fetches the live account state and brings the stored onboarding
// flag in line with it.
func (s *ConnectService) Status(ctx context.Context, profile *models.Profile) (*models.AccountStatus, error) {
	if profile.PaymentAccountID == nil || *profile.PaymentAccountID == "" {
		return nil, apperrors.NotFound("Payment account not linked")
	}
	accountID := *profile.PaymentAccountID

	state, err := s.gateway.GetAccount(ctx, accountID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindGateway, apperrors.CodeGateway, "Failed to fetch payment account status", err)
	}

	complete := state.OnboardingComplete()
	if complete != profile.PaymentOnboardingComplete {
		if err := s.accounts.SetOnboardingComplete(ctx, profile.ID, complete); err != nil {
			return nil, apperrors.Persistence("Failed to update onboarding status", err)
		}
		s.logger.Info("Onboarding status synced", "profile_id", profile.ID, "complete", complete)
		s.invalidate(ctx, profile)
	}

	return &models.AccountStatus{
		PaymentAccountID:   state.ID,
		ChargesEnabled:     state.ChargesEnabled,
		PayoutsEnabled:     state.PayoutsEnabled,
		DetailsSubmitted:   state.DetailsSubmitted,
		OnboardingComplete: complete,
		DashboardURL:       expressDashboardURL + state.ID,
	}, nil
}

func (s *ConnectService) invalidate(ctx context.Context, profile *models.Profile) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, profile.Username); err != nil {
		s.logger.Warn("Failed to invalidate cached profile", "username", profile.Username, "error", err)
	}
}
