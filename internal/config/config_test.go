package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("FRONTEND_URL", "http://localhost:3000/")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_123")
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service-role")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "http://localhost:3000", cfg.Server.FrontendURL)
	assert.Equal(t, "0.10", cfg.Payments.FeeRate)
	assert.Equal(t, int64(50), cfg.Payments.MinChargeAmount)
	assert.Equal(t, "usd", cfg.Payments.Currency)
	assert.Equal(t, "app_", cfg.Payments.MetadataPrefix)
	assert.Equal(t, IdentityModeRemote, cfg.Identity.Mode)
	assert.ElementsMatch(t, []string{"PLATFORM_FEE_RATE", "MIN_CHARGE_AMOUNT"}, cfg.Defaulted())
}

func TestLoadConfigExplicitPaymentSettings(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PLATFORM_FEE_RATE", "0.05")
	t.Setenv("MIN_CHARGE_AMOUNT", "100")

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())
	assert.Empty(t, cfg.Defaulted())

	bps, err := cfg.Payments.FeeBasisPoints()
	require.NoError(t, err)
	assert.Equal(t, int64(500), bps)
	assert.Equal(t, int64(100), cfg.Payments.MinChargeAmount)
}

func TestValidateReportsEveryMissingSetting(t *testing.T) {
	t.Setenv("FRONTEND_URL", "")
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "")

	err := LoadConfig().Validate()
	require.Error(t, err)
	for _, name := range []string{"FRONTEND_URL", "STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY"} {
		assert.Contains(t, err.Error(), name)
	}
}

func TestValidateJWTMode(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("IDENTITY_MODE", IdentityModeJWT)
	t.Setenv("SUPABASE_JWT_SECRET", "")

	err := LoadConfig().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUPABASE_JWT_SECRET")

	t.Setenv("SUPABASE_JWT_SECRET", "jwt-secret")
	assert.NoError(t, LoadConfig().Validate())
}

func TestValidateRejectsBadMinimum(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MIN_CHARGE_AMOUNT", "zero")

	err := LoadConfig().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MIN_CHARGE_AMOUNT")
}

func TestFeeBasisPoints(t *testing.T) {
	tests := []struct {
		rate    string
		want    int64
		wantErr bool
	}{
		{rate: "0.10", want: 1000},
		{rate: "0.1", want: 1000},
		{rate: "0", want: 0},
		{rate: "0.029", want: 290},
		{rate: "0.00005", wantErr: true},
		{rate: "1", wantErr: true},
		{rate: "-0.1", wantErr: true},
		{rate: "1/10", wantErr: true},
		{rate: "ten percent", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.rate, func(t *testing.T) {
			got, err := PaymentsConfig{FeeRate: tt.rate}.FeeBasisPoints()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
