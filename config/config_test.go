package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_PartnerSecretFallsBackToAdminSecret(t *testing.T) {
	t.Setenv("ADMIN_SESSION_SECRET", "admin-secret")
	t.Setenv("PARTNER_JWT_SECRET", "")

	cfg := Load()
	require.Equal(t, "admin-secret", cfg.PartnerJWTSecret)

	t.Setenv("PARTNER_JWT_SECRET", "partner-secret")
	cfg = Load()
	require.Equal(t, "partner-secret", cfg.PartnerJWTSecret)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PUBLIC_BASE_URL", "https://meta-klage.de/")
	t.Setenv("OUTBOUND_TIMEOUT", "")
	t.Setenv("ESIGN_API_KEY", "")

	cfg := Load()
	require.Equal(t, "https://meta-klage.de", cfg.PublicBaseURL)
	require.Equal(t, 20*time.Second, cfg.OutboundTimeout)
	require.Equal(t, "Signer", cfg.ESignRecipientRole)
	require.False(t, cfg.ESignEnabled())
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name string
		val  string
		want time.Duration
	}{
		{"duration string", "90s", 90 * time.Second},
		{"plain seconds", "15", 15 * time.Second},
		{"zero disables", "0", 0},
		{"garbage falls back", "soon", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.val)
			require.Equal(t, tt.want, getEnvDuration("TEST_DURATION", time.Minute))
		})
	}
}

func TestGetEnvFloat_AcceptsDecimalComma(t *testing.T) {
	t.Setenv("TEST_AMOUNT", "2,5")
	require.InDelta(t, 2.5, getEnvFloat("TEST_AMOUNT", 1), 0.0001)
}
