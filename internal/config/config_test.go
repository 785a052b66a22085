package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"paydibs/internal/config"
)

func TestPaydibsConfig_APIURL(t *testing.T) {
	cfg := config.PaydibsConfig{
		Environment:      "test",
		TestAPIURL:       "https://staging.paydibs.com/PGWSG/Payment.aspx",
		ProductionAPIURL: "https://pay.paydibs.com/PGWSG/Payment.aspx",
	}
	require.Equal(t, cfg.TestAPIURL, cfg.APIURL())

	cfg.Environment = "production"
	require.Equal(t, cfg.ProductionAPIURL, cfg.APIURL())

	// Anything other than "test" selects production.
	cfg.Environment = ""
	require.Equal(t, cfg.ProductionAPIURL, cfg.APIURL())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 300, cfg.Paydibs.PageTimeout)
	require.Equal(t, 15*time.Minute, cfg.Paydibs.PollWindow)
	require.Equal(t, 30*time.Second, cfg.Paydibs.QueryTimeout)
	require.False(t, cfg.Paydibs.RestoreCart)
	require.False(t, cfg.Paydibs.RequireSignature)
	require.Equal(t, "/checkout/onepage/success", cfg.Checkout.SuccessURL)
	require.Equal(t, "/checkout/cart", cfg.Checkout.CartURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PAYDIBS_MERCHANT_ID", "MID001")
	t.Setenv("PAYDIBS_RESTORE_CART", "true")
	t.Setenv("PAYDIBS_POLL_WINDOW_MINUTES", "30")
	t.Setenv("PAYDIBS_QUERY_TIMEOUT", "10s")

	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "MID001", cfg.Paydibs.MerchantID)
	require.True(t, cfg.Paydibs.RestoreCart)
	require.Equal(t, 30*time.Minute, cfg.Paydibs.PollWindow)
	require.Equal(t, 10*time.Second, cfg.Paydibs.QueryTimeout)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:    "localhost",
		Port:    "3306",
		Name:    "shop",
		User:    "app",
		Pass:    "secret",
		Charset: "utf8mb4",
	}
	require.Equal(t,
		"app:secret@tcp(localhost:3306)/shop?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.DSN())
}
