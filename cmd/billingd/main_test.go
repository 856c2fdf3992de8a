package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billsync/pkg/billing"
	"github.com/dmitrymomot/billsync/pkg/config"
	"github.com/dmitrymomot/billsync/pkg/logger"
)

func testConfig(t *testing.T, env map[string]string) appConfig {
	t.Helper()
	base := map[string]string{
		"BILLING_PREMIUM_PRICE_ID": "price_premium",
		"BILLING_PRO_PRICE_ID":     "price_pro",
		"STRIPE_SECRET_KEY":        "sk_test_123",
		"STRIPE_WEBHOOK_SECRET":    "whsec_123",
	}
	for k, v := range env {
		base[k] = v
	}
	cfg, err := loadConfig(config.WithEnvironment(base))
	require.NoError(t, err)
	return cfg
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, nil)

	assert.Equal(t, providerStripe, cfg.Provider)
	assert.Equal(t, storeMemory, cfg.Store)
	assert.Equal(t, lockerMemory, cfg.Locker)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "whsec_123", cfg.Stripe.WebhookSecret)
	assert.Equal(t, "billsync:lock:", cfg.Lock.Prefix)
}

func TestNewBackendsRejectsUnknown(t *testing.T) {
	t.Parallel()
	log := logger.New(logger.WithOutput(&bytes.Buffer{}))

	_, err := newBackends(t.Context(), testConfig(t, map[string]string{"BILLING_STORE": "sqlite"}), log)
	assert.ErrorIs(t, err, errUnknownBackend)

	_, err = newBackends(t.Context(), testConfig(t, map[string]string{"BILLING_LOCKER": "etcd"}), log)
	assert.ErrorIs(t, err, errUnknownBackend)

	_, _, err = newProvider(testConfig(t, map[string]string{"BILLING_PROVIDER": "braintree"}))
	assert.ErrorIs(t, err, errUnknownBackend)
}

func TestPostgresStoreRequiresURL(t *testing.T) {
	t.Parallel()
	log := logger.New(logger.WithOutput(&bytes.Buffer{}))

	_, err := newBackends(t.Context(), testConfig(t, map[string]string{"BILLING_STORE": "postgres"}), log)
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestRouter(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t, nil)
	log := logger.New(logger.WithOutput(&bytes.Buffer{}))

	b, err := newBackends(t.Context(), cfg, log)
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Migrate(t.Context(), log))

	svc, err := newService(cfg, b, log)
	require.NoError(t, err)
	router := newRouter(cfg, svc, b.checks, prometheus.NewRegistry(), log)

	for path, want := range map[string]int{
		"/healthz":              http.StatusOK,
		"/readyz":               http.StatusOK,
		"/metrics":              http.StatusOK,
		"/billing/plans":        http.StatusOK,
		"/billing/subscription": http.StatusUnauthorized,
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/billing/webhook", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestPrintPlans(t *testing.T) {
	t.Parallel()
	catalog, err := billing.NewCatalog(billing.DefaultPlans("price_premium", "price_pro")...)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printPlans(&out, catalog))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "PLAN")
	assert.Regexp(t, `^free\s+-\s+50\s+1\s+0$`, lines[1])
	assert.Regexp(t, `^premium\s+price_premium\s+unlimited\s+5\s+5$`, lines[2])
	assert.Regexp(t, `^pro\s+price_pro\s+unlimited\s+unlimited\s+5$`, lines[3])
}
