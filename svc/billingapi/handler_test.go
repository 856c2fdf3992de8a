package billingapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billsync/pkg/billing"
	"github.com/dmitrymomot/billsync/svc/billingapi"
)

type mockService struct {
	mock.Mock
	catalog *billing.Catalog
}

func (m *mockService) StartCheckout(ctx context.Context, user billing.User, plan billing.PlanID, successURL, cancelURL string) (*billing.RedirectTarget, error) {
	args := m.Called(ctx, user, plan, successURL, cancelURL)
	target, _ := args.Get(0).(*billing.RedirectTarget)
	return target, args.Error(1)
}

func (m *mockService) OpenPortal(ctx context.Context, user billing.User, returnURL string) (*billing.RedirectTarget, error) {
	args := m.Called(ctx, user, returnURL)
	target, _ := args.Get(0).(*billing.RedirectTarget)
	return target, args.Error(1)
}

func (m *mockService) ResolveCustomer(ctx context.Context, user billing.User) (string, error) {
	args := m.Called(ctx, user)
	return args.String(0), args.Error(1)
}

func (m *mockService) HandleWebhook(ctx context.Context, payload []byte, signature string) (billing.Outcome, error) {
	args := m.Called(ctx, payload, signature)
	return args.Get(0).(billing.Outcome), args.Error(1)
}

func (m *mockService) Dispatch(ctx context.Context, event billing.Event) (billing.Outcome, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(billing.Outcome), args.Error(1)
}

func (m *mockService) SignatureHeader() string { return "Stripe-Signature" }

func (m *mockService) GetByUser(ctx context.Context, userID string) (*billing.Subscription, error) {
	args := m.Called(ctx, userID)
	sub, _ := args.Get(0).(*billing.Subscription)
	return sub, args.Error(1)
}

func (m *mockService) Catalog() *billing.Catalog { return m.catalog }

func newTestHandler(t *testing.T, cfg billingapi.Config) (*mockService, *billingapi.Metrics, http.Handler) {
	t.Helper()
	catalog, err := billing.NewCatalog(billing.DefaultPlans("price_premium", "price_pro")...)
	require.NoError(t, err)
	svc := &mockService{catalog: catalog}
	metrics := billingapi.NewMetrics(prometheus.NewRegistry())
	h := billingapi.NewHandler(svc, cfg, billingapi.WithMetrics(metrics))
	return svc, metrics, h.Router()
}

func withUser(r *http.Request, id string) *http.Request {
	return r.WithContext(billingapi.WithUser(r.Context(), billing.User{ID: id, Email: id + "@example.com"}))
}

func TestWebhook(t *testing.T) {
	t.Parallel()

	t.Run("applied", func(t *testing.T) {
		t.Parallel()
		svc, metrics, router := newTestHandler(t, billingapi.Config{})
		body := []byte(`{"id":"evt_1"}`)
		svc.On("HandleWebhook", mock.Anything, body, "t=1,v1=abc").Return(billing.OutcomeApplied, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
		req.Header.Set("Stripe-Signature", "t=1,v1=abc")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"received":true,"outcome":"applied"}`, rec.Body.String())
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WebhookRequests.WithLabelValues("applied", "200")))
		svc.AssertExpectations(t)
	})

	t.Run("signature rejected", func(t *testing.T) {
		t.Parallel()
		svc, metrics, router := newTestHandler(t, billingapi.Config{})
		svc.On("HandleWebhook", mock.Anything, mock.Anything, "").
			Return(billing.Outcome(""), errors.Join(billing.ErrInvalidSignature, errors.New("no signatures found"))).Once()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"invalid signature"}`, rec.Body.String())
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WebhookRequests.WithLabelValues("signature_rejected", "400")))
	})

	t.Run("store failure is retryable", func(t *testing.T) {
		t.Parallel()
		svc, _, router := newTestHandler(t, billingapi.Config{})
		svc.On("HandleWebhook", mock.Anything, mock.Anything, mock.Anything).
			Return(billing.Outcome(""), billing.ErrStoreFailure).Once()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("malformed", func(t *testing.T) {
		t.Parallel()
		svc, _, router := newTestHandler(t, billingapi.Config{})
		svc.On("HandleWebhook", mock.Anything, mock.Anything, mock.Anything).
			Return(billing.Outcome(""), billing.ErrMalformedEvent).Once()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("payload too large", func(t *testing.T) {
		t.Parallel()
		svc, _, router := newTestHandler(t, billingapi.Config{WebhookMaxBody: 8})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"id":"evt_123456"}`)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		svc.AssertNotCalled(t, "HandleWebhook", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCheckout(t *testing.T) {
	t.Parallel()
	body := `{"plan":"premium","success_url":"https://app/ok","cancel_url":"https://app/cancel"}`

	t.Run("requires user", func(t *testing.T) {
		t.Parallel()
		_, _, router := newTestHandler(t, billingapi.Config{})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		svc, _, router := newTestHandler(t, billingapi.Config{})
		svc.On("StartCheckout", mock.Anything, mock.MatchedBy(func(u billing.User) bool { return u.ID == "u1" }),
			billing.PlanPremium, "https://app/ok", "https://app/cancel").
			Return(&billing.RedirectTarget{ID: "cs_1", URL: "https://checkout/cs_1"}, nil).Once()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body)), "u1"))

		require.Equal(t, http.StatusOK, rec.Code)
		var got billing.RedirectTarget
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "cs_1", got.ID)
		assert.Equal(t, "https://checkout/cs_1", got.URL)
		assert.NotContains(t, rec.Body.String(), "expires_at")
	})

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid plan", billing.ErrInvalidPlan, http.StatusBadRequest},
		{"provider down", errors.Join(billing.ErrProviderUnavailable, errors.New("timeout")), http.StatusBadGateway},
		{"store down", billing.ErrStoreFailure, http.StatusInternalServerError},
		{"missing email", billing.ErrCustomerDetailsRequired, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc, _, router := newTestHandler(t, billingapi.Config{})
			svc.On("StartCheckout", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(nil, tc.err).Once()
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body)), "u1"))
			assert.Equal(t, tc.status, rec.Code)
		})
	}

	t.Run("bad body", func(t *testing.T) {
		t.Parallel()
		_, _, router := newTestHandler(t, billingapi.Config{})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"plan":"pro"}`)), "u1"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPortal(t *testing.T) {
	t.Parallel()

	svc, _, router := newTestHandler(t, billingapi.Config{})
	svc.On("OpenPortal", mock.Anything, mock.Anything, "https://app/account").
		Return(nil, billing.ErrNoSubscription).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodPost, "/portal", strings.NewReader(`{"return_url":"https://app/account"}`)), "u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"no subscription found for this user"}`, rec.Body.String())
}

func TestSubscription(t *testing.T) {
	t.Parallel()

	t.Run("implicit free", func(t *testing.T) {
		t.Parallel()
		svc, _, router := newTestHandler(t, billingapi.Config{})
		svc.On("GetByUser", mock.Anything, "u1").Return(billing.FreeSubscription("u1"), nil).Once()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/subscription", nil), "u1"))

		require.Equal(t, http.StatusOK, rec.Code)
		var got map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "free", got["plan"])
		assert.Equal(t, "free", got["effective_plan"])
		assert.Equal(t, "none", got["status"])
		assert.Equal(t, 50.0, got["limits"].(map[string]any)["contents"])
	})

	t.Run("canceled premium falls back to free", func(t *testing.T) {
		t.Parallel()
		svc, _, router := newTestHandler(t, billingapi.Config{})
		sub := billing.FreeSubscription("u1")
		sub.Plan, sub.Status = billing.PlanPremium, billing.StatusCanceled
		svc.On("GetByUser", mock.Anything, "u1").Return(sub, nil).Once()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/subscription", nil), "u1"))

		var got map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "premium", got["plan"])
		assert.Equal(t, "free", got["effective_plan"])
	})
}

func TestTrustedHeaders(t *testing.T) {
	t.Parallel()

	svc, _, router := newTestHandler(t, billingapi.Config{TrustUserHeader: true})
	svc.On("GetByUser", mock.Anything, "u9").Return(billing.FreeSubscription("u9"), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/subscription", nil)
	req.Header.Set(billingapi.DefaultUserIDHeader, "u9")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestPlans(t *testing.T) {
	t.Parallel()

	_, _, router := newTestHandler(t, billingapi.Config{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plans", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 3)
	assert.Equal(t, "free", got[0]["id"])
	assert.NotContains(t, rec.Body.String(), "price_premium")
}
