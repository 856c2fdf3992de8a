package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billsync/pkg/logger"
)

func TestGroup(t *testing.T) {
	t.Parallel()
	attr := logger.Group("req", slog.String("id", "1"), slog.Int("n", 2))
	require.Equal(t, "req", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "n", g[1].Key)
}

func TestError(t *testing.T) {
	t.Parallel()
	err := errors.New("boom")
	attr := logger.Error(err)
	assert.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())
	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestIdentifierAttrs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		fn   func(string) slog.Attr
		key  string
	}{
		{"user", logger.UserID, "user_id"},
		{"customer", logger.CustomerID, "customer_id"},
		{"subscription", logger.SubscriptionID, "subscription_id"},
		{"event", logger.EventID, "event_id"},
		{"event type", logger.EventType, "event_type"},
		{"request", logger.RequestID, "request_id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			attr := tc.fn("v1")
			assert.Equal(t, tc.key, attr.Key)
			assert.Equal(t, "v1", attr.Value.String())
			assert.True(t, tc.fn("").Equal(slog.Attr{}))
		})
	}
}

func TestOutcomeAndComponent(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "applied", logger.Outcome("applied").Value.String())
	assert.Equal(t, "component", logger.Component("x").Key)
}
