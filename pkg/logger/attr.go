package logger

import "log/slog"

// Error records err under the key "error". A nil error yields an empty Attr,
// which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the internal user id under "user_id".
func UserID(id string) slog.Attr {
	return optional("user_id", id)
}

// CustomerID records the provider customer id under "customer_id".
func CustomerID(id string) slog.Attr {
	return optional("customer_id", id)
}

// SubscriptionID records the provider subscription id under "subscription_id".
func SubscriptionID(id string) slog.Attr {
	return optional("subscription_id", id)
}

// EventID records the provider event id under "event_id".
func EventID(id string) slog.Attr {
	return optional("event_id", id)
}

// EventType records the provider event name under "event_type".
func EventType(t string) slog.Attr {
	return optional("event_type", t)
}

// Outcome records how a webhook was handled under "outcome".
func Outcome(o string) slog.Attr {
	return slog.String("outcome", o)
}

// Component records the emitting component under "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// RequestID records the request id under "request_id".
func RequestID(id string) slog.Attr {
	return optional("request_id", id)
}

// Duration records an elapsed time under "duration".
func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

func optional(key, val string) slog.Attr {
	if val == "" {
		return slog.Attr{}
	}
	return slog.String(key, val)
}
