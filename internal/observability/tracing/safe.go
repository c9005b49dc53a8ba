package tracing

import (
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Span attributes are shipped to a third-party collector, so anything that
// could carry credentials or raw payloads is dropped before export.
var blockedAttributeKeys = map[string]struct{}{
	"authorization":        {},
	"x-paystack-signature": {},
	"secret":               {},
	"api_key":              {},
	"payload":              {},
	"body":                 {},
}

// SafeAttributes filters out attributes whose keys may carry sensitive data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	safe := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		key := strings.ToLower(string(attr.Key))
		if _, blocked := blockedAttributeKeys[key]; blocked {
			continue
		}
		safe = append(safe, attr)
	}
	return safe
}

// SafeError returns an error whose message is safe to record on a span.
// Messages that look like they embed secrets are replaced with a generic one.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"sk_live", "sk_test", "secret", "signature"} {
		if strings.Contains(msg, marker) {
			return errors.New("internal error (message redacted)")
		}
	}
	return err
}
