package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// ExtractContext restores the remote span context from inbound carrier headers.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

var sensitiveAttrFragments = []string{"token", "password", "secret", "authorization", "cookie"}

// SafeAttributes drops attributes whose keys look like they carry credentials.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := attrs[:0]
	for _, attr := range attrs {
		if isSensitiveKey(string(attr.Key)) {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError returns an error suitable for span recording, redacting messages
// that may embed credentials.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	if isSensitiveKey(err.Error()) {
		return errors.New("redacted error")
	}
	return err
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveAttrFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
