package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bridge/internal/normalize"
)

// StatusLookup fetches a status record by id.
type StatusLookup interface {
	GetStatus(ctx context.Context, statusID string) (any, error)
}

// StatusResolver turns numeric status ids into display names. Lookups are
// not cached so a renamed status shows up on the next event.
type StatusResolver struct {
	lookup StatusLookup
	logger *zap.Logger
}

// NewStatusResolver constructs the resolver.
func NewStatusResolver(lookup StatusLookup, logger *zap.Logger) *StatusResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusResolver{lookup: lookup, logger: logger}
}

// Resolve returns value unchanged unless it is numeric, in which case the
// name is looked up. Any failure falls back to the raw value.
func (r *StatusResolver) Resolve(ctx context.Context, value string) string {
	if !normalize.IsNumeric(value) {
		return value
	}
	raw, err := r.lookup.GetStatus(ctx, value)
	if err != nil {
		r.logger.Warn("status lookup failed, using raw id", zap.String("status_id", value), zap.Error(err))
		return value
	}
	if name, ok := statusName(raw); ok {
		return name
	}
	r.logger.Warn("status lookup returned an unknown shape, using raw id", zap.String("status_id", value))
	return value
}

// statusShapes are the response layouts seen from ticketing deployments, in
// the order they are tried.
var statusShapes = []func(any) (string, bool){
	// {"name": "Open"}
	nameField,
	// {"status": {"name": "Open"}} or {"status": "Open"}
	func(v any) (string, bool) { return nested(v, "status", "Status") },
	// {"data": {"name": "Open"}}
	func(v any) (string, bool) { return nested(v, "data", "result") },
	// [{"name": "Open"}]
	func(v any) (string, bool) {
		list, ok := v.([]any)
		if !ok || len(list) == 0 {
			return "", false
		}
		return nameField(list[0])
	},
}

func statusName(raw any) (string, bool) {
	for _, shape := range statusShapes {
		if name, ok := shape(raw); ok {
			return name, true
		}
	}
	return "", false
}

func nameField(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	for _, key := range []string{"name", "Name", "status_name", "StatusName", "dynamicName"} {
		if s, ok := normalize.Stringify(m[key]); ok {
			return s, true
		}
	}
	return "", false
}

func nested(v any, keys ...string) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	for _, key := range keys {
		switch inner := m[key].(type) {
		case string:
			if normalize.IsNumeric(inner) {
				continue
			}
			if s, ok := normalize.Stringify(inner); ok {
				return s, true
			}
		case map[string]any:
			if s, ok := nameField(inner); ok {
				return s, true
			}
		}
	}
	return "", false
}
