package push

import (
	"strings"

	"notify-service/internal/metrics"
	"notify-service/internal/shared/logging"
)

const fcmMarker = "/fcm/"

// ExtractToken turns a stored delivery endpoint into the raw device token
// the send API expects. For the canonical ".../fcm/<...>/<token>" shape the
// trailing path segment is returned. Any other non-empty value is returned
// unchanged (legacy rows may hold a raw token) after a warning. ok is false
// only when no usable token can be produced.
func ExtractToken(endpoint string) (token string, ok bool) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", false
	}

	i := strings.Index(endpoint, fcmMarker)
	if i < 0 {
		lg := logging.Component("push")
		lg.Warn().
			Str("endpoint", logging.Truncate(endpoint, 48)).
			Msg("endpoint does not match provider shape, using it as raw token")
		metrics.NonCanonicalEndpoints.Inc()
		return endpoint, true
	}

	tail := endpoint[i+len(fcmMarker):]
	if j := strings.IndexAny(tail, "?#"); j >= 0 {
		tail = tail[:j]
	}
	token = tail[strings.LastIndex(tail, "/")+1:]
	if token == "" || tail == "send" {
		return "", false
	}
	return token, true
}
