package push

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Outcome is the classification of one provider response.
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeUnregistered means the token is dead and the subscription
	// should be reconciled away.
	OutcomeUnregistered
	// OutcomeFailed covers every other failure. It is left for a later
	// invocation to retry.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeUnregistered:
		return "unregistered"
	}
	return "failed"
}

// providerError is the structured error body of the send API.
type providerError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}

// Classify maps an HTTP status and response body to an outcome plus a short
// detail for the caller. The structured errorCode is authoritative; text
// matching is only used when the body is not the documented JSON shape.
func Classify(status int, body []byte) (Outcome, string) {
	if status >= 200 && status < 300 {
		return OutcomeOK, ""
	}

	var pe providerError
	if err := json.Unmarshal(body, &pe); err == nil && (pe.Error.Status != "" || len(pe.Error.Details) > 0) {
		code := pe.Error.Status
		for _, d := range pe.Error.Details {
			if d.ErrorCode != "" {
				code = d.ErrorCode
				break
			}
		}
		detail := code
		if pe.Error.Message != "" {
			detail += ": " + pe.Error.Message
		}

		switch {
		case code == "UNREGISTERED":
			return OutcomeUnregistered, detail
		case status == http.StatusNotFound && code == "NOT_FOUND":
			return OutcomeUnregistered, detail
		case code == "INVALID_ARGUMENT" && mentionsToken(pe.Error.Message):
			return OutcomeUnregistered, detail
		}
		return OutcomeFailed, detail
	}

	text := strings.TrimSpace(string(body))
	if status == http.StatusNotFound || status == http.StatusBadRequest {
		if strings.Contains(text, "UNREGISTERED") || mentionsToken(text) {
			return OutcomeUnregistered, truncateDetail(text)
		}
	}
	if text == "" {
		text = http.StatusText(status)
	}
	return OutcomeFailed, truncateDetail(text)
}

func mentionsToken(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "registration token") || strings.Contains(msg, "registration-token")
}

func truncateDetail(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
