package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"notify-service/internal/shared/logging"
)

type HandlerFunc func(http.ResponseWriter, *http.Request) error

type APIError struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Status int    `json:"status"`
}

// Error carries an HTTP status back to Wrap.
type Error struct {
	Status int
	Reason string
	Err    error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func BadRequest(reason string, err error) error {
	return &Error{Status: http.StatusBadRequest, Reason: reason, Err: err}
}

func Internal(reason string, err error) error {
	return &Error{Status: http.StatusInternalServerError, Reason: reason, Err: err}
}

type ctxKey string

const userKey ctxKey = "user_id"

var ErrUnauthorized = errors.New("unauthorized")

func WriteJSON(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, err error, reason string) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	WriteJSON(w, APIError{Error: err.Error(), Reason: reason, Status: status}, status)
}

func Wrap(fn HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		code, reason := http.StatusBadRequest, ""
		var he *Error
		switch {
		case errors.As(err, &he):
			code, reason = he.Status, he.Reason
		case errors.Is(err, ErrUnauthorized):
			code = http.StatusUnauthorized
		}
		if code >= http.StatusInternalServerError {
			lg := logging.Component("http")
			lg.Error().Err(err).Str("path", r.URL.Path).Str("reason", reason).Msg("request failed")
		}
		WriteError(w, code, err, reason)
	})
}

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

var ErrTrailingData = errors.New("unexpected data after JSON body")

// Decode reads exactly one JSON value from the body into T.
func Decode[T any](r *http.Request) (T, error) {
	var t T
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodyBytes))
	if err := dec.Decode(&t); err != nil {
		return t, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return t, ErrTrailingData
	}
	return t, nil
}

func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// TokenParser resolves a bearer token to a user id.
type TokenParser interface {
	Parse(tok string) (string, error)
}

func AuthMiddleware(p TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := BearerToken(r)
			if tok == "" {
				WriteError(w, http.StatusUnauthorized, ErrUnauthorized, "missing_bearer")
				return
			}
			uid, err := p.Parse(tok)
			if err != nil || uid == "" {
				WriteError(w, http.StatusUnauthorized, ErrUnauthorized, "invalid_token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), uid)))
		})
	}
}

func WithUser(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, userKey, uid)
}

func UserFromCtx(r *http.Request) (string, error) {
	uid, _ := r.Context().Value(userKey).(string)
	if uid == "" {
		return "", ErrUnauthorized
	}
	return uid, nil
}
