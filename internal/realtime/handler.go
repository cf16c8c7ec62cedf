package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"notify-service/internal/push"
	"notify-service/internal/shared/httpx"
)

// Event is what a recipient sees of a completed batch.
type Event struct {
	BatchID     string    `json:"batch_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Delivered   bool      `json:"delivered"`
	CompletedAt time.Time `json:"completed_at"`
}

// EventFor returns the caller's view of a batch, or false when the caller is
// not one of its recipients.
func EventFor(uid string, s push.Summary) (Event, bool) {
	if !slices.Contains(s.RecipientIDs, uid) {
		return Event{}, false
	}
	ev := Event{BatchID: s.BatchID, Title: s.Title, Body: s.Body, CompletedAt: s.CompletedAt}
	for _, r := range s.Results {
		if r.RecipientID == uid && r.Success {
			ev.Delivered = true
			break
		}
	}
	return ev, true
}

type Handler struct {
	feed      *Feed
	keepAlive time.Duration
}

func NewHandler(f *Feed) *Handler { return &Handler{feed: f, keepAlive: 25 * time.Second} }

// Events streams the caller's batches as server-sent events.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	fl, ok := w.(http.Flusher)
	if !ok {
		return httpx.Internal("streaming_unsupported", errors.New("response writer cannot flush"))
	}

	events := make(chan Event, 16)
	dispose, err := h.feed.Subscribe(r.Context(), func(msg []byte) {
		var s push.Summary
		if json.Unmarshal(msg, &s) != nil {
			return
		}
		ev, mine := EventFor(uid, s)
		if !mine {
			return
		}
		select {
		case events <- ev:
		default:
		}
	})
	if err != nil {
		return &httpx.Error{Status: http.StatusServiceUnavailable, Reason: "feed_unavailable", Err: err}
	}
	defer dispose()

	// the server write timeout would cut the stream
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	tick := time.NewTicker(h.keepAlive)
	defer tick.Stop()
	for {
		select {
		case <-r.Context().Done():
			return nil
		case <-tick.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			fl.Flush()
		case ev := <-events:
			b, _ := json.Marshal(ev)
			_, _ = fmt.Fprintf(w, "event: dispatch\ndata: %s\n\n", b)
			fl.Flush()
		}
	}
}
