package notification

import (
	"errors"
	"net/http"
	"strconv"

	"notify-service/internal/shared/httpx"
)

type Handler struct{ svc Service }

func NewHandler(s Service) *Handler { return &Handler{svc: s} }

func (h *Handler) List(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	items, err := h.svc.List(r.Context(), uid, limit)
	if err != nil {
		return httpx.Internal("inbox_unavailable", err)
	}
	httpx.WriteJSON(w, map[string]any{"notifications": items}, http.StatusOK)
	return nil
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	id := r.PathValue("id")
	if id == "" {
		return httpx.BadRequest("missing_id", errors.New("missing id"))
	}
	if err := h.svc.MarkRead(r.Context(), uid, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &httpx.Error{Status: http.StatusNotFound, Reason: "not_found", Err: err}
		}
		return httpx.Internal("inbox_unavailable", err)
	}
	httpx.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	return nil
}
