package subscription

import (
	"errors"
	"net/http"

	"notify-service/internal/shared/httpx"
	"notify-service/internal/shared/logging"
)

type Handler struct{ svc Service }

func NewHandler(s Service) *Handler { return &Handler{svc: s} }

type registerReq struct {
	Endpoint   string `json:"endpoint"`
	DeviceInfo string `json:"device_info"`
}

type deviceView struct {
	Endpoint   string `json:"endpoint"`
	DeviceInfo string `json:"device_info,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	req, err := httpx.Decode[registerReq](r)
	if err != nil {
		return httpx.BadRequest("bad_json", err)
	}
	sub, err := h.svc.Register(r.Context(), uid, req.Endpoint, req.DeviceInfo)
	if err != nil {
		return mapErr(err)
	}
	httpx.WriteJSON(w, map[string]any{
		"status":   "registered",
		"endpoint": logging.Truncate(sub.Endpoint, 48),
	}, http.StatusCreated)
	return nil
}

func (h *Handler) Unregister(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	req, err := httpx.Decode[registerReq](r)
	if err != nil {
		return httpx.BadRequest("bad_json", err)
	}
	if err := h.svc.Unregister(r.Context(), uid, req.Endpoint); err != nil {
		return mapErr(err)
	}
	httpx.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	return nil
}

func (h *Handler) UnregisterAll(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	n, err := h.svc.UnregisterAll(r.Context(), uid)
	if err != nil {
		return mapErr(err)
	}
	httpx.WriteJSON(w, map[string]any{"status": "ok", "removed": n}, http.StatusOK)
	return nil
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	subs, err := h.svc.Get(r.Context(), []string{uid})
	if err != nil {
		return mapErr(err)
	}
	out := make([]deviceView, 0, len(subs))
	for _, s := range subs {
		out = append(out, deviceView{
			Endpoint:   logging.Truncate(s.Endpoint, 48),
			DeviceInfo: s.DeviceInfo,
			CreatedAt:  s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	httpx.WriteJSON(w, map[string]any{"subscriptions": out}, http.StatusOK)
	return nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return httpx.BadRequest("invalid_request", err)
	case errors.Is(err, ErrStore):
		return httpx.Internal("store_unavailable", err)
	}
	return err
}
