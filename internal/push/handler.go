package push

import (
	"errors"
	"net/http"

	"notify-service/internal/credential"
	"notify-service/internal/shared/httpx"
)

type Handler struct{ svc Service }

func NewHandler(s Service) *Handler { return &Handler{svc: s} }

type notifyResp struct {
	Message string   `json:"message"`
	BatchID string   `json:"batch_id,omitempty"`
	Results []Result `json:"results"`
}

// Notify is the dispatch entry point. Any completed batch answers 200, even
// when some sends failed.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) error {
	req, err := httpx.Decode[Request](r)
	if err != nil {
		return httpx.BadRequest("bad_json", err)
	}
	sum, err := h.svc.Notify(r.Context(), req)
	if err != nil {
		return mapErr(err)
	}
	httpx.WriteJSON(w, notifyResp{
		Message: sum.Message,
		BatchID: sum.BatchID,
		Results: sum.Results,
	}, http.StatusOK)
	return nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return httpx.BadRequest("invalid_request", err)
	case errors.Is(err, ErrStore):
		return httpx.Internal("store_unavailable", err)
	case errors.Is(err, credential.ErrCredential):
		return httpx.Internal("credential_error", err)
	case errors.Is(err, credential.ErrProviderAuth):
		return httpx.Internal("provider_auth_error", err)
	}
	return httpx.Internal("internal", err)
}
