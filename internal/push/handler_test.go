package push

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notify-service/internal/credential"
	"notify-service/internal/shared/httpx"
)

func postNotify(t *testing.T, svc Service, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/notify", strings.NewReader(body))
	httpx.Wrap(NewHandler(svc).Notify).ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestHandler_Notify(t *testing.T) {
	store := &memStore{}
	store.add("u1", endpoint("ok"))
	store.add("u1", endpoint("dead"))
	sender := newFakeSender()
	sender.responses["dead"] = SendResponse{StatusCode: http.StatusNotFound, Body: []byte(unregisteredBody)}
	svc := newTestService(store, sender, &staticMinter{tok: testToken})

	rec, out := postNotify(t, svc, `{"recipient_ids":["u1"],"title":"Shift updated","body":"Friday 9-5","data":{"url":"https://studio.example.com/shifts"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	results := out["results"].([]any)
	require.Len(t, results, 2)

	first := results[0].(map[string]any)
	assert.Equal(t, true, first["success"])
	assert.EqualValues(t, 200, first["provider_status_code"])

	second := results[1].(map[string]any)
	assert.Equal(t, false, second["success"])
	assert.Equal(t, string(StateSendFailedReconciled), second["state"])
	assert.NotEmpty(t, second["error_detail"])
}

func TestHandler_NotifyEmptyResults(t *testing.T) {
	svc := newTestService(&memStore{}, newFakeSender(), &staticMinter{tok: testToken})

	rec, out := postNotify(t, svc, `{"recipient_ids":["nobody"],"title":"x","body":"y"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, out["results"])
	assert.NotEmpty(t, out["message"])
}

func TestHandler_NotifyErrors(t *testing.T) {
	store := &memStore{}
	store.add("u1", endpoint("a"))

	cases := []struct {
		name   string
		minter credential.Minter
		body   string
		status int
		reason string
	}{
		{"bad json", &staticMinter{tok: testToken}, `{"recipient_ids":`, http.StatusBadRequest, "bad_json"},
		{"empty recipients", &staticMinter{tok: testToken}, `{"recipient_ids":[],"title":"x"}`, http.StatusBadRequest, "invalid_request"},
		{"missing recipients", &staticMinter{tok: testToken}, `{"title":"x"}`, http.StatusBadRequest, "invalid_request"},
		{"auth rejected", &staticMinter{err: credential.ErrProviderAuth}, `{"recipient_ids":["u1"]}`, http.StatusInternalServerError, "provider_auth_error"},
		{"bad credential", &staticMinter{err: credential.ErrCredential}, `{"recipient_ids":["u1"]}`, http.StatusInternalServerError, "credential_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, out := postNotify(t, newTestService(store, newFakeSender(), tc.minter), tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.reason, out["reason"])
			assert.NotContains(t, out, "results")
		})
	}
}

func TestHandler_NotifyStoreDown(t *testing.T) {
	store := &memStore{getErr: assert.AnError}
	rec, out := postNotify(t, newTestService(store, newFakeSender(), &staticMinter{tok: testToken}), `{"recipient_ids":["u1"]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "store_unavailable", out["reason"])
}

func TestHandler_NotifyRejectsTrailingData(t *testing.T) {
	store := &memStore{}
	store.add("u1", endpoint("a"))
	sender := newFakeSender()
	svc := newTestService(store, sender, &staticMinter{tok: testToken})

	for _, body := range []string{
		`{"recipient_ids":["u1"],"title":"t"} not-json`,
		`{"recipient_ids":["u1"]}{"recipient_ids":["u2"]}`,
	} {
		rec, out := postNotify(t, svc, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "bad_json", out["reason"])
	}
	assert.Zero(t, sender.sentCount())

	rec, _ := postNotify(t, svc, "{\"recipient_ids\":[\"u1\"]}\n  ")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_NotifyRejectsOversizedBody(t *testing.T) {
	svc := newTestService(&memStore{}, newFakeSender(), &staticMinter{tok: testToken})
	body := `{"recipient_ids":["u1"],"title":"` + strings.Repeat("x", httpx.MaxBodyBytes) + `"}`

	rec, out := postNotify(t, svc, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_json", out["reason"])
}
