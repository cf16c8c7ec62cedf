package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notify-service/internal/push"
)

type fakeService struct {
	got []push.Request
	err error
}

func (f *fakeService) Notify(_ context.Context, req push.Request) (*push.Summary, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	return &push.Summary{BatchID: "b1"}, nil
}

type fakeWriter struct {
	keys   []string
	values [][]byte
}

func (f *fakeWriter) WriteJSON(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.keys = append(f.keys, key)
	f.values = append(f.values, b)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitBrokers(" a:9092, ,b:9092 "))
	assert.Empty(t, SplitBrokers(""))
}

func TestNotifyHandler_DecodesRequest(t *testing.T) {
	svc := &fakeService{}
	h := NotifyHandler(svc, nil)

	err := h(context.Background(), "notifications.requested", []byte("k"),
		[]byte(`{"recipient_ids":["u1","u2"],"title":"T","body":"B","data":{"type":"task"}}`))
	require.NoError(t, err)
	require.Len(t, svc.got, 1)
	assert.Equal(t, []string{"u1", "u2"}, svc.got[0].RecipientIDs)
	assert.Equal(t, "task", svc.got[0].Data["type"])
}

func TestNotifyHandler_BadPayload(t *testing.T) {
	svc := &fakeService{}
	err := NotifyHandler(svc, nil)(context.Background(), "t", nil, []byte("{not json"))
	assert.ErrorIs(t, err, ErrDecode)
	assert.Empty(t, svc.got)
}

func TestNotifyHandler_PipelineError(t *testing.T) {
	svc := &fakeService{err: push.ErrInvalidRequest}
	err := NotifyHandler(svc, nil)(context.Background(), "t", []byte("k"), []byte(`{"recipient_ids":[]}`))
	assert.ErrorIs(t, err, push.ErrInvalidRequest)
}

func TestSummaryHook(t *testing.T) {
	w := &fakeWriter{}
	sum := &push.Summary{BatchID: "b42", Sent: 2}
	require.NoError(t, SummaryHook(w)(context.Background(), sum))

	require.Equal(t, []string{"b42"}, w.keys)
	var got push.Summary
	require.NoError(t, json.Unmarshal(w.values[0], &got))
	assert.Equal(t, 2, got.Sent)
}

func TestSummaryHook_PropagatesWriteError(t *testing.T) {
	w := errWriter{err: errors.New("broker down")}
	assert.Error(t, SummaryHook(w)(context.Background(), &push.Summary{}))
}

type errWriter struct{ err error }

func (e errWriter) WriteJSON(context.Context, string, any) error { return e.err }
func (e errWriter) Close() error                                 { return nil }

type memSeen struct {
	keys map[string]bool
	err  error
}

func (m *memSeen) PutNX(_ context.Context, key string, _ time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func TestNotifyHandler_SkipsRedelivery(t *testing.T) {
	svc := &fakeService{}
	seen := &memSeen{keys: map[string]bool{}}
	h := NotifyHandler(svc, seen)
	msg := []byte(`{"recipient_ids":["u1"],"title":"T","body":"B"}`)

	require.NoError(t, h(context.Background(), "req", []byte("k1"), msg))
	require.NoError(t, h(context.Background(), "req", []byte("k1"), msg))
	require.NoError(t, h(context.Background(), "req", []byte("k2"), msg))
	require.NoError(t, h(context.Background(), "req", nil, msg))
	assert.Len(t, svc.got, 3)
	assert.True(t, seen.keys["req:k1"])
}

func TestNotifyHandler_DedupStoreDownStillDispatches(t *testing.T) {
	svc := &fakeService{}
	h := NotifyHandler(svc, &memSeen{err: errors.New("redis down")})
	require.NoError(t, h(context.Background(), "req", []byte("k1"), []byte(`{"recipient_ids":["u1"]}`)))
	assert.Len(t, svc.got, 1)
}
