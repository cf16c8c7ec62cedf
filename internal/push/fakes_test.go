package push

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"notify-service/internal/credential"
	"notify-service/internal/subscription"
)

const unregisteredBody = `{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND","details":[{"errorCode":"UNREGISTERED"}]}}`

// memStore is a subscription source and reconciler backed by a map.
type memStore struct {
	mu        sync.Mutex
	rows      []subscription.Subscription
	deletions int
	getErr    error
	removeErr error
}

func (m *memStore) add(recipient, endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, subscription.Subscription{
		ID:          uint(len(m.rows) + 1),
		RecipientID: recipient,
		Endpoint:    endpoint,
	})
}

func (m *memStore) Get(_ context.Context, ids []string) ([]subscription.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []subscription.Subscription
	for _, s := range m.rows {
		if want[s.RecipientID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) Remove(_ context.Context, recipient, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	for i, s := range m.rows {
		if s.RecipientID == recipient && s.Endpoint == endpoint {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			m.deletions++
			return nil
		}
	}
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// fakeSender answers per device token.
type fakeSender struct {
	mu        sync.Mutex
	responses map[string]SendResponse
	errs      map[string]error
	sent      []Message
	inFlight  atomic.Int32
	peak      atomic.Int32
	block     chan struct{}
}

func newFakeSender() *fakeSender {
	return &fakeSender{responses: map[string]SendResponse{}, errs: map[string]error{}}
}

func (f *fakeSender) Send(ctx context.Context, tok credential.BearerToken, msg Message) (*SendResponse, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if tok.Value == "" {
		return nil, errors.New("missing bearer token")
	}
	f.sent = append(f.sent, msg)
	if err, ok := f.errs[msg.Message.Token]; ok {
		return nil, err
	}
	if r, ok := f.responses[msg.Message.Token]; ok {
		return &r, nil
	}
	return &SendResponse{StatusCode: http.StatusOK, Body: []byte(`{"name":"ok"}`)}, nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type staticMinter struct {
	tok   credential.BearerToken
	err   error
	calls atomic.Int32
}

func (m *staticMinter) Mint(context.Context) (credential.BearerToken, error) {
	m.calls.Add(1)
	return m.tok, m.err
}

var testToken = credential.BearerToken{Value: "ya29.test"}

func endpoint(tok string) string { return "https://fcm.googleapis.com/fcm/send/" + tok }
