package subscription

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo mirrors the postgres repository semantics in memory.
type memRepo struct {
	mu      sync.Mutex
	rows    map[string]Subscription // keyed by endpoint
	nextID  uint
	failErr error
}

func newMemRepo() *memRepo { return &memRepo{rows: map[string]Subscription{}} }

func (m *memRepo) ListByRecipients(_ context.Context, ids []string) ([]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []Subscription
	for _, s := range m.rows {
		if want[s.RecipientID] {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRepo) Upsert(_ context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	if old, ok := m.rows[s.Endpoint]; ok {
		s.ID = old.ID
	} else {
		m.nextID++
		s.ID = m.nextID
	}
	m.rows[s.Endpoint] = *s
	return nil
}

func (m *memRepo) Remove(_ context.Context, recipientID, endpoint string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return false, m.failErr
	}
	s, ok := m.rows[endpoint]
	if !ok || s.RecipientID != recipientID {
		return false, nil
	}
	delete(m.rows, endpoint)
	return true, nil
}

func (m *memRepo) RemoveAll(_ context.Context, recipientID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for ep, s := range m.rows {
		if s.RecipientID == recipientID {
			delete(m.rows, ep)
			n++
		}
	}
	return n, nil
}

func TestNormalizeRecipients(t *testing.T) {
	assert.Equal(t, []string{"u1", "u2"}, NormalizeRecipients([]string{" u1", "", "u2", "u1 "}))
	assert.Empty(t, NormalizeRecipients([]string{" ", ""}))
}

func TestService_GetRejectsEmpty(t *testing.T) {
	svc := NewService(newMemRepo())

	_, err := svc.Get(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Get(context.Background(), []string{"  "})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestService_GetNoDevices(t *testing.T) {
	svc := NewService(newMemRepo())
	subs, err := svc.Get(context.Background(), []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestService_RegisterAndGet(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())

	_, err := svc.Register(ctx, "u1", "https://fcm.googleapis.com/fcm/send/aaa", "laptop")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "u1", "https://fcm.googleapis.com/fcm/send/bbb", "phone")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "u2", "https://fcm.googleapis.com/fcm/send/ccc", "")
	require.NoError(t, err)

	subs, err := svc.Get(ctx, []string{"u1", "u3"})
	require.NoError(t, err)
	require.Len(t, subs, 2)
	for _, s := range subs {
		assert.Equal(t, "u1", s.RecipientID)
	}
}

func TestService_RegisterMovesEndpoint(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewService(repo)

	_, err := svc.Register(ctx, "u1", "ep", "")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "u2", "ep", "")
	require.NoError(t, err)

	assert.Len(t, repo.rows, 1)
	assert.Equal(t, "u2", repo.rows["ep"].RecipientID)
}

func TestService_RegisterValidation(t *testing.T) {
	svc := NewService(newMemRepo())
	_, err := svc.Register(context.Background(), "u1", "  ", "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = svc.Register(context.Background(), "", "ep", "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestService_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewService(repo)
	_, err := svc.Register(ctx, "u1", "ep", "")
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, "u2", "ep"), "wrong owner is a no-op")
	assert.Len(t, repo.rows, 1)

	require.NoError(t, svc.Remove(ctx, "u1", "ep"))
	require.NoError(t, svc.Remove(ctx, "u1", "ep"))
	assert.Empty(t, repo.rows)
}

func TestService_UnregisterAll(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())
	for _, ep := range []string{"a", "b"} {
		_, err := svc.Register(ctx, "u1", ep, "")
		require.NoError(t, err)
	}
	n, err := svc.UnregisterAll(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestService_StoreFailure(t *testing.T) {
	repo := newMemRepo()
	repo.failErr = errors.New("connection refused")
	svc := NewService(repo)

	_, err := svc.Get(context.Background(), []string{"u1"})
	assert.ErrorIs(t, err, ErrStore)

	err = svc.Remove(context.Background(), "u1", "ep")
	assert.ErrorIs(t, err, ErrStore)
}
