package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"notify-service/internal/shared/logging"
)

var (
	// ErrInvalidRequest reports caller input that leaves nothing to do.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrStore reports that the subscription store could not be reached.
	ErrStore = errors.New("subscription store unavailable")
)

const maxEndpointLen = 2048

type Service interface {
	// Get returns every subscription owned by the given recipients.
	// Recipients without devices simply contribute no rows.
	Get(ctx context.Context, recipientIDs []string) ([]Subscription, error)
	Register(ctx context.Context, recipientID, endpoint, deviceInfo string) (*Subscription, error)
	Unregister(ctx context.Context, recipientID, endpoint string) error
	UnregisterAll(ctx context.Context, recipientID string) (int64, error)
	// Remove is the stale-subscription reconciler: an idempotent delete of
	// the exact (recipient, endpoint) pair.
	Remove(ctx context.Context, recipientID, endpoint string) error
}

type service struct{ repo Repository }

func NewService(r Repository) Service { return &service{repo: r} }

// NormalizeRecipients trims, drops blanks and removes duplicates while
// keeping first-seen order.
func NormalizeRecipients(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *service) Get(ctx context.Context, recipientIDs []string) ([]Subscription, error) {
	ids := NormalizeRecipients(recipientIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: recipient_ids is empty", ErrInvalidRequest)
	}
	subs, err := s.repo.ListByRecipients(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return subs, nil
}

func (s *service) Register(ctx context.Context, recipientID, endpoint, deviceInfo string) (*Subscription, error) {
	endpoint = strings.TrimSpace(endpoint)
	if recipientID == "" || endpoint == "" {
		return nil, fmt.Errorf("%w: recipient and endpoint are required", ErrInvalidRequest)
	}
	if len(endpoint) > maxEndpointLen {
		return nil, fmt.Errorf("%w: endpoint too long", ErrInvalidRequest)
	}
	sub := &Subscription{
		RecipientID: recipientID,
		Endpoint:    endpoint,
		DeviceInfo:  deviceInfo,
	}
	if err := s.repo.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return sub, nil
}

func (s *service) Unregister(ctx context.Context, recipientID, endpoint string) error {
	if recipientID == "" || strings.TrimSpace(endpoint) == "" {
		return fmt.Errorf("%w: recipient and endpoint are required", ErrInvalidRequest)
	}
	return s.Remove(ctx, recipientID, strings.TrimSpace(endpoint))
}

func (s *service) UnregisterAll(ctx context.Context, recipientID string) (int64, error) {
	if recipientID == "" {
		return 0, fmt.Errorf("%w: recipient is required", ErrInvalidRequest)
	}
	n, err := s.repo.RemoveAll(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return n, nil
}

func (s *service) Remove(ctx context.Context, recipientID, endpoint string) error {
	removed, err := s.repo.Remove(ctx, recipientID, endpoint)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	lg := logging.Component("subscription")
	lg.Debug().
		Str("recipient_id", recipientID).
		Str("endpoint", logging.Truncate(endpoint, 48)).
		Bool("removed", removed).
		Msg("subscription remove")
	return nil
}
