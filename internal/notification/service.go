package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"notify-service/internal/push"
)

type Service interface {
	List(ctx context.Context, userID string, limit int64) ([]Notification, error)
	MarkRead(ctx context.Context, userID, notifID string) error
	// RecordBatch stores one inbox entry per recipient that had at least one
	// device in the batch.
	RecordBatch(ctx context.Context, s *push.Summary) error
}

type service struct{ repo Repository }

func NewService(r Repository) Service { return &service{repo: r} }

func (s *service) List(ctx context.Context, userID string, limit int64) ([]Notification, error) {
	return s.repo.List(ctx, userID, limit)
}

func (s *service) MarkRead(ctx context.Context, userID, notifID string) error {
	return s.repo.MarkRead(ctx, userID, notifID)
}

func (s *service) RecordBatch(ctx context.Context, sum *push.Summary) error {
	delivered := map[string]bool{}
	var order []string
	for _, r := range sum.Results {
		if _, seen := delivered[r.RecipientID]; !seen {
			order = append(order, r.RecipientID)
		}
		delivered[r.RecipientID] = delivered[r.RecipientID] || r.Success
	}

	kind := KindGeneral
	if t, ok := sum.Data["type"].(string); ok {
		kind = ParseKind(t)
	}

	var errs []error
	for _, uid := range order {
		n := Notification{
			ID:        uuid.NewString(),
			UserID:    uid,
			BatchID:   sum.BatchID,
			Kind:      kind,
			Title:     sum.Title,
			Body:      sum.Body,
			Meta:      sum.Data,
			Delivered: delivered[uid],
			CreatedAt: sum.CompletedAt,
		}
		if err := s.repo.Push(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("inbox %s: %w", uid, err))
		}
	}
	return errors.Join(errs...)
}
