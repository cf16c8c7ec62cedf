package subscription

import (
	"context"

	"github.com/lib/pq"
	"gorm.io/gorm/clause"

	"notify-service/internal/shared/db"
)

type Repository interface {
	ListByRecipients(ctx context.Context, recipientIDs []string) ([]Subscription, error)
	Upsert(ctx context.Context, s *Subscription) error
	// Remove deletes the row matching both values exactly. Removing an
	// absent row is not an error; the bool reports whether a row went away.
	Remove(ctx context.Context, recipientID, endpoint string) (bool, error)
	RemoveAll(ctx context.Context, recipientID string) (int64, error)
}

type repo struct{ store *db.Store }

func NewRepository(s *db.Store) Repository { return &repo{store: s} }

func (r *repo) ListByRecipients(ctx context.Context, recipientIDs []string) ([]Subscription, error) {
	var out []Subscription
	err := r.store.Base.WithContext(ctx).
		Where("recipient_id = ANY(?)", pq.Array(recipientIDs)).
		Order("recipient_id, id").
		Find(&out).Error
	return out, err
}

func (r *repo) Upsert(ctx context.Context, s *Subscription) error {
	return r.store.Base.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"recipient_id", "device_info", "updated_at"}),
		},
	).Create(s).Error
}

func (r *repo) Remove(ctx context.Context, recipientID, endpoint string) (bool, error) {
	res := r.store.Base.WithContext(ctx).
		Where("recipient_id = ? AND endpoint = ?", recipientID, endpoint).
		Delete(&Subscription{})
	return res.RowsAffected > 0, res.Error
}

func (r *repo) RemoveAll(ctx context.Context, recipientID string) (int64, error) {
	res := r.store.Base.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Delete(&Subscription{})
	return res.RowsAffected, res.Error
}
