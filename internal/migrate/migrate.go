package migrate

import (
	"notify-service/internal/shared/db"
	"notify-service/internal/subscription"
)

func AutoMigrateAll(store *db.Store) error {
	return store.Base.AutoMigrate(&subscription.Subscription{})
}
