package ingest

import (
	"fmt"

	"github.com/desertthunder/catalogd/internal/catalog"
	"github.com/desertthunder/catalogd/internal/models"
)

// Notify appends an import summary to every user's inbox and returns how many notifications were written.
func Notify(db *catalog.Database, result *catalog.ImportResult) (int, error) {
	upserted, deleted := result.Totals()
	return broadcast(db, func(userID string) *models.Notification {
		n := models.NewNotification(userID, models.NotificationImportCompleted, "Catalog updated")
		n.Body = fmt.Sprintf("%d entities updated, %d removed", upserted, deleted)
		n.Data = map[string]any{
			"batch_id": result.BatchID,
			"upserted": upserted,
			"deleted":  deleted,
		}
		return n
	})
}

// NotifyFailure tells every user that an import was rolled back. Batches committed earlier in the same sync
// are listed so readers know what did land.
func NotifyFailure(db *catalog.Database, cause error, committed []string) (int, error) {
	return broadcast(db, func(userID string) *models.Notification {
		n := models.NewNotification(userID, models.NotificationImportFailed, "Catalog import failed")
		n.Body = cause.Error()
		if len(committed) > 0 {
			n.Data = map[string]any{"committed_batches": committed}
		}
		return n
	})
}

func broadcast(db *catalog.Database, build func(userID string) *models.Notification) (int, error) {
	users, err := db.Users().List()
	if err != nil {
		return 0, err
	}

	notifications := db.Notifications()
	for i, user := range users {
		if err := notifications.Append(build(user.ID)); err != nil {
			return i, err
		}
	}
	return len(users), nil
}
