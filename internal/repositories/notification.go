package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/catalogd/internal/models"
	"github.com/desertthunder/catalogd/internal/shared"
)

// NotificationRepository persists [models.Notification] records.
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository creates a new [NotificationRepository] with the given database connection
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Append stores n in its user's inbox with a generated ID.
func (r *NotificationRepository) Append(n *models.Notification) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	var data sql.NullString
	if len(n.Data) > 0 {
		encoded, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("failed to encode notification data: %w", err)
		}
		data = sql.NullString{String: string(encoded), Valid: true}
	}

	n.ID = shared.GenerateID()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO notifications (id, user_id, kind, title, body, data, read_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, n.ID, n.UserID, string(n.Kind), n.Title, n.Body, data, n.ReadAt, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListForUser returns a user's notifications, newest first.
//
// When unreadOnly is set, notifications already marked read are skipped.
func (r *NotificationRepository) ListForUser(userID string, unreadOnly bool) ([]*models.Notification, error) {
	query := `
		SELECT id, user_id, kind, title, body, data, read_at, created_at
		FROM notifications
		WHERE user_id = ?
	`
	if unreadOnly {
		query += " AND read_at IS NULL"
	}
	query += " ORDER BY created_at DESC, id ASC"

	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return notifications, nil
}

// MarkRead stamps a notification as read. Marking an already read notification keeps the first timestamp.
func (r *NotificationRepository) MarkRead(id string) error {
	result, err := r.db.Exec(
		"UPDATE notifications SET read_at = COALESCE(read_at, ?) WHERE id = ?",
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return expectAffected(result, "notification "+id)
}

func (r *NotificationRepository) scanRow(rows *sql.Rows) (*models.Notification, error) {
	var (
		n      models.Notification
		kind   string
		data   sql.NullString
		readAt sql.NullTime
	)
	if err := rows.Scan(&n.ID, &n.UserID, &kind, &n.Title, &n.Body, &data, &readAt, &n.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}

	n.Kind = models.NotificationKind(kind)
	if readAt.Valid {
		n.ReadAt = &readAt.Time
	}
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &n.Data); err != nil {
			return nil, fmt.Errorf("failed to decode notification data: %w", err)
		}
	}
	return &n, nil
}
