package models

import (
	"strings"
	"time"
)

// User is a catalog user.
type User struct {
	ID        string
	Handle    string
	CreatedAt time.Time
}

// NewUser creates a [User] for handle stamped with the current time.
func NewUser(handle string) *User {
	return &User{Handle: handle, CreatedAt: time.Now().UTC()}
}

// Validate checks that the handle is present and contains no whitespace.
func (u *User) Validate() error {
	if err := required("handle", u.Handle); err != nil {
		return err
	}
	if strings.ContainsAny(u.Handle, " \t\n") {
		return &FieldError{Field: "handle", Reason: "must not contain whitespace"}
	}
	return nil
}

// NotificationKind classifies a notification.
type NotificationKind string

const (
	NotificationImportCompleted NotificationKind = "import_completed"
	NotificationImportFailed    NotificationKind = "import_failed"
	NotificationNewRelease      NotificationKind = "new_release"
)

// Notification is one entry in a user's inbox.
type Notification struct {
	ID        string
	UserID    string
	Kind      NotificationKind
	Title     string
	Body      string
	Data      map[string]any
	ReadAt    *time.Time
	CreatedAt time.Time
}

// NewNotification creates an unread [Notification] for userID.
func NewNotification(userID string, kind NotificationKind, title string) *Notification {
	return &Notification{
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks the notification's required fields.
func (n *Notification) Validate() error {
	if err := required("user_id", n.UserID); err != nil {
		return err
	}
	if err := required("kind", string(n.Kind)); err != nil {
		return err
	}
	return required("title", n.Title)
}

// IsRead reports whether the notification was marked read.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
