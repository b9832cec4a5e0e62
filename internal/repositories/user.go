package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/catalogd/internal/models"
	"github.com/desertthunder/catalogd/internal/shared"
)

// UserRepository persists [models.User] records.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user with a generated ID
func (r *UserRepository) Create(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	user.ID = shared.GenerateID()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = models.NewUser(user.Handle).CreatedAt
	}

	_, err := r.db.Exec("INSERT INTO users (id, handle, created_at) VALUES (?, ?, ?)", user.ID, user.Handle, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Get retrieves a user by ID
func (r *UserRepository) Get(id string) (*models.User, error) {
	row := r.db.QueryRow("SELECT id, handle, created_at FROM users WHERE id = ?", id)
	return r.scanOne(row, "user "+id)
}

// GetByHandle retrieves a user by handle
func (r *UserRepository) GetByHandle(handle string) (*models.User, error) {
	row := r.db.QueryRow("SELECT id, handle, created_at FROM users WHERE handle = ?", handle)
	return r.scanOne(row, "user @"+handle)
}

// Delete removes a user and, by cascade, their notifications
func (r *UserRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectAffected(result, "user "+id)
}

// List retrieves all users ordered by creation time
func (r *UserRepository) List() ([]*models.User, error) {
	rows, err := r.db.Query("SELECT id, handle, created_at FROM users ORDER BY created_at ASC, handle ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Handle, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return users, nil
}

func (r *UserRepository) scanOne(row *sql.Row, what string) (*models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Handle, &user.CreatedAt); err != nil {
		return nil, notFound(err, what)
	}
	return &user, nil
}
