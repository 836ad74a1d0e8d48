package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const userColumns = "id, email, hashed_password, full_name, role, created_at"

func scanUser(row *sql.Row) (User, error) {
	var u User
	var id string
	err := row.Scan(&id, &u.Email, &u.HashedPassword, &u.FullName, &u.Role, &u.CreatedAt)
	if err != nil {
		return User{}, err
	}
	u.ID, err = uuid.Parse(id)
	return u, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", email)
	return scanUser(row)
}

type CreateUserParams struct {
	Email          string
	HashedPassword string
	FullName       string
	Role           string
}

func (s *Store) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	u := User{
		ID:             uuid.New(),
		Email:          arg.Email,
		HashedPassword: arg.HashedPassword,
		FullName:       arg.FullName,
		Role:           arg.Role,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, hashed_password, full_name, role, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		u.ID.String(), u.Email, u.HashedPassword, u.FullName, u.Role, u.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}
