package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/hcap-portal/internal/model"
)

// UserRepo links Keycloak accounts to the employer sites they may act on.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// GetByKeycloakID returns the user with its sites, or ErrNotFound.
func (r *UserRepo) GetByKeycloakID(ctx context.Context, keycloakID string) (*model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,keycloak_id,email,username,created_at,updated_at FROM users WHERE keycloak_id=? LIMIT 1",
		keycloakID).Scan(&u.ID, &u.KeycloakID, &u.Email, &u.Username, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", keycloakID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if u.Sites, err = r.sites(ctx, u.ID); err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns every user with its sites.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT id,keycloak_id,email,username,created_at,updated_at FROM users ORDER BY email")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.KeycloakID, &u.Email, &u.Username, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Sites, err = r.sites(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Upsert stores the account details of keycloakID and replaces its sites.
func (r *UserRepo) Upsert(ctx context.Context, keycloakID, email, username string, sites []int64) (u *model.User, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	email = strings.ToLower(strings.TrimSpace(email))
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO users (keycloak_id, email, username) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE email = VALUES(email), username = VALUES(username)`,
		keycloakID, email, username); err != nil {
		return nil, err
	}
	var id int64
	if err = tx.QueryRowContext(ctx, "SELECT id FROM users WHERE keycloak_id=?", keycloakID).Scan(&id); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM user_sites WHERE user_id=?", id); err != nil {
		return nil, err
	}
	for _, s := range sites {
		if _, err = tx.ExecContext(ctx, "INSERT INTO user_sites (user_id, site_id) VALUES (?, ?)", id, s); err != nil {
			return nil, err
		}
	}
	return &model.User{ID: id, KeycloakID: keycloakID, Email: email, Username: username, Sites: sites}, nil
}

// MigrateByEmail re-keys the user row registered under email to a new
// Keycloak id.  It returns ErrNotFound when no row matches.
func (r *UserRepo) MigrateByEmail(ctx context.Context, email, keycloakID string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("user without email: %w", ErrNotFound)
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET keycloak_id=? WHERE email=? AND keycloak_id<>? LIMIT 1", keycloakID, email, keycloakID)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	return r.GetByKeycloakID(ctx, keycloakID)
}

func (r *UserRepo) sites(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx, "SELECT site_id FROM user_sites WHERE user_id=? ORDER BY site_id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
