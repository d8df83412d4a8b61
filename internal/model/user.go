package model

import "time"

// User links a Keycloak account to the employer sites it may act on.
type User struct {
	ID         int64     `json:"id"`         // users.id
	KeycloakID string    `json:"keycloakId"` // users.keycloak_id
	Email      string    `json:"email"`      // users.email
	Username   string    `json:"username"`   // users.username
	Sites      []int64   `json:"sites"`      // user_sites.site_id
	CreatedAt  time.Time `json:"createdAt"`  // users.created_at
	UpdatedAt  time.Time `json:"updatedAt"`  // users.updated_at
}
