package models

import "time"

// User is an identity-provider principal. Password hashes never leave the
// store layer; the struct carries them only between store and auth.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// APIKey is an opaque producer credential. Only the sha256 hash is stored;
// the plaintext (prefix "agentflow_") is returned exactly once at creation.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}
