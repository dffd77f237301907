package models

import "time"

// AuthToken is a persisted API bearer token record.
// Tokens are stored as ciphertext only, see the tokenstore database backend.
type AuthToken struct {
	// ID is the unique identifier for the record.
	ID uint64 `gorm:"primaryKey"`
	// Key scopes the token, usually to a web session ID.
	Key string `gorm:"unique;size:128;not null"`
	// Ciphertext is the encrypted bearer token.
	Ciphertext []byte `gorm:"type:blob"`
	// CreatedAt is the timestamp when the record was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the record was last updated (managed by GORM).
	UpdatedAt time.Time
}
