package models

import "time"

// AccessToken stores only the SHA-256 hash of a short-lived opaque access
// token. The plaintext exists solely in the login/refresh response.
type AccessToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (AccessToken) TableName() string { return "access_tokens" }
