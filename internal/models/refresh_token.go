package models

import "time"

// RefreshToken stores the hash of a long-lived opaque refresh token.
// Rotation revokes the old row and links it to its replacement; FamilyID ties
// every rotation of one login session together so reuse detection can revoke
// the whole lineage. Revoked rows are kept until natural expiry — deleting
// them would blind the reuse detector.
type RefreshToken struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            uint       `gorm:"index;not null" json:"user_id"`
	TokenHash         string     `gorm:"uniqueIndex;size:64;not null" json:"-"`
	FamilyID          string     `gorm:"size:36;index;not null" json:"-"`
	ExpiresAt         time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt         *time.Time `gorm:"index" json:"revoked_at,omitempty"`
	ReplacedByTokenID *uint      `gorm:"index" json:"replaced_by_token_id,omitempty"`
	CreatedByIP       string     `gorm:"size:64" json:"created_by_ip,omitempty"`
	UserAgent         string     `gorm:"size:255" json:"user_agent,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

// Expired reports whether the token's lifetime has elapsed at the given time.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Revoked reports whether the token has been consumed by rotation, logout or
// a revoke-all sweep.
func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}
