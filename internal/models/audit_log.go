package models

import "time"

// AuditLog is an append-only record of security-relevant events: logins,
// refreshes, revocations and suspected token theft.
type AuditLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	EventID        string    `gorm:"size:36;uniqueIndex" json:"event_id"`
	UserID         *uint     `gorm:"index" json:"user_id"`
	OrganizationID *uint     `gorm:"index" json:"organization_id"`
	Action         string    `gorm:"size:100;index;not null" json:"action"`
	ResourceType   string    `gorm:"size:50" json:"resource_type,omitempty"`
	ResourceID     *uint     `json:"resource_id,omitempty"`
	Details        string    `gorm:"size:1000" json:"details,omitempty"`
	IPAddress      string    `gorm:"size:45" json:"ip_address,omitempty"`
	UserAgent      string    `gorm:"size:500" json:"user_agent,omitempty"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
