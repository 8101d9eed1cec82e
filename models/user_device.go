package models

import "time"

// UserDevice is one push registration. Tokens are stored hashed; SNS keeps the
// raw token behind EndpointARN.
type UserDevice struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"uniqueIndex:idx_device_user_token;not null" json:"user_id"`
	TokenHash    string     `gorm:"uniqueIndex:idx_device_user_token;size:64" json:"-"`
	Platform     string     `gorm:"size:16" json:"platform"` // android|ios
	EndpointARN  string     `gorm:"size:256" json:"-"`
	Enabled      bool       `json:"enabled"`
	LastPushedAt *time.Time `json:"last_pushed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
