package models

import (
	"time"
)

// Player is a local snapshot of profile-service users who can sit at a table.
// Owned and managed solely by the session service; populated via sync worker
// from the profile service. Registry lookups (creator ownership, join checks)
// never leave the process.
type Player struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string  `gorm:"uniqueIndex;not null" json:"external_user_id"` // profile service's user UUID
	Name           string  `gorm:"index;not null" json:"name"`
	AvatarURL      *string `json:"avatar_url,omitempty"`

	LastSeen *time.Time `json:"last_seen,omitempty"`
	IsBanned bool       `json:"is_banned" gorm:"default:false"` // local matchmaking ban

	Timestamps
}

// BelongsTo reports whether this player entity is owned by the given user.
func (p *Player) BelongsTo(externalUserID string) bool {
	return externalUserID != "" && p.ExternalUserID == externalUserID
}

// RemotePlayer matches the JSON shape returned by the profile sync service.
// Used only by the sync worker to refresh local Player mirrors.
type RemotePlayer struct {
	ID                string    `json:"id"`
	ExternalID        string    `json:"external_id"`
	Username          string    `json:"username"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	AccountStatus     string    `json:"account_status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
