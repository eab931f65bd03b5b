package models

// GamePlayer is the membership row linking a Player to a GameSession.
// TurnOrder is the player's zero-based join position; join order is turn
// order, there is no skip or reorder support at this layer.
type GamePlayer struct {
	ID            string `gorm:"primaryKey;type:uuid" json:"id"`
	GameSessionID string `gorm:"not null;index;uniqueIndex:idx_session_player" json:"game_session_id"`
	PlayerID      string `gorm:"not null;uniqueIndex:idx_session_player" json:"player_id"`
	TurnOrder     int    `gorm:"not null;default:0" json:"turn_order"`

	Player Player `json:"player,omitempty" gorm:"foreignKey:PlayerID"`

	Timestamps
}
