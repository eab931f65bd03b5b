package models

import (
	"fmt"
)

// SessionStatus is the lifecycle status of a game session.
type SessionStatus string

const (
	StatusWaiting  SessionStatus = "waiting"  // Enrolling players, not yet started
	StatusActive   SessionStatus = "active"   // In play, turns advancing
	StatusFinished SessionStatus = "finished" // Play ended; may be requeued for a rematch
)

// ValidTransitions defines the allowed status transitions. finished→waiting
// exists so a session can be requeued for a rematch; there is no terminal state.
var ValidTransitions = map[SessionStatus][]SessionStatus{
	StatusWaiting:  {StatusActive},
	StatusActive:   {StatusFinished},
	StatusFinished: {StatusWaiting},
}

// Valid reports whether s is one of the known statuses.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusActive, StatusFinished:
		return true
	}
	return false
}

func (s SessionStatus) String() string {
	return string(s)
}

// CanTransitionTo checks whether moving from s to target is allowed.
func (s SessionStatus) CanTransitionTo(target SessionStatus) bool {
	for _, t := range ValidTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// GameType identifies which game a session hosts. The session service never
// interprets game rules; the type only scopes the state payload.
type GameType string

const (
	GameTypeTicTacToe   GameType = "tictactoe"
	GameTypeConnectFour GameType = "connect_four"
)

// Valid reports whether g is a supported game type.
func (g GameType) Valid() bool {
	switch g {
	case GameTypeTicTacToe, GameTypeConnectFour:
		return true
	}
	return false
}

// GameSession represents a single instance of a game with its players and
// current state, from waiting for players to join, through active gameplay
// with turn management, to completion.
type GameSession struct {
	ID       string `json:"id" gorm:"primaryKey"`
	Name     string `json:"name"`
	JoinCode string `json:"join_code" gorm:"uniqueIndex"`

	Status   SessionStatus `json:"status" gorm:"type:varchar(16);default:'waiting'"`
	GameType GameType      `json:"game_type" gorm:"type:varchar(32);not null"`

	MinPlayers int `json:"min_players" gorm:"default:2"`
	MaxPlayers int `json:"max_players" gorm:"default:2"`

	CreatorID string `json:"creator_id" gorm:"not null;index"`

	// CurrentPlayerIndex is meaningful only while active: it points into the
	// join-ordered player list. The value is mirrored into
	// State["current_player_index"] on every change so game servers reading
	// only the payload stay in step.
	CurrentPlayerIndex int      `json:"current_player_index" gorm:"default:0"`
	State              StateMap `json:"state" gorm:"type:jsonb"`

	// Revision backs the optimistic concurrency check: every mutating
	// operation re-checks and bumps it in the same UPDATE.
	Revision int64 `json:"-" gorm:"default:0"`

	// Relationships
	Creator Player       `json:"-" gorm:"foreignKey:CreatorID"`
	Players []GamePlayer `json:"-" gorm:"foreignKey:GameSessionID"`

	Timestamps
}

// FieldError is a single recoverable validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// SetDefaults fills zero-valued fields before validation:
// status=waiting, min=2, max=2, state={}.
func (gs *GameSession) SetDefaults() {
	if gs.Status == "" {
		gs.Status = StatusWaiting
	}
	if gs.MinPlayers == 0 {
		gs.MinPlayers = 2
	}
	if gs.MaxPlayers == 0 {
		gs.MaxPlayers = 2
	}
	if gs.State == nil {
		gs.State = StateMap{}
	}
}

// Validate checks the session against its invariants given the previously
// persisted status. It is a pure check run before every save; creator
// ownership is validated separately against the player registry.
//
// prev == Status (including a fresh record saved as waiting) is always
// allowed; any other pair must appear in ValidTransitions.
func (gs *GameSession) Validate(prev SessionStatus) []FieldError {
	var errs []FieldError

	if gs.Status == "" {
		errs = append(errs, FieldError{"status", "can't be blank"})
	} else if !gs.Status.Valid() {
		errs = append(errs, FieldError{"status", fmt.Sprintf("%q is not a valid status", gs.Status)})
	}
	if gs.GameType == "" {
		errs = append(errs, FieldError{"game_type", "can't be blank"})
	} else if !gs.GameType.Valid() {
		errs = append(errs, FieldError{"game_type", fmt.Sprintf("%q is not a valid game type", gs.GameType)})
	}
	if gs.MinPlayers <= 0 {
		errs = append(errs, FieldError{"min_players", "must be greater than 0"})
	}
	if gs.MaxPlayers <= 0 {
		errs = append(errs, FieldError{"max_players", "must be greater than 0"})
	}
	if gs.MinPlayers > 0 && gs.MaxPlayers > 0 && gs.MaxPlayers < gs.MinPlayers {
		errs = append(errs, FieldError{"max_players", "must be greater than or equal to min_players"})
	}
	if gs.CreatorID == "" {
		errs = append(errs, FieldError{"creator_id", "can't be blank"})
	}

	if gs.Status.Valid() && prev != gs.Status {
		if !prev.CanTransitionTo(gs.Status) {
			errs = append(errs, FieldError{"status", fmt.Sprintf("cannot transition from %s to %s", prev, gs.Status)})
		}
		if gs.Status == StatusActive {
			joined := len(gs.Players)
			if joined < gs.MinPlayers || joined > gs.MaxPlayers {
				errs = append(errs, FieldError{"players", fmt.Sprintf("joined player count %d outside [%d, %d]", joined, gs.MinPlayers, gs.MaxPlayers)})
			}
		}
	}

	if gs.Status == StatusActive && len(gs.Players) > 0 {
		if gs.CurrentPlayerIndex < 0 || gs.CurrentPlayerIndex >= len(gs.Players) {
			errs = append(errs, FieldError{"current_player_index", fmt.Sprintf("%d is out of range for %d players", gs.CurrentPlayerIndex, len(gs.Players))})
		}
	}

	return errs
}

// Waiting reports whether the session is still enrolling players.
func (gs *GameSession) Waiting() bool { return gs.Status == StatusWaiting }

// Active reports whether the session is in play.
func (gs *GameSession) Active() bool { return gs.Status == StatusActive }

// Finished reports whether play has ended.
func (gs *GameSession) Finished() bool { return gs.Status == StatusFinished }
