package services

import (
	"log"

	"game-session-system/models"
	"game-session-system/utils"
)

// ArchiveService writes the final transport-shaped snapshot of a finished
// session to R2. Best effort: archival failure never blocks or reverts the
// finish transition.
type ArchiveService struct {
	Enabled bool
}

func NewArchiveService(enabled bool) *ArchiveService {
	return &ArchiveService{Enabled: enabled}
}

func (a *ArchiveService) ArchiveSession(gs *models.GameSession) {
	if a == nil || !a.Enabled || !utils.R2Enabled() {
		return
	}
	go func(snapshot SessionResponse) {
		key := "sessions/archive/" + snapshot.ID + ".json"
		url, err := utils.UploadJSONToR2(key, snapshot)
		if err != nil {
			log.Printf("[ARCHIVE] failed to archive session %s: %v", snapshot.ID, err)
			return
		}
		log.Printf("[ARCHIVE] archived session %s to %s", snapshot.ID, url)
	}(serializeSession(gs))
}
