// workers/player_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"game-session-system/models"
	"game-session-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetPlayerChangesResponse is the top-level structure of the profile sync
// service response.
type GetPlayerChangesResponse struct {
	Users []models.RemotePlayer `json:"users"`
}

// PlayerSyncWorker keeps the local Player mirror in step with the profile
// service, so registry lookups (creator ownership, join checks) never make
// a network call on the request path.
type PlayerSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client
}

func NewPlayerSyncWorker(db *gorm.DB, syncServiceBaseURL, endpointPath, serviceToken string) *PlayerSyncWorker {
	return &PlayerSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      syncServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   utils.HTTPClient,
	}
}

func (w *PlayerSyncWorker) Start(ctx context.Context) {
	log.Println("[SYNC] starting player sync worker (profile service -> players)")
	go w.run(ctx)
}

func (w *PlayerSyncWorker) run(ctx context.Context) {
	// Initial sync backfills from the beginning of time.
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("[SYNC] initial sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx, w.getLastSyncTime()); err != nil {
				log.Printf("[SYNC] sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("[SYNC] player sync worker stopped")
			return
		}
	}
}

// getLastSyncTime finds the most recent UpdatedAt from the local Player table.
func (w *PlayerSyncWorker) getLastSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM players WHERE deleted_at IS NULL").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

// syncBatch fetches player changes from the profile service and upserts the
// local Player mirror.
func (w *PlayerSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	sinceStr := since.UTC().Format(time.RFC3339)

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base sync service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", sinceStr)
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	req, err := http.NewRequestWithContext(ctx, "GET", finalURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request to sync service failed: %w", err)
	}
	defer func() {
		// Always drain & close to prevent connection leaks
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sync service non-200 response: %d — %s", resp.StatusCode, string(body))
	}

	var response GetPlayerChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode sync service response: %w", err)
	}

	if len(response.Users) == 0 {
		return nil
	}
	log.Printf("[SYNC] processing %d player change(s) since %s", len(response.Users), sinceStr)

	var upsertCount, errorCount int
	for _, remote := range response.Users {
		player := models.Player{
			ID:             uuid.NewString(),
			ExternalUserID: remote.ExternalID,
			Name:           utils.NormalizeDisplayName(remote.Username),
			AvatarURL:      remote.ProfilePictureURL,
			IsBanned:       remote.AccountStatus == "banned" || remote.AccountStatus == "suspended",
		}
		player.CreatedAt = remote.CreatedAt
		player.UpdatedAt = remote.UpdatedAt

		if err := w.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "avatar_url", "is_banned", "updated_at",
			}),
		}).Create(&player).Error; err != nil {
			errorCount++
			log.Printf("[SYNC] failed to upsert player (external_id=%q, name=%q): %v",
				remote.ExternalID, remote.Username, err)
		} else {
			upsertCount++
		}
	}

	log.Printf("[SYNC] sync batch done: %d upserted, %d failed", upsertCount, errorCount)
	return nil
}
