package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/miktsoan/core/internal/domain"
)

// SnapshotStore persists the durable state blob. It is a narrow view of the
// document store: one named blob, written on every mutation of the persisted
// subset and read once at startup.
type SnapshotStore interface {
	Save(ctx context.Context, blob []byte) error
	Load(ctx context.Context) ([]byte, error)
}

// snapshot is the persisted subset of the container state. Location is
// deliberately excluded: it is re-acquired from the device on startup.
type snapshot struct {
	Session  *domain.UserProfile   `json:"session"`
	Language domain.Language       `json:"language"`
	History  []domain.HistoryEvent `json:"history"`
}

func encodeSnapshot(session *domain.UserProfile, language domain.Language, history []domain.HistoryEvent) ([]byte, error) {
	snap := snapshot{Session: session, Language: language, History: history}
	blob, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return blob, nil
}

// Rehydrate restores the persisted subset from the snapshot store. A missing
// or corrupt snapshot resets to defaults instead of failing the process. The
// language change notification fires exactly once so the presentation layer
// re-applies text direction.
func (c *Container) Rehydrate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = nil
	c.language = domain.DefaultLanguage
	c.history = nil

	if c.store != nil {
		blob, err := c.store.Load(ctx)
		if err != nil {
			slog.Warn("Failed to load state snapshot, starting from defaults", "error", err)
		} else if len(blob) > 0 {
			var snap snapshot
			if err := json.Unmarshal(blob, &snap); err != nil {
				slog.Warn("State snapshot is corrupt, starting from defaults", "error", err)
			} else {
				c.session = snap.Session
				if snap.Language != "" {
					c.language = snap.Language
				}
				c.history = snap.History
			}
		}
	}

	c.notifyLocked(Event{Region: RegionLanguage, Language: c.language})
}
