package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opencontrib/mentionbridge/internal/models"
)

// Compile-time check that InMemoryLedger implements Ledger.
var _ Ledger = (*InMemoryLedger)(nil)

// InMemoryLedger is a simple in-memory ledger used in tests and as a
// stand-in when no database is configured.
type InMemoryLedger struct {
	mu       sync.RWMutex
	mentions []models.Mention
	logs     []models.MentionLog
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{}
}

func (s *InMemoryLedger) IsProcessed(itemID string, platform models.Platform) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.mentions {
		if m.ItemID == itemID && m.Platform == platform {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryLedger) LastProcessedTimestamp(platform models.Platform) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max int64
	found := false
	for _, m := range s.mentions {
		if m.Platform != platform {
			continue
		}
		if !found || m.RawData.Timestamp > max {
			max = m.RawData.Timestamp
		}
		found = true
	}
	return max, found, nil
}

func (s *InMemoryLedger) MarkProcessed(itemID string, platform models.Platform, suggester string, raw models.RawData) (models.Mention, error) {
	m := models.Mention{
		ItemID:      itemID,
		Platform:    platform,
		ProcessedAt: time.Now().UTC(),
		Suggester:   suggester,
		RawData:     raw,
	}
	if err := m.Validate(); err != nil {
		return models.Mention{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.mentions {
		if existing.ItemID == itemID && existing.Platform == platform {
			return models.Mention{}, fmt.Errorf("%s/%s: %w", platform, itemID, models.ErrAlreadyProcessed)
		}
	}
	s.mentions = append(s.mentions, m)
	return m, nil
}

func (s *InMemoryLedger) MessageFromURL(url string) (models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.mentions {
		if m.RawData.SuggestionURL == url || m.RawData.ContributionURL == url {
			return models.MessageFromMention(m), nil
		}
	}
	return models.FailedMessage(fmt.Sprintf("Message not found for URL: %s", url)), nil
}

func (s *InMemoryLedger) LogAction(platform models.Platform, action, details string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, models.MentionLog{
		ID:        uuid.NewString(),
		Platform:  platform,
		Timestamp: time.Now().UTC(),
		Action:    action,
		Details:   details,
	})
	return nil
}

func (s *InMemoryLedger) RecentLogs(limit int) ([]models.MentionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logs := make([]models.MentionLog, len(s.logs))
	copy(logs, s.logs)
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.After(logs[j].Timestamp)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (s *InMemoryLedger) Close() error {
	return nil
}
