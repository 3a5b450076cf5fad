package store

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deptrack/deptrack/pkg/model"
)

const (
	defaultHistoryPageSize = 20
	maxHistoryPageSize     = 100
)

// HistoryStore provides append and read operations over sync history.
// Entries are immutable after creation; there is no update path.
type HistoryStore struct {
	db *gorm.DB
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// AutoMigrate creates or updates the sync_history_entries table.
func (s *HistoryStore) AutoMigrate() error {
	return s.db.AutoMigrate(&model.SyncHistoryEntry{})
}

// Append inserts one run record, assigning an ID when missing.
func (s *HistoryStore) Append(entry *model.SyncHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := s.db.Create(entry).Error; err != nil {
		return fmt.Errorf("append sync history: %w", err)
	}
	return nil
}

// Get retrieves one run record by ID. Returns nil, nil when it does not exist.
func (s *HistoryStore) Get(id string) (*model.SyncHistoryEntry, error) {
	var entry model.SyncHistoryEntry
	err := s.db.Where("id = ?", id).First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get sync history entry: %w", err)
	}
	return &entry, nil
}

// ListByTeam returns a page of a team's runs, newest first. pageToken is the
// opaque cursor from a previous page; pass "" for the first page. The second
// return value is the next-page token, empty on the last page.
func (s *HistoryStore) ListByTeam(teamID string, pageSize int, pageToken string) ([]model.SyncHistoryEntry, string, error) {
	if pageSize <= 0 {
		pageSize = defaultHistoryPageSize
	}
	if pageSize > maxHistoryPageSize {
		pageSize = maxHistoryPageSize
	}

	offset, err := decodePageToken(pageToken)
	if err != nil {
		return nil, "", err
	}

	var entries []model.SyncHistoryEntry
	err = s.db.Where("team_id = ?", teamID).
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize + 1).
		Find(&entries).Error
	if err != nil {
		return nil, "", fmt.Errorf("list sync history: %w", err)
	}

	nextToken := ""
	if len(entries) > pageSize {
		entries = entries[:pageSize]
		nextToken = encodePageToken(offset + pageSize)
	}
	return entries, nextToken, nil
}

func encodePageToken(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func decodePageToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return 0, fmt.Errorf("invalid page token: %w", err)
	}
	offset, err := strconv.Atoi(string(raw))
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("invalid page token %q", token)
	}
	return offset, nil
}
