package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/purrfectbrew/purrfect-brew/internal/models"
	"gorm.io/gorm"
)

// HistoryStore persists and replays a session's message log. Persistence is
// best-effort: callers log failures and keep the conversation going.
type HistoryStore struct {
	db *gorm.DB
}

// NewHistoryStore creates a history store backed by the given database
func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// SaveMessage appends the visitor's message and, when pairedResponse is
// non-empty, the assistant's reply, then refreshes the session's
// updated-timestamp. All rows carry versioned metadata.
func (s *HistoryStore) SaveMessage(ctx context.Context, sessionID uint, text string, isUser bool, pairedResponse string) error {
	now := time.Now()

	metadata, err := encodeMetadata(now)
	if err != nil {
		return err
	}

	rows := []models.ChatMessage{{
		SessionID: sessionID,
		Message:   text,
		IsUser:    isUser,
		Metadata:  metadata,
	}}
	if isUser && pairedResponse != "" {
		responseMetadata, err := encodeMetadata(now)
		if err != nil {
			return err
		}
		rows = append(rows, models.ChatMessage{
			SessionID: sessionID,
			Message:   pairedResponse,
			IsUser:    false,
			Metadata:  responseMetadata,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Create rows one at a time so each gets its own auto-increment id;
		// LoadHistory uses the id as the insertion-order tiebreaker.
		for i := range rows {
			if err := tx.Create(&rows[i]).Error; err != nil {
				return fmt.Errorf("failed to save chat message: %w", err)
			}
		}
		if err := tx.Model(&models.ChatSession{}).
			Where("id = ?", sessionID).
			Update("updated_at", now).Error; err != nil {
			return fmt.Errorf("failed to touch chat session: %w", err)
		}
		return nil
	})
}

// LoadHistory returns all messages for the session in insertion order. A
// session with no history yields an empty slice, not an error; the caller
// shows the welcome message instead.
func (s *HistoryStore) LoadHistory(ctx context.Context, sessionID uint) ([]models.ChatMessage, error) {
	messages := []models.ChatMessage{}
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	return messages, nil
}
