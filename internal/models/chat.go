package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ChatSession identifies one visitor's conversation across page reloads.
// The session token is the client-persisted identifier; UserID is set only
// when the visitor is signed in.
type ChatSession struct {
	gorm.Model
	SessionToken string  `gorm:"uniqueIndex:idx_chat_sessions_token_not_deleted,where:deleted_at IS NULL;not null"`
	UserID       *string `gorm:"index"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// ChatMessage is one immutable entry in a session's message log. Metadata is
// a versioned JSON document (see internal/chat metadata schema).
type ChatMessage struct {
	gorm.Model
	SessionID uint           `gorm:"not null;index"`
	Session   ChatSession    `gorm:"constraint:OnDelete:CASCADE;"`
	Message   string         `gorm:"type:text;not null"`
	IsUser    bool           `gorm:"not null"`
	Metadata  datatypes.JSON `gorm:"type:jsonb"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
