package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/purrfectbrew/purrfect-brew/internal/models"
)

func TestSaveMessagePairsUserAndResponse(t *testing.T) {
	db := newTestDB(t)
	store := NewHistoryStore(db)
	ctx := context.Background()

	session := models.ChatSession{SessionToken: "anon_test_1"}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	err := store.SaveMessage(ctx, session.ID, "Do you have oat milk?", true, "We do! Oat, almond, and soy.")
	if err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}

	messages, err := store.LoadHistory(ctx, session.ID)
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if !messages[0].IsUser || messages[0].Message != "Do you have oat milk?" {
		t.Errorf("unexpected first message: %+v", messages[0])
	}
	if messages[1].IsUser || messages[1].Message != "We do! Oat, almond, and soy." {
		t.Errorf("unexpected second message: %+v", messages[1])
	}

	for i, msg := range messages {
		var meta MessageMetadata
		if err := json.Unmarshal(msg.Metadata, &meta); err != nil {
			t.Fatalf("message %d metadata is not valid JSON: %v", i, err)
		}
		if meta.SchemaVersion != MetadataSchemaVersion {
			t.Errorf("message %d: expected schema version %d, got %d", i, MetadataSchemaVersion, meta.SchemaVersion)
		}
		if meta.Timestamp.IsZero() {
			t.Errorf("message %d: metadata timestamp is zero", i)
		}
	}
}

func TestSaveMessageSingleRow(t *testing.T) {
	db := newTestDB(t)
	store := NewHistoryStore(db)
	ctx := context.Background()

	session := models.ChatSession{SessionToken: "anon_test_2"}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	if err := store.SaveMessage(ctx, session.ID, "Welcome to Purrfect Brew!", false, ""); err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}

	messages, err := store.LoadHistory(ctx, session.ID)
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].IsUser {
		t.Error("expected an assistant message")
	}
}

func TestSaveMessageTouchesSession(t *testing.T) {
	db := newTestDB(t)
	store := NewHistoryStore(db)
	ctx := context.Background()

	session := models.ChatSession{SessionToken: "anon_test_3"}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	// Backdate the session so the touch is observable.
	stale := time.Now().Add(-time.Hour)
	if err := db.Model(&models.ChatSession{}).Where("id = ?", session.ID).Update("updated_at", stale).Error; err != nil {
		t.Fatalf("failed to backdate session: %v", err)
	}

	if err := store.SaveMessage(ctx, session.ID, "hello", true, "hi there"); err != nil {
		t.Fatalf("SaveMessage failed: %v", err)
	}

	var refreshed models.ChatSession
	if err := db.First(&refreshed, session.ID).Error; err != nil {
		t.Fatalf("failed to reload session: %v", err)
	}
	if !refreshed.UpdatedAt.After(stale.Add(30 * time.Minute)) {
		t.Errorf("expected updated_at to be refreshed, got %v", refreshed.UpdatedAt)
	}
}

func TestLoadHistoryEmptySession(t *testing.T) {
	db := newTestDB(t)
	store := NewHistoryStore(db)

	session := models.ChatSession{SessionToken: "anon_test_4"}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	messages, err := store.LoadHistory(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("an empty history is not an error: %v", err)
	}
	if messages == nil {
		t.Fatal("expected an empty slice, got nil")
	}
	if len(messages) != 0 {
		t.Fatalf("expected no messages, got %d", len(messages))
	}
}

func TestLoadHistoryPreservesConversationOrder(t *testing.T) {
	db := newTestDB(t)
	store := NewHistoryStore(db)
	ctx := context.Background()

	session := models.ChatSession{SessionToken: "anon_test_5"}
	if err := db.Create(&session).Error; err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	turns := []struct{ question, answer string }{
		{"What cats do you have?", "Six resident cats, including Earl Grey and Mocha."},
		{"Can I adopt one?", "Yes! Ask our staff about the adoption process."},
		{"What are your hours?", "We open at 8am on weekdays."},
	}
	for _, turn := range turns {
		if err := store.SaveMessage(ctx, session.ID, turn.question, true, turn.answer); err != nil {
			t.Fatalf("SaveMessage failed: %v", err)
		}
	}

	messages, err := store.LoadHistory(ctx, session.ID)
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if len(messages) != 6 {
		t.Fatalf("expected 6 messages, got %d", len(messages))
	}
	for i, turn := range turns {
		if messages[2*i].Message != turn.question {
			t.Errorf("turn %d: expected question %q, got %q", i, turn.question, messages[2*i].Message)
		}
		if messages[2*i+1].Message != turn.answer {
			t.Errorf("turn %d: expected answer %q, got %q", i, turn.answer, messages[2*i+1].Message)
		}
	}
}

func TestEncodeMetadataValidates(t *testing.T) {
	raw, err := encodeMetadata(time.Now())
	if err != nil {
		t.Fatalf("encodeMetadata failed: %v", err)
	}

	var meta MessageMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatalf("metadata is not valid JSON: %v", err)
	}
	if meta.SchemaVersion != MetadataSchemaVersion {
		t.Errorf("expected schema version %d, got %d", MetadataSchemaVersion, meta.SchemaVersion)
	}
}

func TestValidateMetadataRejectsBadDocument(t *testing.T) {
	err := validateMetadata(map[string]interface{}{"schema_version": "not-a-number"})
	if err == nil {
		t.Fatal("expected validation to fail")
	}
}
