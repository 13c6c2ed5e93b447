package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/purrfectbrew/purrfect-brew/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&models.ChatSession{}, &models.ChatMessage{})
	if err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}

	return db
}

func testEnvironment() ClientEnvironment {
	return ClientEnvironment{
		UserAgent:       "Mozilla/5.0 (test)",
		Language:        "en-US",
		ScreenGeometry:  "1920x1080",
		TimezoneOffset:  -300,
		CanvasSignature: "canvas-sig",
	}
}

func TestResolveIssuesAnonymousToken(t *testing.T) {
	db := newTestDB(t)
	resolver := NewResolver(db, NewMemoryStore(), testEnvironment())

	resolved := resolver.Resolve(context.Background())
	if resolved.Degraded {
		t.Fatal("expected a durable session")
	}
	if !strings.HasPrefix(resolved.Token, "anon_") {
		t.Errorf("expected anon_ token, got %q", resolved.Token)
	}
	if parts := strings.Split(resolved.Token, "_"); len(parts) != 4 {
		t.Errorf("expected anon_<ts>_<rand>_<fp> shape, got %q", resolved.Token)
	}
	if resolved.Session == nil || resolved.Session.ID == 0 {
		t.Fatal("expected a persisted session row")
	}
	if resolved.Session.SessionToken != resolved.Token {
		t.Errorf("row token %q does not match resolved token %q", resolved.Session.SessionToken, resolved.Token)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	store := NewMemoryStore()
	resolver := NewResolver(db, store, testEnvironment())
	ctx := context.Background()

	first := resolver.Resolve(ctx)
	second := resolver.Resolve(ctx)

	if first.Token != second.Token {
		t.Errorf("token changed between resolves: %q vs %q", first.Token, second.Token)
	}
	if first.Session.ID != second.Session.ID {
		t.Errorf("session row changed between resolves: %d vs %d", first.Session.ID, second.Session.ID)
	}

	var count int64
	db.Model(&models.ChatSession{}).Count(&count)
	if count != 1 {
		t.Errorf("expected one session row, got %d", count)
	}
}

func TestResolveReplacesUnknownStoredToken(t *testing.T) {
	db := newTestDB(t)
	store := NewMemoryStore()
	if err := store.Set(TokenStorageKey, "anon_stale_token_x"); err != nil {
		t.Fatal(err)
	}
	resolver := NewResolver(db, store, testEnvironment())

	resolved := resolver.Resolve(context.Background())
	if resolved.Degraded {
		t.Fatal("expected a durable session")
	}
	if resolved.Token == "anon_stale_token_x" {
		t.Error("a token the server no longer knows must not be resurrected")
	}
	if resolved.Session == nil {
		t.Fatal("expected a fresh session row")
	}

	stored, _ := store.Get(TokenStorageKey)
	if stored != resolved.Token {
		t.Errorf("store holds %q, resolver returned %q", stored, resolved.Token)
	}
}

func TestResolveDegradesWhenDatabaseDown(t *testing.T) {
	db := newTestDB(t)
	store := NewMemoryStore()
	resolver := NewResolver(db, store, testEnvironment())

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.Close()

	resolved := resolver.Resolve(context.Background())
	if !resolved.Degraded {
		t.Fatal("expected degraded resolution with the database down")
	}
	if !strings.HasPrefix(resolved.Token, "anon_") {
		t.Errorf("degraded resolve must still issue a usable token, got %q", resolved.Token)
	}
	if resolved.Session != nil {
		t.Error("degraded session must not claim a server row")
	}

	// The token is still written client-side so a later resolve can adopt it.
	stored, _ := store.Get(TokenStorageKey)
	if stored != resolved.Token {
		t.Errorf("store holds %q, resolver returned %q", stored, resolved.Token)
	}
}

func TestFingerprintHashStable(t *testing.T) {
	env := testEnvironment()
	a := fingerprintHash(env.Fingerprint())
	b := fingerprintHash(env.Fingerprint())
	if a != b {
		t.Errorf("same environment must hash identically: %q vs %q", a, b)
	}
	if len(a) == 0 || len(a) > 8 {
		t.Errorf("hash must be 1-8 base36 chars, got %q", a)
	}

	other := env
	other.Language = "fr-FR"
	if fingerprintHash(other.Fingerprint()) == a {
		t.Error("different environments should hash differently")
	}
}

func TestFingerprintHashIsBase36(t *testing.T) {
	// Roughly half of all inputs roll to a negative 32-bit hash; the absolute
	// value must never carry a minus sign into the token, including at the
	// int32 minimum where plain negation overflows.
	inputs := []string{
		"",
		"a",
		testEnvironment().Fingerprint(),
		strings.Repeat("purrfect brew", 97),
		"￿￾�",
		"Mozilla/5.0|fr-FR|2560x1440|120|\x00\x01\x02",
	}
	for _, in := range inputs {
		h := fingerprintHash(in)
		if len(h) == 0 || len(h) > 8 {
			t.Errorf("hash for %q must be 1-8 chars, got %q", in, h)
		}
		for _, c := range h {
			if (c < '0' || c > '9') && (c < 'a' || c > 'z') {
				t.Errorf("hash for %q contains non-base36 char %q: %q", in, c, h)
			}
		}
	}
}

func TestGeneratedTokensAreUnique(t *testing.T) {
	resolver := NewResolver(nil, NewMemoryStore(), testEnvironment())

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token := resolver.generateToken()
		if seen[token] {
			t.Fatalf("duplicate token generated: %q", token)
		}
		seen[token] = true
	}
}
