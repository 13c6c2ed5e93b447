// Package chat provides the visitor session identity resolver, the
// best-effort message history store, and the HTTP surface for the café's
// AI concierge widget.
package chat

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/purrfectbrew/purrfect-brew/internal/models"
	"gorm.io/gorm"
)

// TokenStorageKey is the key under which the session token is persisted in
// the client's identity store (localStorage on the web client).
const TokenStorageKey = "cafe_chat_session_id"

// IdentityStore is the client-side persistence capability the resolver
// depends on. The web client backs it with localStorage; tests use an
// in-memory map.
type IdentityStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Clear(key string) error
}

// FingerprintProvider returns a stable string describing the caller's
// environment. The fingerprint only raises collision resistance for
// anonymous tokens; it is advisory and never a security credential.
type FingerprintProvider interface {
	Fingerprint() string
}

// ClientEnvironment is the fingerprint material the browser reports.
type ClientEnvironment struct {
	UserAgent       string
	Language        string
	ScreenGeometry  string
	TimezoneOffset  int
	CanvasSignature string
}

// Fingerprint joins the reported fields in a fixed order so the same
// environment always produces the same string.
func (e ClientEnvironment) Fingerprint() string {
	return strings.Join([]string{
		e.UserAgent,
		e.Language,
		e.ScreenGeometry,
		strconv.Itoa(e.TimezoneOffset),
		e.CanvasSignature,
	}, "|")
}

// MemoryStore is an in-memory IdentityStore, used in tests and as a safe
// default when no client-backed store is wired.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key], nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Clear(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// ResolvedSession is the outcome of session resolution. When Degraded is
// true the token exists only in the identity store: the backing database was
// unreachable, so history for this visit will not persist.
type ResolvedSession struct {
	Token    string
	Session  *models.ChatSession
	Degraded bool
}

// Resolver establishes a durable session identity for a visitor.
type Resolver struct {
	db    *gorm.DB
	store IdentityStore
	fp    FingerprintProvider
}

// NewResolver creates a session resolver over the given database, identity
// store, and fingerprint provider.
func NewResolver(db *gorm.DB, store IdentityStore, fp FingerprintProvider) *Resolver {
	return &Resolver{db: db, store: store, fp: fp}
}

// Resolve returns a stable session for the caller. Repeated calls with the
// same persisted token yield the same session. Resolve never fails: when the
// backing store is unreachable it falls back to an in-memory token, flags the
// result as degraded, and logs the condition.
func (r *Resolver) Resolve(ctx context.Context) *ResolvedSession {
	stored, err := r.store.Get(TokenStorageKey)
	if err != nil {
		log.Printf("Identity store read failed, treating as empty: %v", err)
		stored = ""
	}

	if stored != "" {
		var session models.ChatSession
		err := r.db.WithContext(ctx).Where("session_token = ?", stored).First(&session).Error
		if err == nil {
			return &ResolvedSession{Token: stored, Session: &session}
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return r.degrade(stored, err)
		}
		// The client held a token the server no longer knows (state wipe).
		// Issue a fresh token rather than resurrecting the old one.
		if err := r.store.Clear(TokenStorageKey); err != nil {
			log.Printf("Identity store clear failed: %v", err)
		}
	}

	token := r.generateToken()
	session := models.ChatSession{SessionToken: token}
	if err := r.db.WithContext(ctx).Create(&session).Error; err != nil {
		return r.degrade(token, err)
	}

	if err := r.store.Set(TokenStorageKey, token); err != nil {
		log.Printf("Identity store write failed, token will not survive reload: %v", err)
	}

	return &ResolvedSession{Token: token, Session: &session}
}

// degrade hands out a usable in-memory token when the database is down. The
// token is still persisted client-side so a later resolve can adopt it, but
// it has no server row and must not be treated as durable.
func (r *Resolver) degrade(token string, cause error) *ResolvedSession {
	if token == "" {
		token = r.generateToken()
	}
	log.Printf("WARNING: chat session degraded to in-memory token, history will not persist: %v", cause)
	if err := r.store.Set(TokenStorageKey, token); err != nil {
		log.Printf("Identity store write failed during degraded resolve: %v", err)
	}
	return &ResolvedSession{Token: token, Degraded: true}
}

// generateToken synthesizes an anonymous session token from a millisecond
// timestamp, a random component, and the environment fingerprint, all in
// base 36: anon_<timestamp>_<random>_<fingerprint>.
func (r *Resolver) generateToken() string {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 36)

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// Fall back to the clock; uniqueness still comes from the timestamp.
		binary.BigEndian.PutUint64(buf[:], uint64(time.Now().UnixNano()))
	}
	random := strconv.FormatUint(binary.BigEndian.Uint64(buf[:]), 36)

	return fmt.Sprintf("anon_%s_%s_%s", timestamp, random, fingerprintHash(r.fp.Fingerprint()))
}

// fingerprintHash reduces the fingerprint string to at most 8 base-36
// characters with the classic 32-bit rolling hash the web client used.
func fingerprintHash(fingerprint string) string {
	var hash int32
	for _, c := range fingerprint {
		hash = (hash << 5) - hash + c
	}
	// Widen before negating: -MinInt32 overflows int32 and would leak a
	// minus sign into the token.
	v := int64(hash)
	if v < 0 {
		v = -v
	}
	s := strconv.FormatInt(v, 36)
	if len(s) > 8 {
		s = s[:8]
	}
	return s
}
