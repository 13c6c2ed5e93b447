package chat

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/purrfectbrew/purrfect-brew/internal/assistant"
	"github.com/purrfectbrew/purrfect-brew/internal/cafe"
	"github.com/purrfectbrew/purrfect-brew/internal/models"
	"gorm.io/gorm"
)

// clientInfo is what the browser reports with every chat call: its persisted
// token (if any) and the fingerprint material for token synthesis.
type clientInfo struct {
	Token           string `json:"token"`
	UserAgent       string `json:"user_agent"`
	Language        string `json:"language"`
	Screen          string `json:"screen"`
	TimezoneOffset  int    `json:"timezone_offset"`
	CanvasSignature string `json:"canvas_signature"`
}

// requestIdentity adapts one HTTP exchange to the IdentityStore interface:
// Get serves the token the client sent, Set captures the token to echo back.
// The browser is the durable store; this is its per-request proxy.
type requestIdentity struct {
	incoming string
	outgoing string
}

func (r *requestIdentity) Get(string) (string, error) { return r.incoming, nil }

func (r *requestIdentity) Set(_, value string) error {
	r.outgoing = value
	return nil
}

func (r *requestIdentity) Clear(string) error {
	r.incoming = ""
	return nil
}

// resolveForRequest runs session resolution for one HTTP exchange and links
// the session to the signed-in user on first contact.
func resolveForRequest(c *gin.Context, db *gorm.DB, info clientInfo) *ResolvedSession {
	if info.UserAgent == "" {
		info.UserAgent = c.Request.UserAgent()
	}

	store := &requestIdentity{incoming: info.Token}
	env := ClientEnvironment{
		UserAgent:       info.UserAgent,
		Language:        info.Language,
		ScreenGeometry:  info.Screen,
		TimezoneOffset:  info.TimezoneOffset,
		CanvasSignature: info.CanvasSignature,
	}

	resolved := NewResolver(db, store, env).Resolve(c.Request.Context())

	if resolved.Session != nil && resolved.Session.UserID == nil {
		if userID, ok := c.Get("user_id"); ok {
			if uid, _ := userID.(string); uid != "" {
				if err := db.WithContext(c.Request.Context()).
					Model(resolved.Session).
					Update("user_id", uid).Error; err != nil {
					log.Printf("Failed to link chat session %d to user: %v", resolved.Session.ID, err)
				}
			}
		}
	}

	return resolved
}

// SessionHandler resolves (or creates) the caller's chat session and returns
// the token the client must persist.
func SessionHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var info clientInfo
		if err := c.ShouldBindJSON(&info); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resolved := resolveForRequest(c, db, info)

		response := gin.H{"token": resolved.Token, "degraded": resolved.Degraded}
		if resolved.Session != nil {
			response["session_id"] = resolved.Session.ID
		}
		c.JSON(http.StatusOK, response)
	}
}

// HistoryHandler replays the session's message log in insertion order. A
// session without history gets an empty list; the widget shows its welcome
// message instead.
func HistoryHandler(db *gorm.DB, history *HistoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := clientInfo{Token: c.Query("token")}
		resolved := resolveForRequest(c, db, info)

		messages := []gin.H{}
		if resolved.Session != nil {
			rows, err := history.LoadHistory(c.Request.Context(), resolved.Session.ID)
			if err != nil {
				log.Printf("Failed to load chat history for session %d: %v", resolved.Session.ID, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat history"})
				return
			}
			for _, m := range rows {
				messages = append(messages, messageJSON(m))
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"token":    resolved.Token,
			"degraded": resolved.Degraded,
			"messages": messages,
		})
	}
}

// MessageHandler is the concierge endpoint: it resolves the session, asks
// the assistant for a reply with the café context as system prompt, persists
// the exchange best-effort, and returns the reply.
func MessageHandler(db *gorm.DB, client *assistant.Client, content *cafe.Content, history *HistoryStore, limiter *Limiter) gin.HandlerFunc {
	systemPrompt := content.SystemPrompt()

	return func(c *gin.Context) {
		var req struct {
			clientInfo
			Message string `json:"message" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "success": false})
			return
		}

		resolved := resolveForRequest(c, db, req.clientInfo)

		if limiter != nil {
			allowed, err := limiter.Allow(c.Request.Context(), resolved.Token)
			if err != nil {
				// Redis being down must not take the chat down with it.
				log.Printf("Rate limiter unavailable, allowing request: %v", err)
			} else if !allowed {
				c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many messages, take a catnap and try again", "success": false})
				return
			}
		}

		reply, err := client.Complete(c.Request.Context(), req.Message, systemPrompt)
		if err != nil {
			log.Printf("Assistant call failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "success": false})
			return
		}

		// History is best-effort: a failed save is logged and the reply
		// still goes out.
		if resolved.Session != nil {
			if err := history.SaveMessage(c.Request.Context(), resolved.Session.ID, req.Message, true, reply); err != nil {
				log.Printf("Failed to save chat exchange for session %d: %v", resolved.Session.ID, err)
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"response": reply,
			"success":  true,
			"token":    resolved.Token,
			"degraded": resolved.Degraded,
		})
	}
}

func messageJSON(m models.ChatMessage) gin.H {
	return gin.H{
		"id":         m.ID,
		"message":    m.Message,
		"is_user":    m.IsUser,
		"metadata":   m.Metadata,
		"created_at": m.CreatedAt.UTC().Format(time.RFC3339),
	}
}
