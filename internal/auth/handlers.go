package auth

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/markbates/goth/gothic"
	"github.com/purrfectbrew/purrfect-brew/internal/models"
	"gorm.io/gorm"
)

// HandleLogin initiates the Google OAuth flow
func HandleLogin(c *gin.Context) {
	// Gothic requires the "provider" query parameter
	q := c.Request.URL.Query()
	q.Add("provider", "google")
	c.Request.URL.RawQuery = q.Encode()

	gothic.BeginAuthHandler(c.Writer, c.Request)
}

// HandleCallback completes the OAuth flow, upserts the loyalty profile, and
// stores the identity in the cookie session. The provider's user id is the
// opaque stable key everything loyalty-related hangs off.
func HandleCallback(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Gothic requires the "provider" query parameter
		q := c.Request.URL.Query()
		q.Add("provider", "google")
		c.Request.URL.RawQuery = q.Encode()

		gothUser, err := gothic.CompleteUserAuth(c.Writer, c.Request)
		if err != nil {
			log.Printf("Auth error: %v", err)
			c.Redirect(http.StatusFound, "/login?error=auth_failed")
			return
		}

		if db != nil {
			var profile models.Profile
			result := db.Where("user_id = ?", gothUser.UserID).First(&profile)
			if errors.Is(result.Error, gorm.ErrRecordNotFound) {
				profile = models.Profile{
					UserID:      gothUser.UserID,
					DisplayName: gothUser.Name,
					Email:       gothUser.Email,
				}
				if err := db.Create(&profile).Error; err != nil {
					log.Printf("Profile create error: %v", err)
				}
			} else if result.Error == nil {
				db.Model(&profile).Updates(map[string]interface{}{
					"display_name": gothUser.Name,
					"email":        gothUser.Email,
				})
			}
		}

		session := sessions.Default(c)
		session.Set("user_id", gothUser.UserID)
		session.Set("user_email", gothUser.Email)
		session.Set("user_name", gothUser.Name)

		if err := session.Save(); err != nil {
			log.Printf("Session save error: %v", err)
			c.Redirect(http.StatusFound, "/login?error=session_failed")
			return
		}

		log.Printf("User authenticated: %s (%s)", gothUser.Name, gothUser.Email)
		c.Redirect(http.StatusFound, "/loyalty")
	}
}

// HandleLogout clears the session and redirects to the home page
func HandleLogout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()

	if err := session.Save(); err != nil {
		log.Printf("Session clear error: %v", err)
	}

	c.Redirect(http.StatusFound, "/")
}
