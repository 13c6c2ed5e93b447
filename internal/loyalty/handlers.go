package loyalty

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/purrfectbrew/purrfect-brew/internal/models"
)

// EarnPointsHandler records an earned transaction for the signed-in user.
// This is the staff/testing path the Loyalty page uses to grant points.
func EarnPointsHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		var req struct {
			Points      int      `json:"points" binding:"required"`
			Description string   `json:"description" binding:"required"`
			OrderAmount *float64 `json:"order_amount"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		err := svc.RecordTransaction(c.Request.Context(), userID, req.Points, models.TransactionEarned, req.Description, req.OrderAmount)
		if err != nil {
			if errors.Is(err, ErrInvalidTransaction) || errors.Is(err, ErrInsufficientPoints) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log.Printf("Failed to record transaction for user %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record transaction"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// RedeemHandler exchanges the signed-in user's points for a reward.
// Insufficient balance is reported as success=false, not as an error status.
func RedeemHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		var req struct {
			RewardID uint `json:"reward_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ok, err := svc.Redeem(c.Request.Context(), userID, req.RewardID)
		if err != nil {
			if errors.Is(err, ErrRewardUnavailable) || errors.Is(err, ErrInvalidTransaction) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "success": false})
				return
			}
			log.Printf("Redemption failed for user %s, reward %d: %v", userID, req.RewardID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to redeem reward", "success": false})
			return
		}
		if !ok {
			c.JSON(http.StatusOK, gin.H{"success": false, "reason": "insufficient points"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// ProfileHandler returns the signed-in user's loyalty aggregate.
func ProfileHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		profile, err := svc.GetProfile(c.Request.Context(), userID)
		if err != nil {
			log.Printf("Failed to fetch profile for user %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch profile"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"user_id":        profile.UserID,
			"display_name":   profile.DisplayName,
			"email":          profile.Email,
			"loyalty_points": profile.LoyaltyPoints,
			"total_spent":    profile.TotalSpent,
			"visits_count":   profile.VisitsCount,
		})
	}
}

// RewardsHandler returns the active reward catalog. Public: the Loyalty page
// shows the catalog to signed-out visitors too.
func RewardsHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rewards, err := svc.ListRewards(c.Request.Context())
		if err != nil {
			log.Printf("Failed to list rewards: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rewards"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rewards": rewards})
	}
}

// TransactionsHandler returns the signed-in user's recent ledger entries.
func TransactionsHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		transactions, err := svc.ListTransactions(c.Request.Context(), userID, 10)
		if err != nil {
			log.Printf("Failed to list transactions for user %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"transactions": transactions})
	}
}

func currentUserID(c *gin.Context) string {
	v, exists := c.Get("user_id")
	if !exists {
		return ""
	}
	userID, _ := v.(string)
	return userID
}
