// Package loyalty implements the points ledger: an append-only transaction
// log per user plus a denormalized profile aggregate (balance, visit count,
// lifetime spend) that is updated in the same database transaction as every
// ledger write.
package loyalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/purrfectbrew/purrfect-brew/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalidTransaction marks malformed input rejected before any write.
	ErrInvalidTransaction = errors.New("invalid transaction")
	// ErrInsufficientPoints is returned when a debit would take the balance
	// below zero. On the redeem path insufficiency is a value, not this error.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrRewardUnavailable is returned for missing or deactivated rewards.
	ErrRewardUnavailable = errors.New("reward unavailable")
)

// Service owns all writes to profiles and the loyalty ledger.
type Service struct {
	db *gorm.DB
}

// NewService creates a loyalty service backed by the given database
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// RecordTransaction appends one immutable ledger row and applies its effect
// to the profile aggregate in a single database transaction. A profile is
// created implicitly on first reference. Only earned transactions carrying an
// order amount bump the visit and spend counters.
func (s *Service) RecordTransaction(ctx context.Context, userID string, pointsChange int, transactionType, description string, orderAmount *float64) error {
	if err := validateTransaction(userID, pointsChange, transactionType, orderAmount); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile, err := lockProfile(tx, userID)
		if err != nil {
			return err
		}
		return applyLedgerWrite(tx, profile, pointsChange, transactionType, description, orderAmount)
	})
}

// Redeem exchanges points for a reward. It returns (false, nil) when the
// balance is too low: that is an expected business outcome, not a fault.
// On success the ledger row, the balance update, and the redemption record
// all commit together.
func (s *Service) Redeem(ctx context.Context, userID string, rewardID uint) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("%w: user id is required", ErrInvalidTransaction)
	}

	redeemed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The active check rides the same transaction as the debit so a
		// reward deactivated mid-flight cannot still be redeemed.
		var reward models.LoyaltyReward
		err := tx.Where("id = ? AND is_active = ?", rewardID, true).First(&reward).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRewardUnavailable
		}
		if err != nil {
			return fmt.Errorf("failed to look up reward: %w", err)
		}

		profile, err := lockProfile(tx, userID)
		if err != nil {
			return err
		}

		// The row lock held here is what makes two concurrent redemptions
		// serialize: the second one re-reads the already-decremented balance.
		if profile.LoyaltyPoints < reward.PointsRequired {
			return nil
		}

		if err := applyLedgerWrite(tx, profile, -reward.PointsRequired, models.TransactionRedeemed, reward.Name, nil); err != nil {
			return err
		}

		redemption := models.RewardRedemption{
			UserID:      userID,
			RewardID:    reward.ID,
			PointsSpent: reward.PointsRequired,
			Status:      models.RedemptionStatusPending,
			RedeemedAt:  time.Now(),
		}
		if err := tx.Create(&redemption).Error; err != nil {
			return fmt.Errorf("failed to record redemption: %w", err)
		}

		redeemed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return redeemed, nil
}

// ExpirePoints zeroes the user's balance with a single expired ledger row and
// returns how many points were expired. A zero balance is a no-op.
func (s *Service) ExpirePoints(ctx context.Context, userID, description string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("%w: user id is required", ErrInvalidTransaction)
	}

	expired := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile, err := lockProfile(tx, userID)
		if err != nil {
			return err
		}
		if profile.LoyaltyPoints <= 0 {
			return nil
		}
		expired = profile.LoyaltyPoints
		return applyLedgerWrite(tx, profile, -expired, models.TransactionExpired, description, nil)
	})
	if err != nil {
		return 0, err
	}
	return expired, nil
}

// GetProfile returns the profile aggregate, or a zero-valued profile if the
// user has never transacted.
func (s *Service) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Profile{UserID: userID}, nil
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return profile, nil
}

// ListRewards returns active catalog entries, cheapest first.
func (s *Service) ListRewards(ctx context.Context) ([]models.LoyaltyReward, error) {
	var rewards []models.LoyaltyReward
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("points_required ASC").
		Find(&rewards).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	return rewards, nil
}

// ListTransactions returns the user's most recent ledger rows, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID string, limit int) ([]models.LoyaltyTransaction, error) {
	if limit <= 0 {
		limit = 10
	}
	var transactions []models.LoyaltyTransaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&transactions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return transactions, nil
}

func validateTransaction(userID string, pointsChange int, transactionType string, orderAmount *float64) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidTransaction)
	}
	if pointsChange == 0 {
		return fmt.Errorf("%w: points change must be non-zero", ErrInvalidTransaction)
	}
	switch transactionType {
	case models.TransactionEarned, models.TransactionRedeemed, models.TransactionExpired:
	default:
		return fmt.Errorf("%w: unknown transaction type %q", ErrInvalidTransaction, transactionType)
	}
	if orderAmount != nil && *orderAmount < 0 {
		return fmt.Errorf("%w: order amount must not be negative", ErrInvalidTransaction)
	}
	return nil
}

// lockProfile reads the profile row under a FOR UPDATE lock, creating it with
// zero balances on first reference. Every balance mutation goes through this
// lock so concurrent earn/redeem calls for one user serialize here.
func lockProfile(tx *gorm.DB, userID string) (*models.Profile, error) {
	q := tx
	// SQLite (used in tests) has no row-level locking; its single-writer
	// lock serializes the balance update anyway.
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var profile models.Profile
	err := q.Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		profile = models.Profile{UserID: userID}
		if createErr := tx.Create(&profile).Error; createErr != nil {
			// Concurrent first contact: another writer inserted the row
			// between the read and the create. Adopt theirs under the lock.
			if err := q.Where("user_id = ?", userID).First(&profile).Error; err == nil {
				return &profile, nil
			}
			return nil, fmt.Errorf("failed to create profile: %w", createErr)
		}
		return &profile, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock profile: %w", err)
	}
	return &profile, nil
}

// applyLedgerWrite inserts the ledger row and updates the locked profile.
// Callers must hold the profile row lock taken by lockProfile.
func applyLedgerWrite(tx *gorm.DB, profile *models.Profile, pointsChange int, transactionType, description string, orderAmount *float64) error {
	if profile.LoyaltyPoints+pointsChange < 0 {
		return ErrInsufficientPoints
	}

	transaction := models.LoyaltyTransaction{
		UserID:          profile.UserID,
		PointsChange:    pointsChange,
		TransactionType: transactionType,
		Description:     description,
		OrderAmount:     orderAmount,
	}
	if err := tx.Create(&transaction).Error; err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}

	updates := map[string]interface{}{
		"loyalty_points": profile.LoyaltyPoints + pointsChange,
	}
	if transactionType == models.TransactionEarned && orderAmount != nil {
		updates["total_spent"] = profile.TotalSpent + *orderAmount
		updates["visits_count"] = profile.VisitsCount + 1
	}
	if err := tx.Model(profile).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update profile balance: %w", err)
	}
	return nil
}
