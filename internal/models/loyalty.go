package models

import (
	"time"

	"gorm.io/gorm"
)

// Transaction type constants
const (
	TransactionEarned   = "earned"
	TransactionRedeemed = "redeemed"
	TransactionExpired  = "expired"
)

// Redemption status constants. Redemptions are written as pending; the
// fulfilled/cancelled states are reserved for a future fulfillment flow.
const (
	RedemptionStatusPending   = "pending"
	RedemptionStatusFulfilled = "fulfilled"
	RedemptionStatusCancelled = "cancelled"
)

// LoyaltyTransaction is one immutable row in the append-only points ledger.
// Rows are never updated or deleted after creation.
type LoyaltyTransaction struct {
	gorm.Model
	UserID          string   `gorm:"not null;index"`
	PointsChange    int      `gorm:"not null"`
	TransactionType string   `gorm:"not null;index"`
	Description     string   `gorm:"type:text"`
	OrderAmount     *float64 // set only on earned transactions tied to a purchase
}

func (LoyaltyTransaction) TableName() string {
	return "loyalty_transactions"
}

// LoyaltyReward is a catalog entry redeemable for a fixed point cost.
// Managed by café administration; read-only to the redemption workflow.
type LoyaltyReward struct {
	gorm.Model
	Name           string `gorm:"not null"`
	Description    string `gorm:"type:text"`
	PointsRequired int    `gorm:"not null"`
	IsActive       bool   `gorm:"not null;default:true;index"`
}

func (LoyaltyReward) TableName() string {
	return "loyalty_rewards"
}

// RewardRedemption records a single exchange of points for a reward. It is
// created in the same database transaction as the matching ledger row.
type RewardRedemption struct {
	gorm.Model
	UserID      string        `gorm:"not null;index"`
	RewardID    uint          `gorm:"not null;index"`
	Reward      LoyaltyReward `gorm:"constraint:OnDelete:CASCADE;"`
	PointsSpent int           `gorm:"not null"`
	Status      string        `gorm:"not null;default:'pending'"`
	RedeemedAt  time.Time     `gorm:"not null"`
}

func (RewardRedemption) TableName() string {
	return "user_reward_redemptions"
}
