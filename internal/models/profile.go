package models

import (
	"gorm.io/gorm"
)

// Profile is the per-user loyalty aggregate: current point balance plus
// lifetime visit and spend counters. The balance is mutated only through the
// ledger write path (see internal/loyalty); it always equals the sum of the
// user's loyalty_transactions rows.
type Profile struct {
	gorm.Model
	UserID        string  `gorm:"uniqueIndex:idx_profiles_user_not_deleted,where:deleted_at IS NULL;not null"`
	DisplayName   string  `gorm:"not null;default:''"`
	Email         string  `gorm:"not null;default:''"`
	LoyaltyPoints int     `gorm:"not null;default:0"`
	TotalSpent    float64 `gorm:"not null;default:0"`
	VisitsCount   int     `gorm:"not null;default:0"`
}
