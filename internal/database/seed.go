package database

import (
	"context"
	"log"

	"github.com/purrfectbrew/purrfect-brew/internal/loyalty"
	"github.com/purrfectbrew/purrfect-brew/internal/models"
	"gorm.io/gorm"
)

// SeedRewards populates the reward catalog on first boot.
// Idempotent: skips if any reward rows already exist.
func SeedRewards(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.LoyaltyReward{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("Reward catalog already seeded, skipping")
		return nil
	}

	rewards := []models.LoyaltyReward{
		{Name: "Free Drip Coffee", Description: "Any size drip coffee, on the house", PointsRequired: 100, IsActive: true},
		{Name: "Free Pastry", Description: "Pick any pastry from the case", PointsRequired: 150, IsActive: true},
		{Name: "Specialty Drink Upgrade", Description: "Turn any order into a specialty drink", PointsRequired: 200, IsActive: true},
		{Name: "Private Cat Room Hour", Description: "One hour in the cat lounge for you and a friend", PointsRequired: 400, IsActive: true},
		{Name: "Purrfect Brew Mug", Description: "Take home our signature ceramic mug", PointsRequired: 600, IsActive: true},
	}

	if err := db.Create(&rewards).Error; err != nil {
		return err
	}

	log.Printf("Seeded reward catalog: %d rewards", len(rewards))
	return nil
}

// SeedDevData populates the database with development test data.
// Idempotent: skips if data already exists. Ledger rows go through the
// loyalty service so the balance invariant holds for seeded data too.
func SeedDevData(db *gorm.DB) error {
	const devUserID = "dev-user-local"

	var existing models.Profile
	result := db.Where("user_id = ?", devUserID).First(&existing)
	if result.Error == nil {
		log.Println("Seed data already exists, skipping")
		return nil
	}

	svc := loyalty.NewService(db)
	ctx := context.Background()

	firstVisit := 12.50
	secondVisit := 21.75
	if err := svc.RecordTransaction(ctx, devUserID, 50, models.TransactionEarned, "Welcome visit", &firstVisit); err != nil {
		return err
	}
	if err := svc.RecordTransaction(ctx, devUserID, 85, models.TransactionEarned, "Lunch with a friend", &secondVisit); err != nil {
		return err
	}

	if err := db.Model(&models.Profile{}).Where("user_id = ?", devUserID).Updates(map[string]interface{}{
		"display_name": "Dev User",
		"email":        "dev@purrfectbrew.local",
	}).Error; err != nil {
		return err
	}

	log.Println("Seeded dev data: 1 profile, 2 earned transactions")
	return nil
}
