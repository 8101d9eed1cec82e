package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ScanSourceImage = "image"
	ScanSourceText  = "text"
)

// FoodScan is one analysed photo or description.
type FoodScan struct {
	gorm.Model
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	Source      string    `gorm:"size:8" json:"source"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	ScannedAt   time.Time `gorm:"index" json:"scanned_at"`

	TotalCalories float64 `json:"total_calories"`
	TotalProtein  float64 `json:"total_protein_g"`
	TotalCarbs    float64 `json:"total_carbs_g"`
	TotalFat      float64 `json:"total_fat_g"`
	TotalSugar    float64 `json:"total_sugar_g"`
	TotalSodium   float64 `json:"total_sodium_mg"`

	HealthScore int    `json:"health_score"`
	Notes       string `gorm:"type:text" json:"notes,omitempty"`
	Safe        bool   `json:"safe"`
	Warnings    string `gorm:"type:text" json:"warnings,omitempty"` // "; " separated

	Items []FoodScanItem `json:"items"`
}

type FoodScanItem struct {
	gorm.Model
	FoodScanID uint    `gorm:"index" json:"food_scan_id"`
	Name       string  `gorm:"not null" json:"name"`
	Portion    string  `json:"portion"`
	Calories   float64 `json:"calories"`
	Protein    float64 `json:"protein_g"`
	Carbs      float64 `json:"carbs_g"`
	Fat        float64 `json:"fat_g"`
	Sugar      float64 `json:"sugar_g"`
	Sodium     float64 `json:"sodium_mg"`
}
