package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	FullName     string `json:"full_name"`
	Role         string `gorm:"size:16;default:user" json:"role"`
	Onboarded    bool   `json:"onboarded"`
	Disabled     bool   `gorm:"index" json:"disabled"`

	ResetToken    string    `gorm:"size:16;index" json:"-"`
	ResetTokenExp time.Time `json:"-"`

	// BiometricProfile columns, filled by onboarding
	WeightKg      float64   `json:"weight_kg"`
	HeightCm      float64   `json:"height_cm"`
	Birthday      time.Time `json:"birthday"`
	AgeYears      int       `json:"age_years"`
	Gender        string    `gorm:"size:8" json:"gender"`
	ActivityLevel string    `gorm:"size:16" json:"activity_level"`
	Goal          string    `gorm:"size:16" json:"goal"`

	// derived, recomputed whenever the profile changes
	BMI                 float64    `json:"bmi"`
	BMR                 float64    `json:"bmr"`
	TDEE                float64    `json:"tdee"`
	RecommendedCalories int        `json:"recommended_calories"`
	MetricsUpdatedAt    *time.Time `json:"metrics_updated_at,omitempty"`

	PremiumUntil *time.Time `json:"premium_until,omitempty"`
}

// IsPremium reports whether the subscription covers t.
func (u *User) IsPremium(t time.Time) bool {
	return u.PremiumUntil != nil && u.PremiumUntil.After(t)
}
