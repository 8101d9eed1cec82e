package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/F1H444/si-kalori-sub000/models"
	"github.com/F1H444/si-kalori-sub000/utils"

	"gorm.io/gorm"
)

type RecService struct {
	db      *gorm.DB
	advisor Advisor
	loc     *time.Location
	now     func() time.Time
}

func NewRecService(db *gorm.DB, advisor Advisor, loc *time.Location) *RecService {
	if loc == nil {
		loc = time.Local
	}
	return &RecService{db: db, advisor: advisor, loc: loc, now: time.Now}
}

// GetRecs summarises today's intake against the user's target and asks the
// advisor for a handful of practical tips.
func (r *RecService) GetRecs(ctx context.Context, userID uint) ([]string, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}

	now := r.now().In(r.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.loc)
	var scans []models.FoodScan
	if err := r.db.WithContext(ctx).Preload("Items").
		Where("user_id = ? AND scanned_at BETWEEN ? AND ?", userID, start, start.AddDate(0, 0, 1).Add(-time.Nanosecond)).
		Order("scanned_at ASC").
		Find(&scans).Error; err != nil {
		return nil, fmt.Errorf("db error fetching scans: %w", err)
	}

	recs, err := r.advisor.Advise(ctx, buildRecPrompt(&user, scans))
	if err != nil {
		return nil, err
	}
	return splitBullets(recs), nil
}

func buildRecPrompt(u *models.User, scans []models.FoodScan) string {
	var sb bytes.Buffer
	sb.WriteString("You are a friendly Indonesian nutrition coach.\n\nUSER PROFILE:\n")
	if u.Onboarded {
		fmt.Fprintf(&sb, "- Age: %d years\n- Gender: %s\n- Weight: %.1f kg\n- Height: %.1f cm\n", u.AgeYears, u.Gender, u.WeightKg, u.HeightCm)
		fmt.Fprintf(&sb, "- Goal: %s\n- Activity level: %s\n", u.Goal, u.ActivityLevel)
		fmt.Fprintf(&sb, "- BMI: %.1f (%s)\n- Daily calorie target: %d kcal\n", u.BMI, utils.BMICategory(u.BMI), u.RecommendedCalories)
	} else {
		sb.WriteString("- (profile not completed yet)\n")
	}

	sb.WriteString("\nToday's food:\n")
	var total float64
	if len(scans) == 0 {
		sb.WriteString("- (nothing logged yet)\n")
	}
	for _, sc := range scans {
		for _, it := range sc.Items {
			fmt.Fprintf(&sb, "- %s (%s): %.0f kcal, %.0fg protein, %.0fg carbs, %.0fg fat, %.0fg sugar, %.0fmg sodium\n",
				it.Name, it.Portion, it.Calories, it.Protein, it.Carbs, it.Fat, it.Sugar, it.Sodium)
		}
		total += sc.TotalCalories
	}
	fmt.Fprintf(&sb, "Total so far: %.0f kcal\n", total)

	sb.WriteString("\nSuggest 3-5 healthy, practical adjustments or additions for the rest of the day, ")
	sb.WriteString("focusing on staying within the calorie target, fiber, and reduced added sugars/sodium. ")
	sb.WriteString("Prefer foods commonly available in Indonesia. Return plain bullet points, one per line.")
	return sb.String()
}

func splitBullets(text string) []string {
	var recs []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-•* \t")
		line = strings.TrimSpace(line)
		if line != "" {
			recs = append(recs, line)
		}
	}
	return recs
}
