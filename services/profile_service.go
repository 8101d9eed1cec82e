package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/F1H444/si-kalori-sub000/models"
	"github.com/F1H444/si-kalori-sub000/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OnboardingInput is the questionnaire as posted by the client. Either Birthday
// (YYYY-MM-DD) or AgeYears must be present.
type OnboardingInput struct {
	FullName      string  `json:"full_name"`
	WeightKg      float64 `json:"weight_kg"`
	HeightCm      float64 `json:"height_cm"`
	AgeYears      int     `json:"age_years"`
	Birthday      string  `json:"birthday"`
	Gender        string  `json:"gender"`
	ActivityLevel string  `json:"activity_level"`
	Goal          string  `json:"goal"`
}

// ProfileUpdate carries only the fields the client wants to change.
type ProfileUpdate struct {
	FullName      *string  `json:"full_name"`
	WeightKg      *float64 `json:"weight_kg"`
	HeightCm      *float64 `json:"height_cm"`
	AgeYears      *int     `json:"age_years"`
	Birthday      *string  `json:"birthday"`
	Gender        *string  `json:"gender"`
	ActivityLevel *string  `json:"activity_level"`
	Goal          *string  `json:"goal"`
}

type Profile struct {
	ID            uint                   `json:"id"`
	Email         string                 `json:"email"`
	FullName      string                 `json:"full_name"`
	Onboarded     bool                   `json:"onboarded"`
	Biometrics    utils.BiometricProfile `json:"biometrics"`
	Birthday      string                 `json:"birthday,omitempty"`
	Metrics       utils.DerivedMetrics   `json:"metrics"`
	BMICategory   string                 `json:"bmi_category"`
	Premium       bool                   `json:"premium"`
	PremiumUntil  *time.Time             `json:"premium_until,omitempty"`
	MetricsUpdate *time.Time             `json:"metrics_updated_at,omitempty"`
}

type ProfileService struct {
	db      *gorm.DB
	calc    *utils.Calculator
	metrics *Metrics
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewProfileService(db *gorm.DB, calc *utils.Calculator, metrics *Metrics, log logrus.FieldLogger) *ProfileService {
	return &ProfileService{db: db, calc: calc, metrics: metrics, log: log, now: time.Now}
}

func (s *ProfileService) findUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ? AND disabled = ?", userID, false).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *ProfileService) GetProfile(ctx context.Context, userID uint) (*Profile, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.toProfile(user), nil
}

func (s *ProfileService) toProfile(u *models.User) *Profile {
	p := &Profile{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Onboarded: u.Onboarded,
		Biometrics: utils.BiometricProfile{
			WeightKg:      u.WeightKg,
			HeightCm:      u.HeightCm,
			AgeYears:      s.ageOf(u),
			Gender:        utils.Gender(u.Gender),
			ActivityLevel: utils.ActivityLevel(u.ActivityLevel),
			Goal:          utils.Goal(u.Goal),
		},
		Metrics: utils.DerivedMetrics{
			BMI:                 u.BMI,
			BMR:                 u.BMR,
			TDEE:                u.TDEE,
			RecommendedCalories: u.RecommendedCalories,
		},
		BMICategory:   utils.BMICategory(u.BMI),
		Premium:       u.IsPremium(s.now()),
		PremiumUntil:  u.PremiumUntil,
		MetricsUpdate: u.MetricsUpdatedAt,
	}
	if !u.Birthday.IsZero() {
		p.Birthday = u.Birthday.Format("2006-01-02")
	}
	return p
}

func (s *ProfileService) ageOf(u *models.User) int {
	return currentAge(u, s.now())
}

func parseBirthday(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, &utils.InvalidInputError{Field: "birthday", Reason: "expected YYYY-MM-DD"}
	}
	return t, nil
}

// CompleteOnboarding stores the questionnaire and the metrics derived from it.
// Submitting the same answers twice leaves the row in the same state.
func (s *ProfileService) CompleteOnboarding(ctx context.Context, userID uint, in OnboardingInput) (*Profile, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.Birthday != "" {
		bd, err := parseBirthday(in.Birthday)
		if err != nil {
			return nil, err
		}
		user.Birthday = bd
	}
	if in.AgeYears > 0 && in.Birthday == "" {
		user.Birthday = time.Time{}
		user.AgeYears = in.AgeYears
	}
	if name := strings.TrimSpace(in.FullName); name != "" {
		user.FullName = name
	}
	user.WeightKg = in.WeightKg
	user.HeightCm = in.HeightCm
	user.Gender = in.Gender
	user.ActivityLevel = in.ActivityLevel
	user.Goal = in.Goal

	if err := s.applyMetrics(user); err != nil {
		return nil, err
	}
	user.Onboarded = true

	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, fmt.Errorf("save onboarding: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"user_id":              user.ID,
		"goal":                 user.Goal,
		"recommended_calories": user.RecommendedCalories,
	}).Info("onboarding completed")
	return s.toProfile(user), nil
}

// UpdateProfile merges the changed fields; metrics are only recomputed once the
// user has been onboarded.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID uint, in ProfileUpdate) (*Profile, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.FullName != nil {
		user.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.WeightKg != nil {
		user.WeightKg = *in.WeightKg
	}
	if in.HeightCm != nil {
		user.HeightCm = *in.HeightCm
	}
	if in.Birthday != nil {
		bd, err := parseBirthday(*in.Birthday)
		if err != nil {
			return nil, err
		}
		user.Birthday = bd
	} else if in.AgeYears != nil {
		user.Birthday = time.Time{}
		user.AgeYears = *in.AgeYears
	}
	if in.Gender != nil {
		user.Gender = *in.Gender
	}
	if in.ActivityLevel != nil {
		user.ActivityLevel = *in.ActivityLevel
	}
	if in.Goal != nil {
		user.Goal = *in.Goal
	}

	if user.Onboarded {
		if err := s.applyMetrics(user); err != nil {
			return nil, err
		}
	}
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	return s.toProfile(user), nil
}

// PreviewMetrics computes metrics without touching storage.
func (s *ProfileService) PreviewMetrics(p utils.BiometricProfile) (utils.DerivedMetrics, error) {
	m, err := s.calc.Calculate(p)
	if err != nil {
		return utils.DerivedMetrics{}, err
	}
	s.metrics.Calculations.WithLabelValues(string(p.Goal)).Inc()
	return m, nil
}

// applyMetrics normalises the enum columns and overwrites the derived ones.
func (s *ProfileService) applyMetrics(user *models.User) error {
	gender, err := utils.ParseGender(user.Gender)
	if err != nil {
		return err
	}
	level, err := utils.ParseActivityLevel(user.ActivityLevel)
	if err != nil {
		return err
	}
	goal, err := utils.ParseGoal(user.Goal)
	if err != nil {
		return err
	}

	age := s.ageOf(user)
	m, err := s.calc.Calculate(utils.BiometricProfile{
		WeightKg:      user.WeightKg,
		HeightCm:      user.HeightCm,
		AgeYears:      age,
		Gender:        gender,
		ActivityLevel: level,
		Goal:          goal,
	})
	if err != nil {
		return err
	}
	s.metrics.Calculations.WithLabelValues(string(goal)).Inc()

	changed := user.MetricsUpdatedAt == nil || user.BMI != m.BMI || user.BMR != m.BMR ||
		user.TDEE != m.TDEE || user.RecommendedCalories != m.RecommendedCalories
	user.AgeYears = age
	user.Gender = string(gender)
	user.ActivityLevel = string(level)
	user.Goal = string(goal)
	user.BMI = m.BMI
	user.BMR = m.BMR
	user.TDEE = m.TDEE
	user.RecommendedCalories = m.RecommendedCalories
	if changed {
		now := s.now()
		user.MetricsUpdatedAt = &now
	}
	return nil
}
