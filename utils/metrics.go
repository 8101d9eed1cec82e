package utils

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

type ActivityLevel string

const (
	Sedentary  ActivityLevel = "sedentary"
	Light      ActivityLevel = "light"
	Moderate   ActivityLevel = "moderate"
	Active     ActivityLevel = "active"
	VeryActive ActivityLevel = "veryActive"
)

type Goal string

const (
	GoalLose     Goal = "lose"
	GoalMaintain Goal = "maintain"
	GoalGain     Goal = "gain"
)

// ErrInvalidInput is matched by every *InvalidInputError via errors.Is.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputError reports which field of a biometric profile was rejected.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

func invalid(field, format string, args ...any) error {
	return &InvalidInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// BiometricProfile is the onboarding questionnaire answer set.
type BiometricProfile struct {
	WeightKg      float64       `json:"weight_kg" yaml:"weight_kg"`
	HeightCm      float64       `json:"height_cm" yaml:"height_cm"`
	AgeYears      int           `json:"age_years" yaml:"age_years"`
	Gender        Gender        `json:"gender" yaml:"gender"`
	ActivityLevel ActivityLevel `json:"activity_level" yaml:"activity_level"`
	Goal          Goal          `json:"goal" yaml:"goal"`
}

type DerivedMetrics struct {
	BMI                 float64 `json:"bmi"`
	BMR                 float64 `json:"bmr"`
	TDEE                float64 `json:"tdee"`
	RecommendedCalories int     `json:"recommended_calories"`
}

// CalculatorConfig holds the tunable tables of the calculator.
type CalculatorConfig struct {
	ActivityMultipliers map[ActivityLevel]float64 `yaml:"activity_multipliers"`
	GoalOffsets         map[Goal]float64          `yaml:"goal_offsets"`
	MinCalories         float64                   `yaml:"min_calories"`
}

func DefaultCalculatorConfig() CalculatorConfig {
	return CalculatorConfig{
		ActivityMultipliers: map[ActivityLevel]float64{
			Sedentary:  1.2,
			Light:      1.375,
			Moderate:   1.55,
			Active:     1.725,
			VeryActive: 1.9,
		},
		GoalOffsets: map[Goal]float64{
			GoalLose:     -500,
			GoalMaintain: 0,
			GoalGain:     500,
		},
		MinCalories: 1200,
	}
}

// Validate checks that every enum value has an entry and the numbers are usable.
func (c CalculatorConfig) Validate() error {
	for _, lvl := range []ActivityLevel{Sedentary, Light, Moderate, Active, VeryActive} {
		m, ok := c.ActivityMultipliers[lvl]
		if !ok {
			return fmt.Errorf("activity multiplier for %q missing", lvl)
		}
		if !isFinite(m) || m < 1 {
			return fmt.Errorf("activity multiplier for %q must be >= 1, got %v", lvl, m)
		}
	}
	for _, g := range []Goal{GoalLose, GoalMaintain, GoalGain} {
		off, ok := c.GoalOffsets[g]
		if !ok {
			return fmt.Errorf("goal offset for %q missing", g)
		}
		if !isFinite(off) {
			return fmt.Errorf("goal offset for %q must be finite", g)
		}
	}
	if !isFinite(c.MinCalories) || c.MinCalories < 0 {
		return fmt.Errorf("min calories must be >= 0, got %v", c.MinCalories)
	}
	return nil
}

// Calculator is immutable after construction and safe for concurrent use.
type Calculator struct {
	cfg CalculatorConfig
}

func NewCalculator(cfg CalculatorConfig) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("calculator config: %w", err)
	}
	// copy the maps so later mutation by the caller cannot leak in
	own := CalculatorConfig{
		ActivityMultipliers: make(map[ActivityLevel]float64, len(cfg.ActivityMultipliers)),
		GoalOffsets:         make(map[Goal]float64, len(cfg.GoalOffsets)),
		MinCalories:         cfg.MinCalories,
	}
	for k, v := range cfg.ActivityMultipliers {
		own.ActivityMultipliers[k] = v
	}
	for k, v := range cfg.GoalOffsets {
		own.GoalOffsets[k] = v
	}
	return &Calculator{cfg: own}, nil
}

var defaultCalculator = func() *Calculator {
	c, err := NewCalculator(DefaultCalculatorConfig())
	if err != nil {
		panic(err)
	}
	return c
}()

// CalculateAllMetrics runs the default calculator.
func CalculateAllMetrics(weightKg, heightCm float64, ageYears int, gender Gender, activityLevel ActivityLevel, goal Goal) (DerivedMetrics, error) {
	return defaultCalculator.Calculate(BiometricProfile{
		WeightKg:      weightKg,
		HeightCm:      heightCm,
		AgeYears:      ageYears,
		Gender:        gender,
		ActivityLevel: activityLevel,
		Goal:          goal,
	})
}

func (c *Calculator) Config() CalculatorConfig { return c.cfg }

func (c *Calculator) Calculate(p BiometricProfile) (DerivedMetrics, error) {
	if err := c.validate(p); err != nil {
		return DerivedMetrics{}, err
	}

	bmr := BMR(p.WeightKg, p.HeightCm, p.AgeYears, p.Gender)
	tdee := bmr * c.cfg.ActivityMultipliers[p.ActivityLevel]

	target := math.Round(tdee + c.cfg.GoalOffsets[p.Goal])
	if target < c.cfg.MinCalories {
		target = math.Ceil(c.cfg.MinCalories)
	}

	return DerivedMetrics{
		BMI:                 round1(BMI(p.HeightCm, p.WeightKg)),
		BMR:                 round1(bmr),
		TDEE:                round1(tdee),
		RecommendedCalories: int(target),
	}, nil
}

func (c *Calculator) validate(p BiometricProfile) error {
	if !isFinite(p.WeightKg) || p.WeightKg <= 0 {
		return invalid("weight_kg", "must be a positive finite number, got %v", p.WeightKg)
	}
	if !isFinite(p.HeightCm) || p.HeightCm <= 0 {
		return invalid("height_cm", "must be a positive finite number, got %v", p.HeightCm)
	}
	if p.AgeYears <= 0 {
		return invalid("age_years", "must be a positive integer, got %d", p.AgeYears)
	}
	if p.Gender != Male && p.Gender != Female {
		return invalid("gender", "unknown value %q", p.Gender)
	}
	if _, ok := c.cfg.ActivityMultipliers[p.ActivityLevel]; !ok {
		return invalid("activity_level", "unknown value %q", p.ActivityLevel)
	}
	if _, ok := c.cfg.GoalOffsets[p.Goal]; !ok {
		return invalid("goal", "unknown value %q", p.Goal)
	}
	return nil
}

// BMR is the Mifflin-St Jeor basal metabolic rate in kcal/day.
// Inputs are assumed validated.
func BMR(weightKg, heightCm float64, ageYears int, gender Gender) float64 {
	base := 10*weightKg + 6.25*heightCm - 5*float64(ageYears)
	if gender == Male {
		return base + 5
	}
	return base - 161
}

func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m", "laki-laki":
		return Male, nil
	case "female", "f", "perempuan":
		return Female, nil
	}
	return "", invalid("gender", "unknown value %q", s)
}

func ParseActivityLevel(s string) (ActivityLevel, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	switch key {
	case "sedentary":
		return Sedentary, nil
	case "light":
		return Light, nil
	case "moderate":
		return Moderate, nil
	case "active":
		return Active, nil
	case "veryactive":
		return VeryActive, nil
	}
	return "", invalid("activity_level", "unknown value %q", s)
}

func ParseGoal(s string) (Goal, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lose":
		return GoalLose, nil
	case "maintain":
		return GoalMaintain, nil
	case "gain":
		return GoalGain, nil
	}
	return "", invalid("goal", "unknown value %q", s)
}

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func round1(f float64) float64 { return math.Round(f*10) / 10 }
