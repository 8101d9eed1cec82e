package utils

import (
	"fmt"
	"math"
	"strings"
)

// AssessmentContext personalises the nutrient rules for one user.
type AssessmentContext struct {
	AgeYears      int
	CalorieTarget float64 // if 0, the rules assume 2000 kcal for % of day conversions
}

// WarningSeverity categorizes how serious the flag is.
type WarningSeverity string

const (
	Info    WarningSeverity = "info"
	Caution WarningSeverity = "caution"
	High    WarningSeverity = "high"
)

// Warning is a structured finding attached to a scanned item.
type Warning struct {
	Code           string          `json:"code"`
	Severity       WarningSeverity `json:"severity"`
	Message        string          `json:"message"`
	Metric         string          `json:"metric,omitempty"`
	Value          float64         `json:"value,omitempty"`
	PercentOfLimit float64         `json:"percent_of_limit,omitempty"`
}

// Nutrients is the per-item estimate returned by the analyzer.
type Nutrients struct {
	Calories float64
	ProteinG float64
	CarbsG   float64
	FatG     float64
	SugarG   float64
	SodiumMg float64
	ServingG float64
}

func BuildAssessmentContext(ageYears, recommendedCalories int) AssessmentContext {
	return AssessmentContext{AgeYears: ageYears, CalorieTarget: float64(recommendedCalories)}
}

// AssessNutrients runs the dietary-guideline rules over one item. Rules only fire when
// the relevant inputs are present.
func AssessNutrients(name string, n Nutrients, ctx AssessmentContext) []Warning {
	warnings := []Warning{}

	kcal := n.Calories
	if kcal <= 0 {
		kcal = 4*n.CarbsG + 4*n.ProteinG + 9*n.FatG
	}
	kcalTarget := ctx.CalorieTarget
	if kcalTarget <= 0 {
		kcalTarget = 2000
	}

	// 1) Sugars: <10% kcal/day, avoid entirely under age 2
	sugarDailyLimitG := (0.10 * kcalTarget) / 4.0
	if ctx.AgeYears > 0 && ctx.AgeYears < 2 && n.SugarG > 0 {
		warnings = append(warnings, Warning{
			Code:     "sugars_infants",
			Severity: High,
			Message:  "Under age 2: avoid added sugars.",
			Metric:   "sugar_g",
			Value:    round2(n.SugarG),
		})
	} else if n.SugarG > 0 {
		share := n.SugarG / sugarDailyLimitG
		switch {
		case share >= 0.40:
			warnings = append(warnings, Warning{
				Code:           "sugar_very_high_daily_share",
				Severity:       High,
				Message:        fmt.Sprintf("This serving provides ~%.0f%% of the daily sugar limit.", share*100),
				Metric:         "sugar_%_of_daily_limit",
				Value:          round2(share * 100),
				PercentOfLimit: round2(share * 100),
			})
		case share >= 0.20:
			warnings = append(warnings, Warning{
				Code:           "sugar_high_daily_share",
				Severity:       Caution,
				Message:        fmt.Sprintf("High share of the daily sugar limit from one serving (~%.0f%%).", share*100),
				Metric:         "sugar_%_of_daily_limit",
				Value:          round2(share * 100),
				PercentOfLimit: round2(share * 100),
			})
		}
	}

	// 2) Sodium: age-aware daily limit, gates at 20% and 40% of the day
	if sodLimit := sodiumLimitByAge(ctx.AgeYears); n.SodiumMg > 0 {
		share := n.SodiumMg / sodLimit
		if share >= 0.40 {
			warnings = append(warnings, Warning{
				Code:           "sodium_very_high",
				Severity:       High,
				Message:        fmt.Sprintf("Very high sodium for one serving (≈%.0f%% of the daily limit).", share*100),
				Metric:         "sodium_%_of_daily_limit",
				Value:          round2(share * 100),
				PercentOfLimit: round2(share * 100),
			})
		} else if share >= 0.20 {
			warnings = append(warnings, Warning{
				Code:           "sodium_high",
				Severity:       Caution,
				Message:        fmt.Sprintf("High sodium for one serving (≈%.0f%% of the daily limit).", share*100),
				Metric:         "sodium_%_of_daily_limit",
				Value:          round2(share * 100),
				PercentOfLimit: round2(share * 100),
			})
		}
	}

	// 3) Share of the personal daily calorie budget
	if kcal > 0 {
		share := kcal / kcalTarget
		switch {
		case share >= 0.50:
			warnings = append(warnings, Warning{
				Code:           "calories_half_day",
				Severity:       High,
				Message:        fmt.Sprintf("This item alone is ~%.0f%% of your daily calorie target.", share*100),
				Metric:         "kcal_%_of_target",
				Value:          round2(share * 100),
				PercentOfLimit: round2(share * 100),
			})
		case share >= 0.35:
			warnings = append(warnings, Warning{
				Code:           "calories_large_share",
				Severity:       Caution,
				Message:        fmt.Sprintf("Large portion: ~%.0f%% of your daily calorie target.", share*100),
				Metric:         "kcal_%_of_target",
				Value:          round2(share * 100),
				PercentOfLimit: round2(share * 100),
			})
		}
	}

	// 4) AMDR on macro calories
	if totalFromMacros := 4*n.CarbsG + 4*n.ProteinG + 9*n.FatG; totalFromMacros > 0 {
		fPct := (9 * n.FatG) / totalFromMacros
		pPct := (4 * n.ProteinG) / totalFromMacros
		if fPct > 0.35 {
			warnings = append(warnings, Warning{
				Code:     "amdr_fat_high",
				Severity: Info,
				Message:  fmt.Sprintf("Fat ~%.0f%% of macro calories (AMDR 20–35%%).", fPct*100),
				Metric:   "fat_%_of_macro_kcal",
				Value:    round2(fPct * 100),
			})
		}
		if pPct < 0.10 && kcal >= 150 {
			warnings = append(warnings, Warning{
				Code:     "amdr_protein_low",
				Severity: Info,
				Message:  fmt.Sprintf("Protein ~%.0f%% of macro calories (AMDR 10–35%%).", pPct*100),
				Metric:   "protein_%_of_macro_kcal",
				Value:    round2(pPct * 100),
			})
		}
	}

	// 5) Energy density, when the serving weight is known
	if n.ServingG > 0 && kcal > 0 {
		if kcalPer100g := (kcal / n.ServingG) * 100.0; kcalPer100g >= 275 {
			warnings = append(warnings, Warning{
				Code:     "energy_density_very_high",
				Severity: Info,
				Message:  "Very energy-dense food; mindful portions help it fit your target.",
				Metric:   "kcal_per_100g",
				Value:    round2(kcalPer100g),
			})
		}
	}

	// 6) Name heuristics
	lower := strings.ToLower(name)
	switch {
	case containsAny(lower, "fried", "goreng", "gorengan", "crispy", "keripik"):
		warnings = append(warnings, Warning{
			Code:     "fried_food_nudge",
			Severity: Info,
			Message:  "Deep-fried item; grilled, steamed or boiled versions are usually lighter.",
		})
	case containsAny(lower, "soda", "soft drink", "boba", "bubble tea", "sweet tea", "es teh manis", "syrup", "sirup"):
		warnings = append(warnings, Warning{
			Code:     "sugary_drink_nudge",
			Severity: Info,
			Message:  "Sugary drink; water or unsweetened tea saves the calories for food.",
		})
	}

	return warnings
}

// HealthScoreFromWarnings derives a 1..10 score when the analyzer returned none.
func HealthScoreFromWarnings(ws []Warning) int {
	score := 10
	for _, w := range ws {
		switch w.Severity {
		case High:
			score -= 3
		case Caution:
			score -= 2
		case Info:
			score--
		}
	}
	if score < 1 {
		return 1
	}
	return score
}

// HasBlockingWarning is true when any warning is caution or worse.
func HasBlockingWarning(ws []Warning) bool {
	for _, w := range ws {
		if w.Severity == High || w.Severity == Caution {
			return true
		}
	}
	return false
}

func sodiumLimitByAge(age int) float64 {
	switch {
	case age > 0 && age <= 3:
		return 1200 // mg/day
	case age >= 4 && age <= 8:
		return 1500
	case age >= 9 && age <= 13:
		return 1800
	default:
		return 2300
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
