package services

import "context"

// AnalysisInput is what the analyzer sees for one scan. Image may be empty for
// text-only scans; Hints are optional label guesses for the photo.
type AnalysisInput struct {
	Description string
	Image       []byte
	MIMEType    string
	Hints       []string
}

type EstimatedItem struct {
	Name     string  `json:"name"`
	Portion  string  `json:"portion"`
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
	SugarG   float64 `json:"sugar_g"`
	SodiumMg float64 `json:"sodium_mg"`
}

// NutritionEstimate is the analyzer's answer: one entry per recognised item.
type NutritionEstimate struct {
	Items       []EstimatedItem `json:"items"`
	HealthScore int             `json:"health_score"`
	Notes       string          `json:"notes"`
}

type Analyzer interface {
	Analyze(ctx context.Context, in AnalysisInput) (*NutritionEstimate, error)
}

// Advisor produces free-text coaching tips.
type Advisor interface {
	Advise(ctx context.Context, prompt string) (string, error)
}
