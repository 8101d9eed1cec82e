package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/F1H444/si-kalori-sub000/models"

	"gorm.io/gorm"
)

// MaxRangeDays bounds the inclusive day span of range summaries and analytics.
const MaxRangeDays = 366

// checkSpan validates an inclusive [from, to] span of local midnights.
func checkSpan(from, to time.Time) error {
	if to.Before(from) {
		return fmt.Errorf("%w: 'to' is before 'from'", ErrValidation)
	}
	if to.After(from.AddDate(0, 0, MaxRangeDays-1)) {
		return fmt.Errorf("%w: range longer than %d days", ErrValidation, MaxRangeDays)
	}
	return nil
}

type HistoryService struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

func NewHistoryService(db *gorm.DB, loc *time.Location) *HistoryService {
	if loc == nil {
		loc = time.Local
	}
	return &HistoryService{db: db, loc: loc, now: time.Now}
}

// ---------- Targets ----------

// DailyTargets are derived from the recommended calories: 20% protein, 50% carbs,
// 30% fat, sugar under 10% of energy and the adult sodium limit.
type DailyTargets struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein_g"`
	Carbs    float64 `json:"carbs_g"`
	Fat      float64 `json:"fat_g"`
	Sugar    float64 `json:"sugar_g"`
	Sodium   float64 `json:"sodium_mg"`
}

func TargetsFor(recommendedCalories int) DailyTargets {
	kcal := float64(recommendedCalories)
	if kcal <= 0 {
		return DailyTargets{}
	}
	return DailyTargets{
		Calories: kcal,
		Protein:  round2(kcal * 0.20 / 4),
		Carbs:    round2(kcal * 0.50 / 4),
		Fat:      round2(kcal * 0.30 / 9),
		Sugar:    round2(kcal * 0.10 / 4),
		Sodium:   2300,
	}
}

type dayTotals struct {
	Calories, Protein, Carbs, Fat, Sugar, Sodium float64
	Scans                                        int
	Safe, Unsafe                                 int
}

// ---------- List / Get / Delete ----------

type ScanPage struct {
	Items []models.FoodScan `json:"items"`
	Total int64             `json:"total"`
}

// List returns the user's scans newest first. Zero from/to leave that side open.
func (s *HistoryService) List(ctx context.Context, userID uint, from, to time.Time, limit, offset int) (*ScanPage, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	q := s.db.WithContext(ctx).Model(&models.FoodScan{}).Where("user_id = ?", userID)
	if !from.IsZero() {
		q = q.Where("scanned_at >= ?", s.dayStart(from))
	}
	if !to.IsZero() {
		q = q.Where("scanned_at <= ?", s.dayEnd(to))
	}

	var page ScanPage
	if err := q.Count(&page.Total).Error; err != nil {
		return nil, err
	}
	if err := q.Preload("Items").
		Order("scanned_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&page.Items).Error; err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *HistoryService) Get(ctx context.Context, userID, scanID uint) (*models.FoodScan, error) {
	var scan models.FoodScan
	err := s.db.WithContext(ctx).Preload("Items").
		Where("id = ? AND user_id = ?", scanID, userID).
		First(&scan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: scan %d", ErrNotFound, scanID)
	}
	if err != nil {
		return nil, err
	}
	return &scan, nil
}

// Delete removes a scan owned by the user; someone else's scan looks missing.
func (s *HistoryService) Delete(ctx context.Context, userID, scanID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", scanID, userID).Delete(&models.FoodScan{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: scan %d", ErrNotFound, scanID)
		}
		return tx.Where("food_scan_id = ?", scanID).Delete(&models.FoodScanItem{}).Error
	})
}

// ---------- Daily summary ----------

type Metric struct {
	Actual  float64 `json:"actual"`
	Target  float64 `json:"target"`
	Percent float64 `json:"percent"`
}

type DailySummary struct {
	Date              string            `json:"date"`
	TargetCalories    int               `json:"target_calories"`
	ConsumedCalories  float64           `json:"consumed_calories"`
	RemainingCalories float64           `json:"remaining_calories"`
	Percent           float64           `json:"percent"`     // capped at 100 for the progress bar
	RawPercent        float64           `json:"raw_percent"` // may exceed 100
	OverTarget        bool              `json:"over_target"`
	ScanCount         int               `json:"scan_count"`
	Nutrients         map[string]Metric `json:"nutrients"`
	ProfileIncomplete bool              `json:"profile_incomplete,omitempty"`
}

func (s *HistoryService) DailySummary(ctx context.Context, userID uint, day time.Time) (*DailySummary, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	day = s.dayStart(day)
	totals, err := s.totalsByDay(ctx, userID, day, day)
	if err != nil {
		return nil, err
	}
	t := totals[day.Format("2006-01-02")]
	tg := TargetsFor(user.RecommendedCalories)

	raw := pct(t.Calories, tg.Calories)
	out := &DailySummary{
		Date:              day.Format("2006-01-02"),
		TargetCalories:    user.RecommendedCalories,
		ConsumedCalories:  round2(t.Calories),
		RemainingCalories: round2(math.Max(0, tg.Calories-t.Calories)),
		Percent:           math.Min(raw, 100),
		RawPercent:        raw,
		OverTarget:        tg.Calories > 0 && t.Calories > tg.Calories,
		ScanCount:         t.Scans,
		Nutrients:         nutrientMetrics(t, tg),
		ProfileIncomplete: !user.Onboarded,
	}
	return out, nil
}

func nutrientMetrics(t dayTotals, tg DailyTargets) map[string]Metric {
	return map[string]Metric{
		"calories":  {Actual: round2(t.Calories), Target: tg.Calories, Percent: pct(t.Calories, tg.Calories)},
		"protein_g": {Actual: round2(t.Protein), Target: tg.Protein, Percent: pct(t.Protein, tg.Protein)},
		"carbs_g":   {Actual: round2(t.Carbs), Target: tg.Carbs, Percent: pct(t.Carbs, tg.Carbs)},
		"fat_g":     {Actual: round2(t.Fat), Target: tg.Fat, Percent: pct(t.Fat, tg.Fat)},
		"sugar_g":   {Actual: round2(t.Sugar), Target: tg.Sugar, Percent: pct(t.Sugar, tg.Sugar)},
		"sodium_mg": {Actual: round2(t.Sodium), Target: tg.Sodium, Percent: pct(t.Sodium, tg.Sodium)},
	}
}

// ---------- Weekly overview ----------

type WeeklyOverviewResponse struct {
	WeekStart string `json:"week_start"`
	Mode      string `json:"mode"` // chart|detailed
	Days      any    `json:"days"`
}

type DayChart struct {
	Date        string             `json:"date"`
	Percentages map[string]float64 `json:"percentages"`
}

type DayDetailed struct {
	Date      string            `json:"date"`
	ScanCount int               `json:"scan_count"`
	Metrics   map[string]Metric `json:"metrics"`
}

// WeekStart returns the Monday on or before t.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	d := t.AddDate(0, 0, -offset)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, t.Location())
}

func (s *HistoryService) WeeklyOverview(ctx context.Context, userID uint, weekStart time.Time, mode string) (*WeeklyOverviewResponse, error) {
	if mode == "" {
		mode = "chart"
	}
	if mode != "chart" && mode != "detailed" {
		return nil, fmt.Errorf("%w: mode must be 'chart' or 'detailed'", ErrValidation)
	}
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	from := WeekStart(weekStart.In(s.loc))
	to := from.AddDate(0, 0, 6)
	idx, err := s.totalsByDay(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	tg := TargetsFor(user.RecommendedCalories)

	out := &WeeklyOverviewResponse{WeekStart: from.Format("2006-01-02"), Mode: mode}
	if mode == "chart" {
		days := make([]DayChart, 0, 7)
		for i := 0; i < 7; i++ {
			key := from.AddDate(0, 0, i).Format("2006-01-02")
			t := idx[key]
			days = append(days, DayChart{
				Date: key,
				Percentages: map[string]float64{
					"calories":      pct(t.Calories, tg.Calories),
					"protein":       pct(t.Protein, tg.Protein),
					"carbohydrates": pct(t.Carbs, tg.Carbs),
					"fat":           pct(t.Fat, tg.Fat),
					"sugar":         pct(t.Sugar, tg.Sugar),
					"sodium":        pct(t.Sodium, tg.Sodium),
				},
			})
		}
		out.Days = days
		return out, nil
	}

	days := make([]DayDetailed, 0, 7)
	for i := 0; i < 7; i++ {
		key := from.AddDate(0, 0, i).Format("2006-01-02")
		t := idx[key]
		days = append(days, DayDetailed{Date: key, ScanCount: t.Scans, Metrics: nutrientMetrics(t, tg)})
	}
	out.Days = days
	return out, nil
}

// ---------- Range summary ----------

type NutrAvg struct {
	AvgConsumed float64 `json:"avg_consumed"`
	AvgGoal     float64 `json:"avg_goal,omitempty"`
	AvgPercent  float64 `json:"avg_percent,omitempty"`
	Unit        string  `json:"unit,omitempty"`
}

type SafetyBreakdown struct {
	Safe   int64 `json:"safe"`
	Unsafe int64 `json:"unsafe"`
	Total  int64 `json:"total"`
}

type RangeSummary struct {
	From        string             `json:"from"`
	To          string             `json:"to"`
	DaysCounted int                `json:"days_counted"`
	Nutrients   map[string]NutrAvg `json:"nutrients"`
	SafetyPct   float64            `json:"safety_score_pct"`
	Safety      SafetyBreakdown    `json:"safety"`
}

// Summary averages daily intake over [from, to]. With includeMissing, days
// without scans count as zero intake.
func (s *HistoryService) Summary(ctx context.Context, userID uint, from, to time.Time, includeMissing bool) (*RangeSummary, error) {
	from, to = s.dayStart(from), s.dayStart(to)
	if err := checkSpan(from, to); err != nil {
		return nil, err
	}
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx, err := s.totalsByDay(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	tg := TargetsFor(user.RecommendedCalories)

	var keys []string
	if includeMissing {
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			keys = append(keys, d.Format("2006-01-02"))
		}
	} else {
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			if _, ok := idx[d.Format("2006-01-02")]; ok {
				keys = append(keys, d.Format("2006-01-02"))
			}
		}
	}

	type acc struct{ sum, gsum, psum float64 }
	m := map[string]*acc{"calories": {}, "protein": {}, "carbs": {}, "fat": {}, "sugar": {}, "sodium": {}}
	var br SafetyBreakdown
	for _, k := range keys {
		t := idx[k]
		for name, pair := range map[string][2]float64{
			"calories": {t.Calories, tg.Calories},
			"protein":  {t.Protein, tg.Protein},
			"carbs":    {t.Carbs, tg.Carbs},
			"fat":      {t.Fat, tg.Fat},
			"sugar":    {t.Sugar, tg.Sugar},
			"sodium":   {t.Sodium, tg.Sodium},
		} {
			m[name].sum += pair[0]
			m[name].gsum += pair[1]
			if pair[1] > 0 {
				m[name].psum += pair[0] / pair[1] * 100
			}
		}
		br.Safe += int64(t.Safe)
		br.Unsafe += int64(t.Unsafe)
	}
	br.Total = br.Safe + br.Unsafe

	units := map[string]string{"calories": "kcal", "protein": "g", "carbs": "g", "fat": "g", "sugar": "g", "sodium": "mg"}
	out := &RangeSummary{
		From:        from.Format("2006-01-02"),
		To:          to.Format("2006-01-02"),
		DaysCounted: len(keys),
		Nutrients:   make(map[string]NutrAvg, len(m)),
		Safety:      br,
		SafetyPct:   computeSafetyScore(br, 1, 1),
	}
	for name, a := range m {
		out.Nutrients[name] = NutrAvg{
			AvgConsumed: avg(a.sum, len(keys)),
			AvgGoal:     avg(a.gsum, len(keys)),
			AvgPercent:  avg(a.psum, len(keys)),
			Unit:        units[name],
		}
	}
	return out, nil
}

// computeSafetyScore smooths small samples with a Beta(alpha, beta) prior.
func computeSafetyScore(br SafetyBreakdown, alpha, beta float64) float64 {
	total := float64(br.Total) + alpha + beta
	if total <= 0 {
		return 100.0
	}
	return round2((float64(br.Safe) + alpha) / total * 100.0)
}

// ---------- internals ----------

func (s *HistoryService) user(ctx context.Context, userID uint) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// totalsByDay groups scans in [from, to] by local calendar day.
func (s *HistoryService) totalsByDay(ctx context.Context, userID uint, from, to time.Time) (map[string]dayTotals, error) {
	var scans []models.FoodScan
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND scanned_at BETWEEN ? AND ?", userID, s.dayStart(from), s.dayEnd(to)).
		Find(&scans).Error; err != nil {
		return nil, err
	}
	idx := make(map[string]dayTotals)
	for _, sc := range scans {
		key := sc.ScannedAt.In(s.loc).Format("2006-01-02")
		t := idx[key]
		t.Calories += sc.TotalCalories
		t.Protein += sc.TotalProtein
		t.Carbs += sc.TotalCarbs
		t.Fat += sc.TotalFat
		t.Sugar += sc.TotalSugar
		t.Sodium += sc.TotalSodium
		t.Scans++
		if sc.Safe {
			t.Safe++
		} else {
			t.Unsafe++
		}
		idx[key] = t
	}
	return idx, nil
}

func (s *HistoryService) dayStart(t time.Time) time.Time {
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}

func (s *HistoryService) dayEnd(t time.Time) time.Time {
	return s.dayStart(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func pct(actual, goal float64) float64 {
	if goal <= 0 {
		return 0
	}
	return round2(actual / goal * 100.0)
}

func avg(sum float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	return round2(sum / float64(n))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
