package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/F1H444/si-kalori-sub000/models"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

func addScan(t *testing.T, db *gorm.DB, userID uint, at time.Time, kcal float64, safe bool, names ...string) *models.FoodScan {
	t.Helper()
	s := &models.FoodScan{
		UserID:        userID,
		Source:        models.ScanSourceText,
		ScannedAt:     at,
		TotalCalories: kcal,
		TotalProtein:  kcal * 0.05,
		TotalSugar:    10,
		TotalSodium:   400,
		HealthScore:   7,
		Safe:          safe,
	}
	for _, n := range names {
		s.Items = append(s.Items, models.FoodScanItem{Name: n, Calories: kcal / float64(len(names))})
	}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("create scan: %v", err)
	}
	return s
}

func TestDailySummary(t *testing.T) {
	db := newTestDB(t)
	svc := NewHistoryService(db, time.UTC)
	u := createUser(t, db, "daily@example.com", onboarded)

	day := time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC)
	addScan(t, db, u.ID, day.Add(7*time.Hour), 1500, true, "Nasi Padang")
	addScan(t, db, u.ID, day.Add(19*time.Hour), 1200, false, "Martabak")
	addScan(t, db, u.ID, day.Add(-time.Hour), 800, true, "Sate") // previous day

	got, err := svc.DailySummary(context.Background(), u.ID, day.Add(12*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if got.Date != "2026-06-03" || got.ScanCount != 2 || got.ConsumedCalories != 2700 {
		t.Errorf("summary = %+v", got)
	}
	if got.Percent != 100 || got.RawPercent != 109.4 {
		t.Errorf("percent = %v raw = %v", got.Percent, got.RawPercent)
	}
	if got.RemainingCalories != 0 || !got.OverTarget {
		t.Errorf("remaining = %v over = %v", got.RemainingCalories, got.OverTarget)
	}
	if got.ProfileIncomplete {
		t.Error("onboarded user flagged incomplete")
	}
	if n := got.Nutrients["protein_g"]; n.Target != 123.4 || n.Actual != 135 {
		t.Errorf("protein = %+v", n)
	}
}

func TestDailySummaryWithoutProfile(t *testing.T) {
	db := newTestDB(t)
	svc := NewHistoryService(db, time.UTC)
	u := createUser(t, db, "new@example.com", nil)

	got, err := svc.DailySummary(context.Background(), u.ID, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !got.ProfileIncomplete || got.Percent != 0 || got.OverTarget {
		t.Errorf("summary = %+v", got)
	}
	if _, err := svc.DailySummary(context.Background(), 999, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown user: %v", err)
	}
}

func TestHistoryListAndDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewHistoryService(db, time.UTC)
	owner := createUser(t, db, "owner@example.com", onboarded)
	other := createUser(t, db, "other@example.com", onboarded)

	base := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	older := addScan(t, db, owner.ID, base, 400, true, "Bubur Ayam")
	newer := addScan(t, db, owner.ID, base.Add(26*time.Hour), 600, true, "Soto", "Nasi")
	addScan(t, db, other.ID, base, 900, false, "Pizza")

	page, err := svc.List(ctx, owner.ID, time.Time{}, time.Time{}, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 || page.Items[0].ID != newer.ID || page.Items[1].ID != older.ID {
		t.Fatalf("page = %+v", page)
	}
	if len(page.Items[0].Items) != 2 {
		t.Errorf("items not preloaded: %+v", page.Items[0].Items)
	}

	page, _ = svc.List(ctx, owner.ID, base, base, 10, 0)
	if page.Total != 1 || page.Items[0].ID != older.ID {
		t.Errorf("date filter: %+v", page)
	}

	if err := svc.Delete(ctx, other.ID, newer.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign delete: %v", err)
	}
	if err := svc.Delete(ctx, owner.ID, newer.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, owner.ID, newer.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: %v", err)
	}
	var items int64
	db.Model(&models.FoodScanItem{}).Where("food_scan_id = ?", newer.ID).Count(&items)
	if items != 0 {
		t.Errorf("orphan items = %d", items)
	}
}

func TestWeeklyOverview(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewHistoryService(db, time.UTC)
	u := createUser(t, db, "week@example.com", onboarded)

	mon := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	addScan(t, db, u.ID, mon.Add(10*time.Hour), 1234, true, "Gado-gado")
	addScan(t, db, u.ID, mon.AddDate(0, 0, 6).Add(20*time.Hour), 2468, true, "Rendang")
	addScan(t, db, u.ID, mon.AddDate(0, 0, 7).Add(time.Hour), 500, true, "Next week")

	wed := mon.AddDate(0, 0, 2).Add(15 * time.Hour)
	got, err := svc.WeeklyOverview(ctx, u.ID, wed, "")
	if err != nil {
		t.Fatal(err)
	}
	days := got.Days.([]DayChart)
	if got.WeekStart != "2026-06-01" || got.Mode != "chart" || len(days) != 7 {
		t.Fatalf("overview = %+v", got)
	}
	if days[0].Percentages["calories"] != 50 || days[6].Percentages["calories"] != 100 || days[3].Percentages["calories"] != 0 {
		t.Errorf("calorie percentages = %v / %v / %v", days[0].Percentages, days[3].Percentages, days[6].Percentages)
	}

	got, err = svc.WeeklyOverview(ctx, u.ID, wed, "detailed")
	if err != nil {
		t.Fatal(err)
	}
	detailed := got.Days.([]DayDetailed)
	if detailed[6].ScanCount != 1 || detailed[6].Metrics["calories"].Actual != 2468 {
		t.Errorf("sunday = %+v", detailed[6])
	}

	if _, err := svc.WeeklyOverview(ctx, u.ID, wed, "table"); !errors.Is(err, ErrValidation) {
		t.Errorf("bad mode: %v", err)
	}
}

func TestWeekStart(t *testing.T) {
	sun := time.Date(2026, 6, 7, 23, 0, 0, 0, time.UTC)
	if got := WeekStart(sun); !got.Equal(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("WeekStart(sunday) = %v", got)
	}
	mon := time.Date(2026, 6, 8, 0, 0, 0, 0, time.UTC)
	if got := WeekStart(mon); !got.Equal(mon) {
		t.Errorf("WeekStart(monday) = %v", got)
	}
}

func TestRangeSummary(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewHistoryService(db, time.UTC)
	u := createUser(t, db, "range@example.com", onboarded)

	d1 := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	addScan(t, db, u.ID, d1, 2000, true, "a")
	addScan(t, db, u.ID, d1.AddDate(0, 0, 2), 1000, false, "b")

	from, to := d1, d1.AddDate(0, 0, 3)
	got, err := svc.Summary(ctx, u.ID, from, to, false)
	if err != nil {
		t.Fatal(err)
	}
	if got.DaysCounted != 2 || got.Nutrients["calories"].AvgConsumed != 1500 {
		t.Errorf("without missing days = %+v", got.Nutrients["calories"])
	}
	if got.Safety.Total != 2 || got.SafetyPct != 50 {
		t.Errorf("safety = %+v %v", got.Safety, got.SafetyPct)
	}

	got, _ = svc.Summary(ctx, u.ID, from, to, true)
	if got.DaysCounted != 4 || got.Nutrients["calories"].AvgConsumed != 750 {
		t.Errorf("with missing days = %d %+v", got.DaysCounted, got.Nutrients["calories"])
	}

	if _, err := svc.Summary(ctx, u.ID, to, from, false); !errors.Is(err, ErrValidation) {
		t.Errorf("reversed range: %v", err)
	}
}

func TestRangeSummaryRejectsLongSpan(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewHistoryService(db, time.UTC)
	u := createUser(t, db, "span@example.com", onboarded)

	tests := []struct {
		name    string
		from    time.Time
		to      time.Time
		wantErr bool
	}{
		{"leap year", time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2028, 12, 31, 0, 0, 0, 0, time.UTC), false},
		{"one day over", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"whole calendar", time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Summary(ctx, u.ID, tt.from, tt.to, true)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("err = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.DaysCounted != MaxRangeDays {
				t.Errorf("days counted = %d, want %d", got.DaysCounted, MaxRangeDays)
			}
		})
	}
}

func TestTargetsFor(t *testing.T) {
	tg := TargetsFor(2000)
	want := DailyTargets{Calories: 2000, Protein: 100, Carbs: 250, Fat: 66.67, Sugar: 50, Sodium: 2300}
	if tg != want {
		t.Errorf("targets = %+v, want %+v", tg, want)
	}
	if TargetsFor(0) != (DailyTargets{}) {
		t.Error("zero calories should yield no targets")
	}
}

func TestExportXLSX(t *testing.T) {
	db := newTestDB(t)
	svc := NewHistoryService(db, time.UTC)
	u := createUser(t, db, "xlsx@example.com", onboarded)

	at := time.Date(2026, 6, 2, 12, 15, 0, 0, time.UTC)
	addScan(t, db, u.ID, at, 700, true, "Nasi Uduk", "Telur Balado")
	addScan(t, db, u.ID, at.Add(-48*time.Hour), 300, true, "Out of range")

	var buf bytes.Buffer
	n, err := svc.ExportXLSX(context.Background(), u.ID, at, at, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("rows = %d, want 2", n)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Riwayat")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("sheet rows = %d", len(rows))
	}
	if rows[0][0] != "Tanggal" || rows[0][12] != "Peringatan" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "2026-06-02" || rows[1][1] != "12:15" || rows[1][3] != "Nasi Uduk" || rows[1][5] != "350" {
		t.Errorf("first row = %v", rows[1])
	}
}
