package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/F1H444/si-kalori-sub000/models"
	"github.com/F1H444/si-kalori-sub000/utils"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newProfileSvc(t *testing.T) *ProfileService {
	t.Helper()
	calc, err := utils.NewCalculator(utils.DefaultCalculatorConfig())
	if err != nil {
		t.Fatal(err)
	}
	svc := NewProfileService(newTestDB(t), calc, newTestMetrics(), newTestLogger())
	svc.now = fixedClock(time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC))
	return svc
}

func TestCompleteOnboarding(t *testing.T) {
	ctx := context.Background()
	svc := newProfileSvc(t)
	u := createUser(t, svc.db, "ani@example.com", nil)

	in := OnboardingInput{
		WeightKg: 65, HeightCm: 170, AgeYears: 25,
		Gender: "Male", ActivityLevel: "moderate", Goal: "lose",
	}
	p, err := svc.CompleteOnboarding(ctx, u.ID, in)
	if err != nil {
		t.Fatalf("onboarding: %v", err)
	}
	if !p.Onboarded {
		t.Error("onboarded flag not set")
	}
	want := utils.DerivedMetrics{BMI: 22.5, BMR: 1592.5, TDEE: 2468.4, RecommendedCalories: 1968}
	if p.Metrics != want {
		t.Errorf("metrics = %+v, want %+v", p.Metrics, want)
	}
	if p.BMICategory != "Normal weight" {
		t.Errorf("category = %q", p.BMICategory)
	}

	var stored models.User
	svc.db.First(&stored, u.ID)
	if stored.RecommendedCalories != 1968 || stored.Gender != "male" || stored.Goal != "lose" {
		t.Errorf("stored = %+v", stored)
	}
	if got := testutil.ToFloat64(svc.metrics.Calculations.WithLabelValues("lose")); got != 1 {
		t.Errorf("calculations counter = %v", got)
	}
}

func TestCompleteOnboardingIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newProfileSvc(t)
	u := createUser(t, svc.db, "idem@example.com", nil)
	in := OnboardingInput{WeightKg: 80, HeightCm: 180, AgeYears: 40, Gender: "female", ActivityLevel: "very_active", Goal: "gain"}

	first, err := svc.CompleteOnboarding(ctx, u.ID, in)
	if err != nil {
		t.Fatal(err)
	}
	svc.now = fixedClock(svc.now().Add(time.Hour))
	second, err := svc.CompleteOnboarding(ctx, u.ID, in)
	if err != nil {
		t.Fatal(err)
	}
	if first.Metrics != second.Metrics {
		t.Errorf("metrics changed: %+v vs %+v", first.Metrics, second.Metrics)
	}
	if !first.MetricsUpdate.Equal(*second.MetricsUpdate) {
		t.Errorf("metrics timestamp moved on identical input")
	}
	if second.Biometrics.ActivityLevel != utils.VeryActive {
		t.Errorf("activity = %q", second.Biometrics.ActivityLevel)
	}
}

func TestCompleteOnboardingInvalid(t *testing.T) {
	ctx := context.Background()
	svc := newProfileSvc(t)
	u := createUser(t, svc.db, "bad@example.com", nil)

	tests := []struct {
		name  string
		in    OnboardingInput
		field string
	}{
		{"gender", OnboardingInput{WeightKg: 60, HeightCm: 160, AgeYears: 20, Gender: "x", ActivityLevel: "light", Goal: "lose"}, "gender"},
		{"weight", OnboardingInput{WeightKg: 0, HeightCm: 160, AgeYears: 20, Gender: "female", ActivityLevel: "light", Goal: "lose"}, "weight_kg"},
		{"goal", OnboardingInput{WeightKg: 60, HeightCm: 160, AgeYears: 20, Gender: "female", ActivityLevel: "light", Goal: "bulk"}, "goal"},
		{"birthday", OnboardingInput{WeightKg: 60, HeightCm: 160, Birthday: "10/05/2000", Gender: "female", ActivityLevel: "light", Goal: "lose"}, "birthday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CompleteOnboarding(ctx, u.ID, tt.in)
			var ie *utils.InvalidInputError
			if !errors.As(err, &ie) || ie.Field != tt.field {
				t.Errorf("err = %v, want invalid %s", err, tt.field)
			}
		})
	}

	var stored models.User
	svc.db.First(&stored, u.ID)
	if stored.Onboarded {
		t.Error("failed onboarding must not mark the user onboarded")
	}
}

func TestOnboardingWithBirthday(t *testing.T) {
	svc := newProfileSvc(t)
	u := createUser(t, svc.db, "bday@example.com", nil)

	// 2026-05-10 minus 2001-05-11 is 24 full years
	p, err := svc.CompleteOnboarding(context.Background(), u.ID, OnboardingInput{
		WeightKg: 65, HeightCm: 170, Birthday: "2001-05-11", Gender: "male", ActivityLevel: "moderate", Goal: "maintain",
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Biometrics.AgeYears != 24 || p.Birthday != "2001-05-11" {
		t.Errorf("age = %d birthday = %q", p.Biometrics.AgeYears, p.Birthday)
	}
}

func TestUpdateProfileRecomputes(t *testing.T) {
	ctx := context.Background()
	svc := newProfileSvc(t)
	u := createUser(t, svc.db, "upd@example.com", onboarded)

	goal := "gain"
	p, err := svc.UpdateProfile(ctx, u.ID, ProfileUpdate{Goal: &goal})
	if err != nil {
		t.Fatal(err)
	}
	if p.Metrics.RecommendedCalories != 2968 {
		t.Errorf("calories = %d, want 2968", p.Metrics.RecommendedCalories)
	}

	fresh := createUser(t, svc.db, "fresh@example.com", nil)
	w := 55.0
	p, err = svc.UpdateProfile(ctx, fresh.ID, ProfileUpdate{WeightKg: &w})
	if err != nil {
		t.Fatalf("partial update before onboarding: %v", err)
	}
	if p.Metrics.RecommendedCalories != 0 || p.Biometrics.WeightKg != 55 {
		t.Errorf("profile = %+v", p)
	}
}

func TestGetProfileNotFound(t *testing.T) {
	svc := newProfileSvc(t)
	if _, err := svc.GetProfile(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestPreviewMetricsStoresNothing(t *testing.T) {
	svc := newProfileSvc(t)
	m, err := svc.PreviewMetrics(utils.BiometricProfile{
		WeightKg: 65, HeightCm: 170, AgeYears: 25, Gender: utils.Male, ActivityLevel: utils.Moderate, Goal: utils.GoalMaintain,
	})
	if err != nil {
		t.Fatal(err)
	}
	if m.RecommendedCalories != 2468 {
		t.Errorf("calories = %d", m.RecommendedCalories)
	}
	var n int64
	svc.db.Model(&models.User{}).Count(&n)
	if n != 0 {
		t.Errorf("users = %d", n)
	}
}
