package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/F1H444/si-kalori-sub000/config"
	"github.com/F1H444/si-kalori-sub000/models"
	"github.com/F1H444/si-kalori-sub000/utils"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := config.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func newTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// fixedClock returns a now func pinned to t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func createUser(t *testing.T, db *gorm.DB, email string, mutate func(*models.User)) *models.User {
	t.Helper()
	hash, err := utils.HashPassword("rahasia123")
	if err != nil {
		t.Fatal(err)
	}
	u := &models.User{Email: email, PasswordHash: hash, FullName: "Test User", Role: utils.RoleUser}
	if mutate != nil {
		mutate(u)
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// onboarded sets the 65 kg / 170 cm / 25 y male moderate profile (2468 kcal).
func onboarded(u *models.User) {
	u.Onboarded = true
	u.WeightKg = 65
	u.HeightCm = 170
	u.AgeYears = 25
	u.Gender = "male"
	u.ActivityLevel = "moderate"
	u.Goal = "maintain"
	u.RecommendedCalories = 2468
}

type sentMail struct {
	To, Subject, Body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	est   *NutritionEstimate
	err   error
	calls []AnalysisInput
}

func (f *fakeAnalyzer) Analyze(_ context.Context, in AnalysisInput) (*NutritionEstimate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.est
	cp.Items = append([]EstimatedItem(nil), f.est.Items...)
	return &cp, nil
}

type fakeAdvisor struct {
	reply  string
	prompt string
}

func (f *fakeAdvisor) Advise(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, nil
}

type fakeStore struct {
	puts int
	err  error
}

func (f *fakeStore) PutImage(_ context.Context, prefix string, _ []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.puts++
	return "https://cdn.example.com/scans/" + prefix + "/img.jpg", nil
}

type fakeLabeler struct {
	labels []string
}

func (f *fakeLabeler) Labels(context.Context, []byte) ([]string, error) {
	if f.labels == nil {
		return nil, errors.New("rekognition down")
	}
	return f.labels, nil
}

func nasiGoreng() *NutritionEstimate {
	return &NutritionEstimate{
		Items: []EstimatedItem{
			{Name: "Nasi Goreng", Portion: "1 piring", Calories: 650, ProteinG: 18, CarbsG: 85, FatG: 25, SugarG: 6, SodiumMg: 1100},
			{Name: "Es Teh Manis", Portion: "1 gelas", Calories: 120, CarbsG: 30, SugarG: 30},
		},
		HealthScore: 4,
		Notes:       "Kurangi gorengan dan minuman manis.",
	}
}
