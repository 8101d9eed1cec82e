package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/F1H444/si-kalori-sub000/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type AdminService struct {
	db  *gorm.DB
	loc *time.Location
	log logrus.FieldLogger
	now func() time.Time
}

func NewAdminService(db *gorm.DB, loc *time.Location, log logrus.FieldLogger) *AdminService {
	if loc == nil {
		loc = time.Local
	}
	return &AdminService{db: db, loc: loc, log: log, now: time.Now}
}

type UserList struct {
	Items []models.User `json:"items"`
	Total int64         `json:"total"`
}

// ListUsers matches search against email and full name, case-insensitively.
func (s *AdminService) ListUsers(ctx context.Context, search string, limit, offset int) (*UserList, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := s.db.WithContext(ctx).Model(&models.User{})
	if search = strings.TrimSpace(strings.ToLower(search)); search != "" {
		like := "%" + search + "%"
		q = q.Where("LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", like, like)
	}

	var out UserList
	if err := q.Count(&out.Total).Error; err != nil {
		return nil, err
	}
	if err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&out.Items).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AdminService) SetDisabled(ctx context.Context, userID uint, disabled bool) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&user).Update("disabled", disabled).Error; err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "disabled": disabled}).Info("user status changed")
	return &user, nil
}

type DayCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type Analytics struct {
	From               string           `json:"from"`
	To                 string           `json:"to"`
	TotalUsers         int64            `json:"total_users"`
	OnboardedUsers     int64            `json:"onboarded_users"`
	NewUsers           int64            `json:"new_users"`
	ActivePremiumUsers int64            `json:"active_premium_users"`
	TotalScans         int64            `json:"total_scans"`
	ScansPerDay        []DayCount       `json:"scans_per_day"`
	AvgRecommendedKcal float64          `json:"avg_recommended_calories"`
	GoalDistribution   map[string]int64 `json:"goal_distribution"`
	RevenueIDR         int64            `json:"revenue_idr"`
	SettledPayments    int64            `json:"settled_payments"`
}

// Analytics aggregates platform numbers for [from, to] (inclusive calendar days).
func (s *AdminService) Analytics(ctx context.Context, from, to time.Time) (*Analytics, error) {
	start := dayOf(from, s.loc)
	last := dayOf(to, s.loc)
	if err := checkSpan(start, last); err != nil {
		return nil, err
	}
	end := last.AddDate(0, 0, 1)
	db := s.db.WithContext(ctx)
	out := &Analytics{
		From:             start.Format("2006-01-02"),
		To:               end.AddDate(0, 0, -1).Format("2006-01-02"),
		GoalDistribution: map[string]int64{},
	}

	if err := db.Model(&models.User{}).Count(&out.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.User{}).Where("onboarded = ?", true).Count(&out.OnboardedUsers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.User{}).Where("created_at >= ? AND created_at < ?", start, end).Count(&out.NewUsers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.User{}).Where("premium_until > ?", s.now()).Count(&out.ActivePremiumUsers).Error; err != nil {
		return nil, err
	}

	var avg struct{ Avg float64 }
	if err := db.Model(&models.User{}).Select("COALESCE(AVG(recommended_calories), 0) AS avg").
		Where("onboarded = ?", true).Scan(&avg).Error; err != nil {
		return nil, err
	}
	out.AvgRecommendedKcal = round2(avg.Avg)

	var goals []struct {
		Goal  string
		Count int64
	}
	if err := db.Model(&models.User{}).Select("goal, COUNT(*) AS count").
		Where("onboarded = ?", true).Group("goal").Scan(&goals).Error; err != nil {
		return nil, err
	}
	for _, g := range goals {
		out.GoalDistribution[g.Goal] = g.Count
	}

	var scanTimes []time.Time
	if err := db.Model(&models.FoodScan{}).Where("scanned_at >= ? AND scanned_at < ?", start, end).
		Pluck("scanned_at", &scanTimes).Error; err != nil {
		return nil, err
	}
	perDay := map[string]int64{}
	for _, t := range scanTimes {
		perDay[t.In(s.loc).Format("2006-01-02")]++
	}
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		out.ScansPerDay = append(out.ScansPerDay, DayCount{Date: key, Count: perDay[key]})
	}
	out.TotalScans = int64(len(scanTimes))

	var rev struct {
		Sum   int64
		Count int64
	}
	if err := db.Model(&models.Payment{}).Select("COALESCE(SUM(gross_amount), 0) AS sum, COUNT(*) AS count").
		Where("status = ? AND paid_at >= ? AND paid_at < ?", models.PaymentSettled, start, end).
		Scan(&rev).Error; err != nil {
		return nil, err
	}
	out.RevenueIDR = rev.Sum
	out.SettledPayments = rev.Count
	return out, nil
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
