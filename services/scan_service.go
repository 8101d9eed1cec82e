package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/F1H444/si-kalori-sub000/models"
	"github.com/F1H444/si-kalori-sub000/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	MaxImageBytes        = 5 << 20
	MinDescriptionLength = 3
	MaxDescriptionLength = 500
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ImageStore persists scan photos and returns a public URL.
type ImageStore interface {
	PutImage(ctx context.Context, prefix string, data []byte, contentType string) (string, error)
}

type ScanResult struct {
	Scan           models.FoodScan `json:"scan"`
	Warnings       []utils.Warning `json:"warnings"`
	RemainingScans int             `json:"remaining_scans"` // -1 for premium
}

type ScanService struct {
	db       *gorm.DB
	analyzer Analyzer
	labeler  ImageLabeler
	store    ImageStore
	quota    *QuotaService
	bus      *EventBus
	metrics  *Metrics
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewScanService wires the scan pipeline. labeler, store and bus may be nil.
func NewScanService(db *gorm.DB, analyzer Analyzer, labeler ImageLabeler, store ImageStore, quota *QuotaService, bus *EventBus, metrics *Metrics, log logrus.FieldLogger) *ScanService {
	return &ScanService{
		db:       db,
		analyzer: analyzer,
		labeler:  labeler,
		store:    store,
		quota:    quota,
		bus:      bus,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

func validateDescription(desc string, required bool) (string, error) {
	desc = strings.TrimSpace(desc)
	n := utf8.RuneCountInString(desc)
	if n == 0 && !required {
		return "", nil
	}
	if n < MinDescriptionLength || n > MaxDescriptionLength {
		return "", fmt.Errorf("%w: description must be %d-%d characters", ErrValidation, MinDescriptionLength, MaxDescriptionLength)
	}
	return desc, nil
}

func validateImage(image []byte, mime string) error {
	if len(image) == 0 {
		return fmt.Errorf("%w: image is empty", ErrValidation)
	}
	if len(image) > MaxImageBytes {
		return fmt.Errorf("%w: image larger than %d MB", ErrValidation, MaxImageBytes>>20)
	}
	if !allowedImageTypes[mime] {
		return fmt.Errorf("%w: unsupported image type %q", ErrValidation, mime)
	}
	return nil
}

// ScanImage analyses a food photo. description is an optional caption.
func (s *ScanService) ScanImage(ctx context.Context, userID uint, image []byte, mime, description string) (*ScanResult, error) {
	if err := validateImage(image, mime); err != nil {
		return nil, err
	}
	desc, err := validateDescription(description, false)
	if err != nil {
		return nil, err
	}
	return s.scan(ctx, userID, models.ScanSourceImage, AnalysisInput{Description: desc, Image: image, MIMEType: mime})
}

func (s *ScanService) ScanText(ctx context.Context, userID uint, description string) (*ScanResult, error) {
	desc, err := validateDescription(description, true)
	if err != nil {
		return nil, err
	}
	return s.scan(ctx, userID, models.ScanSourceText, AnalysisInput{Description: desc})
}

func (s *ScanService) scan(ctx context.Context, userID uint, source string, in AnalysisInput) (*ScanResult, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ? AND disabled = ?", userID, false).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{"user_id": userID, "source": source})
	now := s.now()

	remaining := -1
	var ticket QuotaTicket
	premium := user.IsPremium(now)
	if !premium {
		if remaining, ticket, err = s.quota.Consume(ctx, userID); err != nil {
			s.metrics.Scans.WithLabelValues(source, "quota").Inc()
			return nil, err
		}
	}

	if len(in.Image) > 0 && s.labeler != nil {
		hints, err := s.labeler.Labels(ctx, in.Image)
		if err != nil {
			log.WithError(err).Warn("image labels unavailable")
		}
		in.Hints = hints
	}

	start := time.Now()
	est, err := s.analyzer.Analyze(ctx, in)
	s.metrics.ScanDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	if err != nil {
		if !premium {
			s.quota.Refund(ctx, userID, ticket)
		}
		s.metrics.Scans.WithLabelValues(source, "error").Inc()
		log.WithError(err).Warn("analysis failed")
		return nil, err
	}

	scan := models.FoodScan{
		UserID:      userID,
		Source:      source,
		Description: in.Description,
		ScannedAt:   now,
		Notes:       est.Notes,
	}
	if len(in.Image) > 0 && s.store != nil {
		url, err := s.store.PutImage(ctx, fmt.Sprintf("%d", userID), in.Image, in.MIMEType)
		if err != nil {
			log.WithError(err).Warn("scan image not stored")
		}
		scan.ImageURL = url
	}

	warnings := assessEstimate(est, utils.BuildAssessmentContext(currentAge(&user, now), user.RecommendedCalories))
	for _, it := range est.Items {
		scan.Items = append(scan.Items, models.FoodScanItem{
			Name:     it.Name,
			Portion:  it.Portion,
			Calories: it.Calories,
			Protein:  it.ProteinG,
			Carbs:    it.CarbsG,
			Fat:      it.FatG,
			Sugar:    it.SugarG,
			Sodium:   it.SodiumMg,
		})
		scan.TotalCalories += it.Calories
		scan.TotalProtein += it.ProteinG
		scan.TotalCarbs += it.CarbsG
		scan.TotalFat += it.FatG
		scan.TotalSugar += it.SugarG
		scan.TotalSodium += it.SodiumMg
	}
	scan.HealthScore = est.HealthScore
	if scan.HealthScore < 1 {
		scan.HealthScore = utils.HealthScoreFromWarnings(warnings)
	}
	scan.Safe = !utils.HasBlockingWarning(warnings)
	scan.Warnings = joinWarnings(warnings)

	if err := s.db.WithContext(ctx).Create(&scan).Error; err != nil {
		if !premium {
			s.quota.Refund(ctx, userID, ticket)
		}
		s.metrics.Scans.WithLabelValues(source, "error").Inc()
		return nil, fmt.Errorf("save scan: %w", err)
	}
	s.metrics.Scans.WithLabelValues(source, "ok").Inc()
	log.WithFields(logrus.Fields{"scan_id": scan.ID, "kcal": scan.TotalCalories, "items": len(scan.Items)}).Info("scan stored")

	if s.bus != nil {
		s.bus.Emit(ctx, userID, EventScanCreated,
			fmt.Sprintf("%s: %.0f kcal", itemNames(scan.Items), scan.TotalCalories),
			map[string]any{"scan_id": scan.ID, "total_calories": scan.TotalCalories})
	}

	return &ScanResult{Scan: scan, Warnings: warnings, RemainingScans: remaining}, nil
}

// currentAge prefers the birthday over the age typed in at onboarding.
func currentAge(u *models.User, now time.Time) int {
	if !u.Birthday.IsZero() {
		return utils.CalculateAge(u.Birthday, now)
	}
	return u.AgeYears
}

// assessEstimate runs the nutrient rules per item and keeps the most severe
// warning for each code.
func assessEstimate(est *NutritionEstimate, actx utils.AssessmentContext) []utils.Warning {
	rank := map[utils.WarningSeverity]int{utils.Info: 1, utils.Caution: 2, utils.High: 3}
	byCode := map[string]int{}
	var out []utils.Warning
	for _, it := range est.Items {
		ws := utils.AssessNutrients(it.Name, utils.Nutrients{
			Calories: it.Calories,
			ProteinG: it.ProteinG,
			CarbsG:   it.CarbsG,
			FatG:     it.FatG,
			SugarG:   it.SugarG,
			SodiumMg: it.SodiumMg,
		}, actx)
		for _, w := range ws {
			w.Message = it.Name + ": " + w.Message
			if i, ok := byCode[w.Code]; ok {
				if rank[w.Severity] > rank[out[i].Severity] {
					out[i] = w
				}
				continue
			}
			byCode[w.Code] = len(out)
			out = append(out, w)
		}
	}
	if out == nil {
		out = []utils.Warning{}
	}
	return out
}

func joinWarnings(ws []utils.Warning) string {
	msgs := make([]string, 0, len(ws))
	for _, w := range ws {
		msgs = append(msgs, w.Message)
	}
	return strings.Join(msgs, "; ")
}

func itemNames(items []models.FoodScanItem) string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	if len(names) > 3 {
		names = append(names[:3], "...")
	}
	return strings.Join(names, ", ")
}
