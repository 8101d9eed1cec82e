package services

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/F1H444/si-kalori-sub000/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const orderPrefix = "SIKAL-"

type PaymentService struct {
	db        *gorm.DB
	gateway   PaymentGateway
	serverKey string
	price     int64
	days      int
	bus       *EventBus
	metrics   *Metrics
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewPaymentService(db *gorm.DB, gateway PaymentGateway, serverKey string, price int64, days int, bus *EventBus, metrics *Metrics, log logrus.FieldLogger) *PaymentService {
	return &PaymentService{
		db:        db,
		gateway:   gateway,
		serverKey: serverKey,
		price:     price,
		days:      days,
		bus:       bus,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

// GatewayState maps a gateway transaction/fraud status pair onto Payment.Status.
func GatewayState(transactionStatus, fraudStatus string) string {
	switch transactionStatus {
	case "settlement":
		return models.PaymentSettled
	case "capture":
		switch fraudStatus {
		case "", "accept":
			return models.PaymentSettled
		case "deny":
			return models.PaymentFailed
		}
		return models.PaymentPending
	case "expire":
		return models.PaymentExpired
	case "deny", "cancel", "failure", "refund", "partial_refund", "chargeback":
		return models.PaymentFailed
	}
	return models.PaymentPending
}

// Checkout opens a pending order for one premium period.
func (s *PaymentService) Checkout(ctx context.Context, userID uint) (*models.Payment, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ? AND disabled = ?", userID, false).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}

	p := &models.Payment{
		OrderID:     orderPrefix + uuid.NewString(),
		UserID:      userID,
		GrossAmount: s.price,
		Status:      models.PaymentPending,
	}
	sess, err := s.gateway.CreateCheckout(ctx, CheckoutRequest{
		OrderID:       p.OrderID,
		Amount:        p.GrossAmount,
		ItemName:      fmt.Sprintf("SI KALORI Premium %d hari", s.days),
		CustomerName:  user.FullName,
		CustomerEmail: user.Email,
	})
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("checkout failed")
		return nil, err
	}
	p.SnapToken = sess.Token
	p.RedirectURL = sess.RedirectURL

	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}
	s.metrics.PaymentsByStat.WithLabelValues(models.PaymentPending).Inc()
	s.log.WithFields(logrus.Fields{"user_id": userID, "order_id": p.OrderID}).Info("checkout created")
	return p, nil
}

// Verify asks the gateway for the order status and applies it. A pending order
// returns ErrPaymentNotSettled together with the payment.
func (s *PaymentService) Verify(ctx context.Context, userID uint, orderID string) (*models.Payment, error) {
	var p models.Payment
	err := s.db.WithContext(ctx).Where("order_id = ? AND user_id = ?", orderID, userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	if p.Status == models.PaymentSettled {
		return &p, nil
	}

	var st *TransactionStatus
	err = withRetry(ctx, s.log, "payment.status", func() error {
		var e error
		st, e = s.gateway.TransactionStatus(ctx, orderID)
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("transaction status: %w", err)
	}

	if err := s.apply(ctx, &p, st); err != nil {
		return nil, err
	}
	if p.Status == models.PaymentPending {
		return &p, ErrPaymentNotSettled
	}
	return &p, nil
}

// NotificationSignature is sha512(order_id + status_code + gross_amount + server_key).
func NotificationSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// HandleNotification applies a gateway webhook after checking its signature.
func (s *PaymentService) HandleNotification(ctx context.Context, n TransactionStatus) (*models.Payment, error) {
	want := NotificationSignature(n.OrderID, n.StatusCode, n.GrossAmount, s.serverKey)
	if s.serverKey == "" || subtle.ConstantTimeCompare([]byte(want), []byte(n.SignatureKey)) != 1 {
		s.log.WithField("order_id", n.OrderID).Warn("notification with bad signature")
		return nil, ErrInvalidSignature
	}

	var p models.Payment
	err := s.db.WithContext(ctx).Where("order_id = ?", n.OrderID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, n.OrderID)
	}
	if err != nil {
		return nil, err
	}
	if amt, err := strconv.ParseFloat(n.GrossAmount, 64); err != nil || int64(math.Round(amt)) != p.GrossAmount {
		return nil, fmt.Errorf("%w: gross amount %q does not match order", ErrValidation, n.GrossAmount)
	}

	if err := s.apply(ctx, &p, &n); err != nil {
		return nil, err
	}
	return &p, nil
}

// apply moves the payment to the gateway's state. Settlement extends premium at
// most once per order, even when verify and webhook race.
func (s *PaymentService) apply(ctx context.Context, p *models.Payment, st *TransactionStatus) error {
	next := GatewayState(st.TransactionStatus, st.FraudStatus)
	if p.Status == models.PaymentSettled || (next == models.PaymentPending && p.Status == models.PaymentPending) {
		if st.TransactionStatus != "" && p.GatewayStatus != st.TransactionStatus {
			p.GatewayStatus = st.TransactionStatus
			return s.db.WithContext(ctx).Model(p).Update("gateway_status", st.TransactionStatus).Error
		}
		return nil
	}

	now := s.now()
	var premiumUntil time.Time
	activated := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"status":         next,
			"gateway_status": st.TransactionStatus,
			"payment_type":   st.PaymentType,
		}
		if next == models.PaymentSettled {
			updates["paid_at"] = now
		}
		res := tx.Model(&models.Payment{}).
			Where("id = ? AND status <> ?", p.ID, models.PaymentSettled).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 || next != models.PaymentSettled {
			return nil
		}

		// another order of the same user may be settling concurrently
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, p.UserID).Error; err != nil {
			return err
		}
		base := now
		if user.PremiumUntil != nil && user.PremiumUntil.After(now) {
			base = *user.PremiumUntil
		}
		premiumUntil = base.AddDate(0, 0, s.days)
		activated = true
		return tx.Model(&user).Update("premium_until", premiumUntil).Error
	})
	if err != nil {
		return fmt.Errorf("apply payment %s: %w", p.OrderID, err)
	}

	if err := s.db.WithContext(ctx).First(p, p.ID).Error; err != nil {
		return err
	}
	s.metrics.PaymentsByStat.WithLabelValues(p.Status).Inc()
	s.log.WithFields(logrus.Fields{"order_id": p.OrderID, "status": p.Status, "gateway_status": st.TransactionStatus}).Info("payment updated")

	if activated && s.bus != nil {
		s.bus.Emit(ctx, p.UserID, EventSubscriptionActivated,
			fmt.Sprintf("Premium aktif sampai %s", premiumUntil.Format("02 Jan 2006")),
			map[string]any{"order_id": p.OrderID, "premium_until": premiumUntil})
	}
	return nil
}

func (s *PaymentService) List(ctx context.Context, userID uint) ([]models.Payment, error) {
	var out []models.Payment
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

type PremiumStatus struct {
	Premium      bool       `json:"premium"`
	PremiumUntil *time.Time `json:"premium_until,omitempty"`
}

func (s *PaymentService) IsPremium(ctx context.Context, userID uint) (*PremiumStatus, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select("id", "premium_until").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	return &PremiumStatus{Premium: user.IsPremium(s.now()), PremiumUntil: user.PremiumUntil}, nil
}
