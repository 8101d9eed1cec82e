package services

import (
	"context"
	"fmt"
	"time"

	"github.com/F1H444/si-kalori-sub000/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	EventScanCreated           = "scan.created"
	EventSubscriptionActivated = "subscription.activated"
)

// EventBus stores an Alert and fans it out to websockets and mobile push.
// Hub and push are optional.
type EventBus struct {
	db   *gorm.DB
	hub  *RealtimeHub
	push *PushService
	log  logrus.FieldLogger
}

func NewEventBus(db *gorm.DB, hub *RealtimeHub, push *PushService, log logrus.FieldLogger) *EventBus {
	return &EventBus{db: db, hub: hub, push: push, log: log}
}

// Emit never fails the caller; delivery problems are logged.
func (b *EventBus) Emit(ctx context.Context, userID uint, kind, message string, data map[string]any) {
	a := &models.Alert{UserID: userID, Kind: kind, Message: message, CreatedAt: time.Now()}
	if err := b.db.WithContext(ctx).Create(a).Error; err != nil {
		b.log.WithError(err).WithField("kind", kind).Warn("store alert")
	}

	if b.hub != nil {
		b.hub.Broadcast(userID, map[string]any{
			"kind":  kind,
			"alert": a,
			"data":  data,
		})
	}
	if b.push != nil {
		b.push.PushToUser(ctx, userID, "SI KALORI", message, map[string]string{
			"type": kind, "alertId": fmt.Sprintf("%d", a.ID),
		})
	}
}

// Recent lists the newest alerts of a user.
func (b *EventBus) Recent(ctx context.Context, userID uint, limit int) ([]models.Alert, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var alerts []models.Alert
	err := b.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at desc, id desc").Limit(limit).Find(&alerts).Error
	return alerts, err
}
