package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	PaymentPending = "pending"
	PaymentSettled = "settled"
	PaymentFailed  = "failed"
	PaymentExpired = "expired"
)

type Payment struct {
	gorm.Model
	OrderID       string     `gorm:"size:64;uniqueIndex;not null" json:"order_id"`
	UserID        uint       `gorm:"index;not null" json:"user_id"`
	GrossAmount   int64      `json:"gross_amount"`
	Status        string     `gorm:"size:16;index" json:"status"`
	GatewayStatus string     `gorm:"size:32" json:"gateway_status"`
	PaymentType   string     `gorm:"size:32" json:"payment_type,omitempty"`
	SnapToken     string     `json:"snap_token,omitempty"`
	RedirectURL   string     `json:"redirect_url,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}
