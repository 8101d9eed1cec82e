package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/F1H444/si-kalori-sub000/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const testServerKey = "SB-Mid-server-test"

type fakeGateway struct {
	mu        sync.Mutex
	checkouts []CheckoutRequest
	status    map[string]*TransactionStatus
	failures  []error // returned, in order, before status
	calls     int
}

func (g *fakeGateway) CreateCheckout(_ context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checkouts = append(g.checkouts, req)
	return &CheckoutSession{Token: "snap-" + req.OrderID, RedirectURL: "https://app.sandbox.midtrans.com/snap/v4/" + req.OrderID}, nil
}

func (g *fakeGateway) TransactionStatus(_ context.Context, orderID string) (*TransactionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if len(g.failures) > 0 {
		err := g.failures[0]
		g.failures = g.failures[1:]
		return nil, err
	}
	st, ok := g.status[orderID]
	if !ok {
		return nil, errors.New("midtrans status (404): Transaction doesn't exist.")
	}
	cp := *st
	return &cp, nil
}

func (g *fakeGateway) set(orderID, txStatus, fraud string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status[orderID] = &TransactionStatus{OrderID: orderID, TransactionStatus: txStatus, FraudStatus: fraud, PaymentType: "qris"}
}

var payNow = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

func newPaymentSvc(t *testing.T) (*PaymentService, *fakeGateway, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	gw := &fakeGateway{status: map[string]*TransactionStatus{}}
	log := newTestLogger()
	svc := NewPaymentService(db, gw, testServerKey, 49000, 30, NewEventBus(db, nil, nil, log), newTestMetrics(), log)
	svc.now = fixedClock(payNow)
	return svc, gw, db
}

func premiumUntil(t *testing.T, db *gorm.DB, userID uint) *time.Time {
	t.Helper()
	var u models.User
	if err := db.First(&u, userID).Error; err != nil {
		t.Fatal(err)
	}
	return u.PremiumUntil
}

func TestCheckoutCreatesPendingOrder(t *testing.T) {
	svc, gw, db := newPaymentSvc(t)
	u := createUser(t, db, "buyer@example.com", nil)

	p, err := svc.Checkout(context.Background(), u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(p.OrderID, "SIKAL-") || p.Status != models.PaymentPending || p.GrossAmount != 49000 {
		t.Errorf("payment = %+v", p)
	}
	if p.SnapToken == "" || p.RedirectURL == "" {
		t.Error("snap session not stored")
	}
	if gw.checkouts[0].CustomerEmail != "buyer@example.com" || gw.checkouts[0].Amount != 49000 {
		t.Errorf("checkout request = %+v", gw.checkouts[0])
	}
	if _, err := svc.Checkout(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown user: %v", err)
	}
}

func TestVerifySettlesOnce(t *testing.T) {
	ctx := context.Background()
	svc, gw, db := newPaymentSvc(t)
	u := createUser(t, db, "settle@example.com", nil)
	p, _ := svc.Checkout(ctx, u.ID)

	gw.set(p.OrderID, "settlement", "")
	got, err := svc.Verify(ctx, u.ID, p.OrderID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.Status != models.PaymentSettled || got.PaidAt == nil || got.PaymentType != "qris" {
		t.Errorf("payment = %+v", got)
	}
	want := payNow.AddDate(0, 0, 30)
	if until := premiumUntil(t, db, u.ID); until == nil || !until.Equal(want) {
		t.Fatalf("premium until = %v, want %v", until, want)
	}

	// a late webhook for the same order must not extend again
	n := TransactionStatus{OrderID: p.OrderID, TransactionStatus: "settlement", StatusCode: "200", GrossAmount: "49000.00"}
	n.SignatureKey = NotificationSignature(n.OrderID, n.StatusCode, n.GrossAmount, testServerKey)
	if _, err := svc.HandleNotification(ctx, n); err != nil {
		t.Fatalf("notification: %v", err)
	}
	if _, err := svc.Verify(ctx, u.ID, p.OrderID); err != nil {
		t.Fatal(err)
	}
	if until := premiumUntil(t, db, u.ID); !until.Equal(want) {
		t.Errorf("premium extended twice: %v", until)
	}
	if gw.calls != 1 {
		t.Errorf("gateway polled %d times for a settled order", gw.calls)
	}

	var alerts int64
	db.Model(&models.Alert{}).Where("user_id = ? AND kind = ?", u.ID, EventSubscriptionActivated).Count(&alerts)
	if alerts != 1 {
		t.Errorf("activation alerts = %d", alerts)
	}

	st, err := svc.IsPremium(ctx, u.ID)
	if err != nil || !st.Premium {
		t.Errorf("IsPremium = %+v (%v)", st, err)
	}
}

func TestSecondPurchaseExtendsFromExpiry(t *testing.T) {
	ctx := context.Background()
	svc, gw, db := newPaymentSvc(t)
	current := payNow.AddDate(0, 0, 10)
	u := createUser(t, db, "renew@example.com", func(u *models.User) { u.PremiumUntil = &current })

	p, _ := svc.Checkout(ctx, u.ID)
	gw.set(p.OrderID, "capture", "accept")
	if _, err := svc.Verify(ctx, u.ID, p.OrderID); err != nil {
		t.Fatal(err)
	}
	want := current.AddDate(0, 0, 30)
	if until := premiumUntil(t, db, u.ID); !until.Equal(want) {
		t.Errorf("premium until = %v, want %v", until, want)
	}
}

func TestConcurrentOrdersBothExtend(t *testing.T) {
	ctx := context.Background()
	svc, gw, db := newPaymentSvc(t)
	u := createUser(t, db, "twice@example.com", nil)

	var mu sync.Mutex
	var userReads, lockedReads int
	err := db.Callback().Query().Before("gorm:query").Register("test:user_locks", func(tx *gorm.DB) {
		if tx.Statement.Table != "users" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		userReads++
		if c, ok := tx.Statement.Clauses["FOR"]; ok {
			if l, ok := c.Expression.(clause.Locking); ok && l.Strength == "UPDATE" {
				lockedReads++
			}
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	p1, _ := svc.Checkout(ctx, u.ID)
	p2, _ := svc.Checkout(ctx, u.ID)
	gw.set(p1.OrderID, "settlement", "")
	gw.set(p2.OrderID, "settlement", "")

	mu.Lock()
	userReads, lockedReads = 0, 0
	mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range []*models.Payment{p1, p2} {
		wg.Add(1)
		go func(orderID string) {
			defer wg.Done()
			if _, err := svc.Verify(ctx, u.ID, orderID); err != nil {
				t.Errorf("verify %s: %v", orderID, err)
			}
		}(p.OrderID)
	}
	wg.Wait()

	want := payNow.AddDate(0, 0, 60)
	if until := premiumUntil(t, db, u.ID); until == nil || !until.Equal(want) {
		t.Errorf("premium until = %v, want %v", until, want)
	}
	if lockedReads != 2 {
		t.Errorf("locked user reads = %d of %d, want one per settlement", lockedReads, userReads)
	}
}

func TestVerifyPendingAndFailed(t *testing.T) {
	ctx := context.Background()
	svc, gw, db := newPaymentSvc(t)
	u := createUser(t, db, "wait@example.com", nil)
	p, _ := svc.Checkout(ctx, u.ID)

	gw.set(p.OrderID, "pending", "")
	got, err := svc.Verify(ctx, u.ID, p.OrderID)
	if !errors.Is(err, ErrPaymentNotSettled) || got == nil || got.Status != models.PaymentPending {
		t.Fatalf("pending: %+v %v", got, err)
	}

	gw.set(p.OrderID, "expire", "")
	got, err = svc.Verify(ctx, u.ID, p.OrderID)
	if err != nil || got.Status != models.PaymentExpired {
		t.Errorf("expire: %+v %v", got, err)
	}
	if premiumUntil(t, db, u.ID) != nil {
		t.Error("expired order granted premium")
	}

	other := createUser(t, db, "nosy@example.com", nil)
	if _, err := svc.Verify(ctx, other.ID, p.OrderID); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign order: %v", err)
	}
}

func TestVerifyRetriesTransientErrors(t *testing.T) {
	ctx := context.Background()
	svc, gw, db := newPaymentSvc(t)
	u := createUser(t, db, "retry@example.com", nil)
	p, _ := svc.Checkout(ctx, u.ID)

	gw.set(p.OrderID, "settlement", "")
	gw.failures = []error{errors.New("midtrans status (503): service unavailable")}
	if _, err := svc.Verify(ctx, u.ID, p.OrderID); err != nil {
		t.Fatalf("verify after transient error: %v", err)
	}
	if gw.calls != 2 {
		t.Errorf("calls = %d, want 2", gw.calls)
	}

	q, _ := svc.Checkout(ctx, u.ID)
	gw.calls = 0
	if _, err := svc.Verify(ctx, u.ID, q.OrderID); err == nil {
		t.Fatal("unknown transaction should fail")
	}
	if gw.calls != 1 {
		t.Errorf("permanent error retried: %d calls", gw.calls)
	}
}

func TestHandleNotificationSignature(t *testing.T) {
	ctx := context.Background()
	svc, _, db := newPaymentSvc(t)
	u := createUser(t, db, "hook@example.com", nil)
	p, _ := svc.Checkout(ctx, u.ID)

	n := TransactionStatus{OrderID: p.OrderID, TransactionStatus: "settlement", StatusCode: "200", GrossAmount: "49000.00"}
	n.SignatureKey = NotificationSignature(n.OrderID, n.StatusCode, n.GrossAmount, "wrong-key")
	if _, err := svc.HandleNotification(ctx, n); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("forged: %v", err)
	}
	if premiumUntil(t, db, u.ID) != nil {
		t.Fatal("forged notification granted premium")
	}

	tampered := n
	tampered.GrossAmount = "1000.00"
	tampered.SignatureKey = NotificationSignature(tampered.OrderID, tampered.StatusCode, tampered.GrossAmount, testServerKey)
	if _, err := svc.HandleNotification(ctx, tampered); !errors.Is(err, ErrValidation) {
		t.Errorf("amount mismatch: %v", err)
	}

	n.SignatureKey = NotificationSignature(n.OrderID, n.StatusCode, n.GrossAmount, testServerKey)
	got, err := svc.HandleNotification(ctx, n)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.PaymentSettled {
		t.Errorf("status = %s", got.Status)
	}

	unknown := TransactionStatus{OrderID: "SIKAL-missing", StatusCode: "200", GrossAmount: "49000.00"}
	unknown.SignatureKey = NotificationSignature(unknown.OrderID, unknown.StatusCode, unknown.GrossAmount, testServerKey)
	if _, err := svc.HandleNotification(ctx, unknown); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown order: %v", err)
	}

	svc.serverKey = ""
	if _, err := svc.HandleNotification(ctx, n); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("empty server key must reject: %v", err)
	}
}

func TestGatewayState(t *testing.T) {
	tests := []struct {
		tx, fraud, want string
	}{
		{"settlement", "", models.PaymentSettled},
		{"capture", "accept", models.PaymentSettled},
		{"capture", "challenge", models.PaymentPending},
		{"capture", "deny", models.PaymentFailed},
		{"pending", "", models.PaymentPending},
		{"expire", "", models.PaymentExpired},
		{"cancel", "", models.PaymentFailed},
		{"refund", "", models.PaymentFailed},
		{"authorize", "", models.PaymentPending},
	}
	for _, tt := range tests {
		if got := GatewayState(tt.tx, tt.fraud); got != tt.want {
			t.Errorf("GatewayState(%q, %q) = %s, want %s", tt.tx, tt.fraud, got, tt.want)
		}
	}
}

func TestIsTransientError(t *testing.T) {
	for msg, want := range map[string]bool{
		"googleapi: Error 503: model overloaded": true,
		"context deadline exceeded":              true,
		"Error 429: rate limit":                  true,
		"invalid argument: bad schema":           false,
		"midtrans status (404): not found":       false,
	} {
		if got := isTransientError(errors.New(msg)); got != want {
			t.Errorf("isTransientError(%q) = %v, want %v", msg, got, want)
		}
	}
}
