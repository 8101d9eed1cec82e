package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
)

var jakarta = time.FixedZone("WIB", 7*3600)

func newRedisQuota(t *testing.T, limit int, now time.Time) (*QuotaService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	mr.SetTime(now)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	q := NewQuotaService(rdb, limit, jakarta, newTestMetrics(), newTestLogger())
	q.now = fixedClock(now)
	return q, mr
}

func TestQuotaConsumeRedis(t *testing.T) {
	ctx := context.Background()
	// 22:00 WIB, two hours before the local reset
	now := time.Date(2026, 3, 14, 22, 0, 0, 0, jakarta)
	q, mr := newRedisQuota(t, 3, now)

	for want := 2; want >= 0; want-- {
		left, _, err := q.Consume(ctx, 7)
		if err != nil {
			t.Fatalf("consume: %v", err)
		}
		if left != want {
			t.Errorf("remaining = %d, want %d", left, want)
		}
	}

	if _, _, err := q.Consume(ctx, 7); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("4th scan: err = %v, want ErrQuotaExceeded", err)
	}
	if got := testutil.ToFloat64(q.metrics.QuotaRejected); got != 1 {
		t.Errorf("rejected counter = %v", got)
	}

	key := "sikalori:scans:7:20260314"
	if v, _ := mr.Get(key); v != "3" {
		t.Errorf("stored count = %q, rejected attempt must not count", v)
	}
	if ttl := mr.TTL(key); ttl != 2*time.Hour {
		t.Errorf("ttl = %v, want 2h until local midnight", ttl)
	}

	// another user has an independent allowance
	if left, _, err := q.Consume(ctx, 8); err != nil || left != 2 {
		t.Errorf("other user: left=%d err=%v", left, err)
	}
}

func TestQuotaRefundRedis(t *testing.T) {
	ctx := context.Background()
	q, _ := newRedisQuota(t, 1, time.Date(2026, 3, 14, 9, 0, 0, 0, jakarta))

	_, ticket, err := q.Consume(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	q.Refund(ctx, 1, ticket)
	if used, err := q.Used(ctx, 1); err != nil || used != 0 {
		t.Fatalf("used after refund = %d (%v)", used, err)
	}
	if _, _, err := q.Consume(ctx, 1); err != nil {
		t.Errorf("refunded scan should be usable again: %v", err)
	}
}

func TestQuotaResetsAtLocalMidnight(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 23, 30, 0, 0, jakarta)
	q, mr := newRedisQuota(t, 1, now)

	if _, _, err := q.Consume(ctx, 3); err != nil {
		t.Fatal(err)
	}
	if _, _, err := q.Consume(ctx, 3); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v", err)
	}

	mr.FastForward(31 * time.Minute)
	q.now = fixedClock(now.Add(31 * time.Minute))
	if left, _, err := q.Consume(ctx, 3); err != nil || left != 0 {
		t.Errorf("next day: left=%d err=%v", left, err)
	}
	if mr.Exists("sikalori:scans:3:20260314") {
		t.Error("yesterday's counter should have expired")
	}
}

func TestQuotaRefundAfterMidnightKeepsNextDay(t *testing.T) {
	ctx := context.Background()
	late := time.Date(2026, 3, 14, 23, 59, 59, 0, jakarta)
	q, mr := newRedisQuota(t, 1, late)

	_, ticket, err := q.Consume(ctx, 4)
	if err != nil {
		t.Fatal(err)
	}

	// the analysis finishes two seconds later, on the next local day
	next := late.Add(2 * time.Second)
	mr.FastForward(2 * time.Second)
	mr.SetTime(next)
	q.now = fixedClock(next)
	q.Refund(ctx, 4, ticket)

	if mr.Exists("sikalori:scans:4:20260314") {
		t.Error("refund recreated yesterday's counter")
	}
	if mr.Exists("sikalori:scans:4:20260315") {
		t.Error("refund touched today's counter")
	}
	if left, _, err := q.Consume(ctx, 4); err != nil || left != 0 {
		t.Fatalf("today: left=%d err=%v", left, err)
	}
	if _, _, err := q.Consume(ctx, 4); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("late refund granted an extra scan: err = %v", err)
	}
}

func TestQuotaMemoryFallback(t *testing.T) {
	ctx := context.Background()
	q := NewQuotaService(nil, 2, jakarta, newTestMetrics(), newTestLogger())
	q.now = fixedClock(time.Date(2026, 3, 14, 10, 0, 0, 0, jakarta))

	if used, _ := q.Used(ctx, 5); used != 0 {
		t.Fatalf("used = %d", used)
	}
	_, t1, _ := q.Consume(ctx, 5)
	_, t2, _ := q.Consume(ctx, 5)
	if _, _, err := q.Consume(ctx, 5); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v", err)
	}
	if used, _ := q.Used(ctx, 5); used != 2 {
		t.Errorf("used = %d, want 2", used)
	}
	q.Refund(ctx, 5, t1)
	q.Refund(ctx, 5, t2)
	q.Refund(ctx, 5, t2)
	q.Refund(ctx, 5, QuotaTicket{})
	if used, _ := q.Used(ctx, 5); used != 0 {
		t.Errorf("refund below zero: used = %d", used)
	}
}

func TestQuotaMemoryFallbackDropsPastDays(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 3, 14, 23, 0, 0, 0, jakarta)
	q := NewQuotaService(nil, 1, jakarta, newTestMetrics(), newTestLogger())
	q.now = fixedClock(day)

	_, ticket, err := q.Consume(ctx, 6)
	if err != nil {
		t.Fatal(err)
	}
	q.Consume(ctx, 9)

	q.now = fixedClock(day.Add(2 * time.Hour))
	if _, _, err := q.Consume(ctx, 6); err != nil {
		t.Fatalf("next day: %v", err)
	}
	if len(q.local) != 1 {
		t.Errorf("local counters = %v, want only today's", q.local)
	}
	q.Refund(ctx, 6, ticket)
	if used, _ := q.Used(ctx, 6); used != 1 {
		t.Errorf("refund for yesterday changed today: used = %d", used)
	}
}
