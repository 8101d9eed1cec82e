package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// QuotaService counts free-tier scans per user per calendar day. Counters live in
// Redis; when no client is configured an in-process map is used instead.
type QuotaService struct {
	rdb     *redis.Client
	limit   int
	loc     *time.Location
	metrics *Metrics
	log     logrus.FieldLogger
	now     func() time.Time

	mu       sync.Mutex
	local    map[string]int
	localDay string
}

// QuotaTicket identifies the daily counter a Consume call charged, so a later
// Refund hits the same day even after midnight.
type QuotaTicket struct {
	key     string
	day     string
	resetAt time.Time
}

func NewQuotaService(rdb *redis.Client, limit int, loc *time.Location, metrics *Metrics, log logrus.FieldLogger) *QuotaService {
	if loc == nil {
		loc = time.Local
	}
	return &QuotaService{
		rdb:     rdb,
		limit:   limit,
		loc:     loc,
		metrics: metrics,
		log:     log,
		now:     time.Now,
		local:   make(map[string]int),
	}
}

func (q *QuotaService) Limit() int { return q.limit }

func (q *QuotaService) key(userID uint, day time.Time) string {
	return fmt.Sprintf("sikalori:scans:%d:%s", userID, day.Format("20060102"))
}

// Consume takes one scan from today's allowance and returns how many are left.
// A rejected attempt does not count against the user.
func (q *QuotaService) Consume(ctx context.Context, userID uint) (int, QuotaTicket, error) {
	now := q.now().In(q.loc)
	t := QuotaTicket{
		key:     q.key(userID, now),
		day:     now.Format("20060102"),
		resetAt: time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, q.loc),
	}

	var used int
	if q.rdb != nil {
		pipe := q.rdb.TxPipeline()
		incr := pipe.Incr(ctx, t.key)
		pipe.ExpireAt(ctx, t.key, t.resetAt)
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, QuotaTicket{}, fmt.Errorf("quota incr: %w", err)
		}
		used = int(incr.Val())
		if used > q.limit {
			if err := q.rdb.Decr(ctx, t.key).Err(); err != nil {
				q.log.WithError(err).WithField("user_id", userID).Warn("quota rollback failed")
			}
		}
	} else {
		q.mu.Lock()
		if q.localDay != t.day {
			// counters of past days can never be charged again
			q.local = make(map[string]int)
			q.localDay = t.day
		}
		q.local[t.key]++
		used = q.local[t.key]
		if used > q.limit {
			q.local[t.key]--
		}
		q.mu.Unlock()
	}

	if used > q.limit {
		q.metrics.QuotaRejected.Inc()
		return 0, QuotaTicket{}, fmt.Errorf("%w: %d scans per day on the free plan", ErrQuotaExceeded, q.limit)
	}
	return q.limit - used, t, nil
}

// Refund gives back the scan charged by t. Refunds for a day that has already
// ended are dropped.
func (q *QuotaService) Refund(ctx context.Context, userID uint, t QuotaTicket) {
	if t.key == "" {
		return
	}
	if q.rdb != nil {
		// re-applying the original deadline removes a counter recreated after midnight
		pipe := q.rdb.TxPipeline()
		pipe.Decr(ctx, t.key)
		pipe.ExpireAt(ctx, t.key, t.resetAt)
		if _, err := pipe.Exec(ctx); err != nil {
			q.log.WithError(err).WithField("user_id", userID).Warn("quota refund failed")
		}
		return
	}
	q.mu.Lock()
	if t.day == q.localDay && q.local[t.key] > 0 {
		q.local[t.key]--
	}
	q.mu.Unlock()
}

// Used reports today's count without changing it.
func (q *QuotaService) Used(ctx context.Context, userID uint) (int, error) {
	key := q.key(userID, q.now().In(q.loc))
	if q.rdb != nil {
		n, err := q.rdb.Get(ctx, key).Int()
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return n, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.local[key], nil
}
