package services

import (
	"context"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/sirupsen/logrus"
)

// withRetry runs fn up to three times with full-jitter backoff. Only errors that
// look transient are retried.
func withRetry(ctx context.Context, log logrus.FieldLogger, op string, fn func() error) error {
	return retry.Do(
		func() error {
			err := fn()
			if err == nil {
				return nil
			}
			if !isTransientError(err) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.WithError(err).WithFields(logrus.Fields{"op": op, "attempt": n + 1}).Warn("transient error, retrying")
		}),
	)
}

func isTransientError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"rate limit", "quota", "timeout", "deadline", "unavailable", "temporary",
		"connection reset", "internal server error", "500", "502", "503", "504",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
