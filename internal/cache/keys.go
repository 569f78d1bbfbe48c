package cache

import (
	"fmt"
	"time"
)

// RateLimitKey names the counter for subject in the fixed window that contains t.
func RateLimitKey(subject string, window time.Duration, t time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%d", subject, t.Unix()/int64(window/time.Second))
}
