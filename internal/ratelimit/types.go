package ratelimit

import (
	"context"
	"time"
)

// Window is the rate limit accounting period for all endpoint classes.
const Window = time.Minute

// Endpoint classes with their own limits.
const (
	ClassLogin         = "login"
	ClassTOTP          = "totp"
	ClassJoin          = "join"
	ClassAnswer        = "answer"
	ClassAdminMutation = "admin"
)

// classLimits maps endpoint classes to requests per window.
var classLimits = map[string]int{
	ClassLogin:         5,
	ClassTOTP:          10,
	ClassJoin:          30,
	ClassAnswer:        100,
	ClassAdminMutation: 10,
}

// LimitForClass returns the per-window limit for an endpoint class.
// Unknown classes are unlimited.
func LimitForClass(class string) int {
	return classLimits[class]
}

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// RetryAfter returns the seconds a rejected caller should wait,
// rounded up and never below one.
func (r Result) RetryAfter(now time.Time) int {
	seconds := int(r.Reset.Sub(now).Seconds()) + 1
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

// Limiter provides rate limit checks.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
}
