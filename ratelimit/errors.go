package ratelimit

import "errors"

// ErrGlobalRateLimited is returned when the shared global token bucket is
// exhausted, before any per-IP state is even consulted (spec §4.2 step 2).
var ErrGlobalRateLimited = errors.New("ratelimit: global rate exceeded")

// ErrPerIPRateLimited is returned when a source IP's own token bucket is
// exhausted (spec §4.2 step 3).
var ErrPerIPRateLimited = errors.New("ratelimit: per-ip rate exceeded")
