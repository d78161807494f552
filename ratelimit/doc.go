// Package ratelimit implements sliding-window admission control keyed by
// client identifier.
//
// The limiter keeps an ordered sequence of request timestamps per
// identifier, pruned to the window on every check. Memory is bounded three
// ways, independent of the logical limit: a per-identifier timestamp cap, a
// global identifier cap with oldest-inserted-first eviction, and a periodic
// sweep that drops idle identifiers.
//
//	limiter := ratelimit.NewLimiter(ratelimit.DefaultOptions())
//	defer limiter.Stop()
//
//	res := limiter.Check(ratelimit.ClientIdentifier(r), ratelimit.Config{
//	    Limit:  100,
//	    Window: time.Minute,
//	})
//	if !res.Allowed {
//	    // deny with 429, Retry-After: res.RetryAfter()
//	}
//
// A denial is a normal outcome, not an error; Check never fails.
package ratelimit
