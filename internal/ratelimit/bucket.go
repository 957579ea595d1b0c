// Package ratelimit enforces the three upstream API limits (requests
// per minute, tokens per minute, and requests per day) simultaneously.
// RPM and TPM are continuous-refill token buckets with fractional
// arithmetic; RPD is an integer counter reset at local midnight in a
// configured timezone. Refill is purely time-based: every acquire
// recomputes, so no background goroutine is needed.
package ratelimit

import (
	"fmt"
	"math"
	"time"
)

// Config holds the upstream limits. Zero values fall back to the
// free-tier defaults.
type Config struct {
	RequestsPerMinute  int
	TokensPerMinute    int
	RequestsPerDay     int
	DailyResetTimezone string
}

const (
	DefaultRequestsPerMinute = 5
	DefaultTokensPerMinute   = 250000
	DefaultRequestsPerDay    = 25
	DefaultTimezone          = "America/Los_Angeles"
)

func (c Config) withDefaults() Config {
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.TokensPerMinute <= 0 {
		c.TokensPerMinute = DefaultTokensPerMinute
	}
	if c.RequestsPerDay <= 0 {
		c.RequestsPerDay = DefaultRequestsPerDay
	}
	if c.DailyResetTimezone == "" {
		c.DailyResetTimezone = DefaultTimezone
	}
	return c
}

// State is the persisted bucket state for one API identifier. The
// distributed limiter stores it as a single record updated under
// compare-and-set.
type State struct {
	RPMAvailable  float64   `json:"rpmAvailable"`
	RPMRefilledAt time.Time `json:"rpmRefilledAt"`
	TPMAvailable  float64   `json:"tpmAvailable"`
	TPMRefilledAt time.Time `json:"tpmRefilledAt"`
	RPDCount      int       `json:"rpdCount"`
	DayBoundary   time.Time `json:"dayBoundary"`
}

// Usage is an observability snapshot of all three buckets.
type Usage struct {
	RPMUsed  int `json:"rpmUsed"`
	RPMLimit int `json:"rpmLimit"`
	TPMUsed  int `json:"tpmUsed"`
	TPMLimit int `json:"tpmLimit"`
	RPDUsed  int `json:"rpdUsed"`
	RPDLimit int `json:"rpdLimit"`
}

// Decision is the outcome of an acquire attempt. On denial, RetryAfter
// is the wait until every blocking bucket could pass; an RPD denial
// waits until the next day boundary.
type Decision struct {
	Granted    bool
	RetryAfter time.Duration
	Usage      Usage
}

// fullState returns pristine buckets at now.
func fullState(cfg Config, now time.Time, loc *time.Location) State {
	return State{
		RPMAvailable:  float64(cfg.RequestsPerMinute),
		RPMRefilledAt: now,
		TPMAvailable:  float64(cfg.TokensPerMinute),
		TPMRefilledAt: now,
		RPDCount:      0,
		DayBoundary:   nextMidnight(now, loc),
	}
}

// refill advances both continuous buckets to now and applies the daily
// reset if the wall clock crossed the boundary. available never exceeds
// capacity and never moves backwards on clock skew.
func refill(st *State, cfg Config, now time.Time, loc *time.Location) {
	if elapsed := now.Sub(st.RPMRefilledAt); elapsed > 0 {
		st.RPMAvailable = math.Min(
			float64(cfg.RequestsPerMinute),
			st.RPMAvailable+elapsed.Seconds()*float64(cfg.RequestsPerMinute)/60.0,
		)
		st.RPMRefilledAt = now
	}
	if elapsed := now.Sub(st.TPMRefilledAt); elapsed > 0 {
		st.TPMAvailable = math.Min(
			float64(cfg.TokensPerMinute),
			st.TPMAvailable+elapsed.Seconds()*float64(cfg.TokensPerMinute)/60.0,
		)
		st.TPMRefilledAt = now
	}
	if st.DayBoundary.IsZero() {
		st.DayBoundary = nextMidnight(now, loc)
	}
	for !now.Before(st.DayBoundary) {
		st.RPDCount = 0
		st.DayBoundary = nextMidnight(st.DayBoundary, loc)
	}
}

// acquire refills st to now and attempts to reserve one request plus
// estimatedTokens. All three buckets decrement atomically on grant; on
// denial st keeps only the refill.
func acquire(st *State, cfg Config, loc *time.Location, now time.Time, estimatedTokens int) Decision {
	refill(st, cfg, now, loc)

	var wait time.Duration
	blocked := false

	if st.RPMAvailable < 1 {
		blocked = true
		wait = maxDuration(wait, timeToRefill(1-st.RPMAvailable, cfg.RequestsPerMinute))
	}
	if st.TPMAvailable < float64(estimatedTokens) {
		blocked = true
		wait = maxDuration(wait, timeToRefill(float64(estimatedTokens)-st.TPMAvailable, cfg.TokensPerMinute))
	}
	if st.RPDCount >= cfg.RequestsPerDay {
		blocked = true
		wait = maxDuration(wait, st.DayBoundary.Sub(now))
	}

	if blocked {
		return Decision{Granted: false, RetryAfter: wait, Usage: usageOf(st, cfg)}
	}

	st.RPMAvailable -= 1
	st.TPMAvailable -= float64(estimatedTokens)
	st.RPDCount++
	return Decision{Granted: true, Usage: usageOf(st, cfg)}
}

// timeToRefill converts a bucket deficit into a wait at the bucket's
// per-minute refill rate.
func timeToRefill(deficit float64, perMinute int) time.Duration {
	seconds := deficit * 60.0 / float64(perMinute)
	return time.Duration(math.Ceil(seconds*1000)) * time.Millisecond
}

func usageOf(st *State, cfg Config) Usage {
	return Usage{
		RPMUsed:  cfg.RequestsPerMinute - int(math.Floor(st.RPMAvailable)),
		RPMLimit: cfg.RequestsPerMinute,
		TPMUsed:  cfg.TokensPerMinute - int(math.Floor(st.TPMAvailable)),
		TPMLimit: cfg.TokensPerMinute,
		RPDUsed:  st.RPDCount,
		RPDLimit: cfg.RequestsPerDay,
	}
}

// nextMidnight returns the first local midnight strictly after t.
// time.Date normalizes through the location, so DST transition days
// (23- and 25-hour days) resolve correctly.
func nextMidnight(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

func loadLocation(cfg Config) (*time.Location, error) {
	loc, err := time.LoadLocation(cfg.DailyResetTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid daily reset timezone %q: %w", cfg.DailyResetTimezone, err)
	}
	return loc, nil
}
