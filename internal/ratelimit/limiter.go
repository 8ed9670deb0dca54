// Package ratelimit implements the per-model RPM/RPD token bucket and the
// wiki leaky bucket described in spec §4.1.
package ratelimit

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrDailyQuotaExceeded is raised when a model's RPD budget is spent for the
// current day (spec §4.1, §7).
var ErrDailyQuotaExceeded = errors.New("daily request quota exceeded")

// Limiter is a single model's rate budget: an in-memory sliding-window RPM
// deque plus an optional persistent daily counter file, ported from
// api_rate_limiter.py's APIRateLimiter.
type Limiter struct {
	logger *slog.Logger

	maxRequests int
	window      time.Duration

	rpdLimit    int // 0 means "no RPD limit"
	counterFile string

	nullIncrementProbability float64

	mu          sync.Mutex
	timestamps  []time.Time
	dailyCount  int
	dailyLoaded bool
}

// Config configures one model's Limiter.
type Config struct {
	MaxRequests int
	Window      time.Duration
	RPDLimit    int    // 0 disables the daily counter
	CounterName string // required when RPDLimit > 0; used to derive the counter file name
	CacheDir    string // directory holding "<CounterName>_rpd_counter.json"

	// NullIncrementProbability is the chance a null/failed call still
	// increments the daily counter, as defensive accounting against silent
	// failures (spec §9 Open Questions; api_rate_limiter.py hardcodes 0.25).
	NullIncrementProbability float64
}

// New constructs a Limiter and, if RPDLimit is set, loads its daily counter
// file (resetting it if the stored date is not today).
func New(logger *slog.Logger, cfg Config) *Limiter {
	l := &Limiter{
		logger:                   logger,
		maxRequests:              cfg.MaxRequests,
		window:                   cfg.Window,
		rpdLimit:                 cfg.RPDLimit,
		nullIncrementProbability: cfg.NullIncrementProbability,
	}
	if cfg.RPDLimit > 0 && cfg.CounterName != "" {
		l.counterFile = filepath.Join(cfg.CacheDir, cfg.CounterName+"_rpd_counter.json")
		l.loadDailyCounter()
	}
	return l
}

type counterFile struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

func (l *Limiter) loadDailyCounter() {
	today := time.Now().Format(time.DateOnly)
	if l.counterFile != "" {
		if data, err := os.ReadFile(l.counterFile); err == nil {
			var cf counterFile
			if json.Unmarshal(data, &cf) == nil && cf.Date == today {
				l.dailyCount = cf.Count
				l.dailyLoaded = true
				return
			}
		}
	}
	l.dailyCount = 0
	l.dailyLoaded = true
	l.saveDailyCounter()
}

func (l *Limiter) saveDailyCounter() {
	if l.counterFile == "" {
		return
	}
	cf := counterFile{Date: time.Now().Format(time.DateOnly), Count: l.dailyCount}
	data, err := json.Marshal(cf)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(l.counterFile), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(l.counterFile, data, 0o644)
}

// checkAndWait is the RPD-then-RPM double check from _check_and_wait: it
// raises ErrDailyQuotaExceeded first, then trims the sliding window and
// blocks until a slot is free.
func (l *Limiter) checkAndWait() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rpdLimit > 0 && l.dailyCount >= l.rpdLimit {
		return fmt.Errorf("%w: limit %d for %s", ErrDailyQuotaExceeded, l.rpdLimit, l.counterFile)
	}

	now := time.Now()
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.timestamps) && !l.timestamps[i].After(cutoff) {
		i++
	}
	l.timestamps = l.timestamps[i:]

	if len(l.timestamps) >= l.maxRequests {
		wait := l.timestamps[0].Sub(cutoff)
		if wait > 0 {
			l.mu.Unlock()
			time.Sleep(wait)
			l.mu.Lock()
		}
	}
	l.timestamps = append(l.timestamps, time.Now())
	return nil
}

func (l *Limiter) incrementAndSave() {
	if l.rpdLimit <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dailyCount++
	l.saveDailyCounter()
}

// Limit runs fn under this limiter's RPM/RPD budget. If the daily quota is
// exhausted, fn is skipped and onQuotaExceeded supplies the safe-default
// result instead (spec §7: "DailyQuotaExceeded turns each LLM caller's
// result into a safe default"). isNull reports whether a successful result
// should still be treated as a "null" result for the probabilistic RPD
// accounting in api_rate_limiter.py's limit() decorator.
func Limit[T any](l *Limiter, name string, onQuotaExceeded func() T, isNull func(T) bool, fn func() (T, error)) (T, error) {
	if err := l.checkAndWait(); err != nil {
		if errors.Is(err, ErrDailyQuotaExceeded) {
			l.logger.Warn("daily quota exhausted, returning safe default", "limiter", name)
			return onQuotaExceeded(), nil
		}
		var zero T
		return zero, err
	}

	result, err := fn()
	if err != nil || isNull(result) {
		if rand.Float64() < l.nullIncrementProbability {
			l.logger.Info("call returned null/failed, incrementing RPD by 25% policy", "limiter", name)
			l.incrementAndSave()
		}
		return result, err
	}
	l.incrementAndSave()
	return result, nil
}
