package ratelimit

import "time"

// ModelDefaults are the RPM/RPD pairs from api_rate_limiter.py, each RPD
// already inflated 112.5% there "to accommodate network jitter / token
// overflow edge cases". Nothing in the module reads this table;
// internal/config sets its own per-tier defaults.
var ModelDefaults = map[string]Config{
	"gemini-2.5-pro":                 {MaxRequests: 5, Window: time.Minute, RPDLimit: 113, CounterName: "gemini_pro"},
	"gemini-2.5-flash":                {MaxRequests: 10, Window: time.Minute, RPDLimit: 281, CounterName: "gemini_flash"},
	"gemini-2.5-flash-preview":        {MaxRequests: 10, Window: time.Minute, RPDLimit: 281, CounterName: "gemini_flash_preview"},
	"gemini-2.5-flash-lite":           {MaxRequests: 15, Window: time.Minute, RPDLimit: 1125, CounterName: "gemini_flash_lite"},
	"gemini-2.5-flash-lite-preview":   {MaxRequests: 15, Window: time.Minute, RPDLimit: 1125, CounterName: "gemini_flash_lite_preview"},
	"gemma-3-27b-it":                  {MaxRequests: 30, Window: time.Minute, RPDLimit: 16200, CounterName: "gemma"},
}

// DefaultNullIncrementProbability is api_rate_limiter.py's hardcoded 0.25,
// the same value internal/config sets as every tier's default
// null_increment_probability. New does not apply it: a zero
// Config.NullIncrementProbability stays zero.
const DefaultNullIncrementProbability = 0.25
