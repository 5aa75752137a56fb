// Package ratelimit throttles MCP tool calls with one token bucket per tool.
package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Rule is the budget for one tool.
type Rule struct {
	Tool      string
	PerMinute float64
	Burst     int
}

// DefaultRules are the budgets the MCP server starts with.
var DefaultRules = []Rule{
	{Tool: "stimseq_parse", PerMinute: 60, Burst: 10},
	{Tool: "stimseq_lookup", PerMinute: 120, Burst: 20},
	{Tool: "stimseq_history", PerMinute: 30, Burst: 5},
}

// Limiter is a token bucket. It starts full and is safe for concurrent use.
type Limiter struct {
	mu     sync.Mutex
	rate   float64 // tokens per second
	burst  float64
	tokens float64
	last   time.Time
	now    func() time.Time
}

// NewLimiter creates a full bucket refilling at rate tokens per second.
func NewLimiter(rate float64, burst int) *Limiter {
	return newLimiterAt(rate, burst, time.Now)
}

func newLimiterAt(rate float64, burst int, now func() time.Time) *Limiter {
	return &Limiter{
		rate:   rate,
		burst:  float64(burst),
		tokens: float64(burst),
		last:   now(),
		now:    now,
	}
}

// Allow takes one token if available.
func (l *Limiter) Allow() bool {
	ok, _ := l.Reserve()
	return ok
}

// Reserve takes one token if available. When it is not, it reports how long
// until one will be. A zero rate never refills and reports a zero wait.
func (l *Limiter) Reserve() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if elapsed := now.Sub(l.last).Seconds(); elapsed > 0 {
		l.tokens = math.Min(l.burst, l.tokens+l.rate*elapsed)
		l.last = now
	}

	if l.tokens >= 1 {
		l.tokens--
		return true, 0
	}
	if l.rate <= 0 {
		return false, 0
	}
	wait := (1 - l.tokens) / l.rate
	return false, time.Duration(wait * float64(time.Second))
}

// LimitError is returned by CheckLimit when a tool is out of budget.
type LimitError struct {
	Tool       string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	if e.RetryAfter <= 0 {
		return fmt.Sprintf("rate limit exceeded for %s", e.Tool)
	}
	return fmt.Sprintf("rate limit exceeded for %s, retry in %.1fs", e.Tool, e.RetryAfter.Seconds())
}

// ToolLimiters maps tool names to their limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters builds limiters for DefaultRules.
func NewToolLimiters() ToolLimiters {
	return FromRules(DefaultRules)
}

// FromRules builds one limiter per rule.
func FromRules(rules []Rule) ToolLimiters {
	limiters := make(ToolLimiters, len(rules))
	for _, r := range rules {
		limiters[r.Tool] = NewLimiter(r.PerMinute/60, r.Burst)
	}
	return limiters
}

// CheckLimit takes a token for toolName. Tools without a limiter are
// always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}
	if ok, wait := limiter.Reserve(); !ok {
		return &LimitError{Tool: toolName, RetryAfter: wait}
	}
	return nil
}
