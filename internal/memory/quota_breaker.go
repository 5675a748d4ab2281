package memory

import (
	"sync"
	"time"

	"github.com/scrypster/converse/internal/llm"
)

// Default quota breaker settings.
const (
	// DefaultQuotaMaxFailures is the number of consecutive quota failures
	// required to open the breaker.
	DefaultQuotaMaxFailures = 3

	// DefaultQuotaCooldown is how long summarization stays disabled once
	// the breaker opens.
	DefaultQuotaCooldown = time.Hour
)

// QuotaBreaker disables summary generation after repeated quota or
// rate-limit failures from the summarization dependency, re-enabling it
// after a cooldown window.
//
// It is a two-state machine: closed (summarization allowed) and open
// (disabled). The 3rd consecutive quota failure opens it; the next Allow
// call at or after the cooldown deadline closes it again and resets the
// failure counter. Failures of other kinds (auth, generic network) never
// feed the breaker; they indicate misconfiguration, not exhaustion.
//
// One instance is shared process-wide across all requests; this is a global
// breaker, not a per-user one. The mutex keeps the counter coherent under
// concurrent callers.
type QuotaBreaker struct {
	mu sync.Mutex

	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	consecutiveQuotaErrors int
	lastQuotaErrorTime     time.Time
	tripped                bool
}

// NewQuotaBreaker creates a quota breaker with default settings
// (3 consecutive failures, 1-hour cooldown, wall clock).
func NewQuotaBreaker() *QuotaBreaker {
	return NewQuotaBreakerWithClock(DefaultQuotaMaxFailures, DefaultQuotaCooldown, time.Now)
}

// NewQuotaBreakerWithClock creates a quota breaker with an injected clock.
// Tests use this to drive cooldown elapse deterministically.
func NewQuotaBreakerWithClock(maxFailures int, cooldown time.Duration, now func() time.Time) *QuotaBreaker {
	if maxFailures <= 0 {
		maxFailures = DefaultQuotaMaxFailures
	}
	if cooldown <= 0 {
		cooldown = DefaultQuotaCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &QuotaBreaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         now,
	}
}

// RecordFailure feeds one summarizer failure into the breaker. Only
// quota-exceeded and rate-limited kinds count; all others are ignored.
func (b *QuotaBreaker) RecordFailure(kind llm.ErrorKind) {
	if kind != llm.KindQuotaExceeded && kind != llm.KindRateLimited {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveQuotaErrors++
	b.lastQuotaErrorTime = b.now()
	if b.consecutiveQuotaErrors >= b.maxFailures {
		b.tripped = true
	}
}

// Allow reports whether summarization may be attempted. When the breaker
// is open and the cooldown has elapsed, it closes the breaker, resets the
// counter, and returns true.
func (b *QuotaBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.tripped {
		return true
	}

	if b.now().Sub(b.lastQuotaErrorTime) >= b.cooldown {
		b.tripped = false
		b.consecutiveQuotaErrors = 0
		return true
	}

	return false
}

// State returns "open" or "closed" for logging and stats.
// It does not advance the cooldown check.
func (b *QuotaBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tripped {
		return "open"
	}
	return "closed"
}
