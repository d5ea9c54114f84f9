// Package budget tracks monthly LLM spend and enforces the soft and hard
// caps of the reply pipeline.
package budget

import (
	"math"
	"sync"
	"time"
)

// Per-token pricing, expressed in USD per one million tokens. These are
// estimates tuned for the gpt-4.1 family; the tracker is a cost governor,
// not an invoice.
const (
	InputUsdPerMillion  = 0.40
	OutputUsdPerMillion = 1.60
)

// SoftLimitRatio is the spend fraction past which generation downgrades to
// the base model unconditionally.
const SoftLimitRatio = 0.9

// Store persists per-month spend counters. Implementations must be safe
// for concurrent use.
type Store interface {
	// Spend returns the accumulated spend in USD for the month key.
	Spend(monthKey string) float64

	// Add increases the month's spend by costUsd and returns the new
	// total. Negative costs are ignored.
	Add(monthKey string, costUsd float64) float64
}

// MemoryStore keeps spend counters in process memory. Counters reset on
// restart, which matches a best-effort monthly budget.
type MemoryStore struct {
	mu    sync.Mutex
	spend map[string]float64
}

// NewMemoryStore returns an empty in-memory spend store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{spend: make(map[string]float64)}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Spend(monthKey string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spend[monthKey]
}

func (m *MemoryStore) Add(monthKey string, costUsd float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if costUsd > 0 {
		m.spend[monthKey] = roundTo(m.spend[monthKey]+costUsd, 6)
	}
	return m.spend[monthKey]
}

// Status is a point-in-time view of the monthly budget.
type Status struct {
	// SpentUsd is the accumulated spend for the current month.
	SpentUsd float64

	// LimitUsd is the configured monthly cap.
	LimitUsd float64

	// Ratio is SpentUsd/LimitUsd rounded to three decimals, 0 when no
	// limit is configured.
	Ratio float64

	// HardLimited is true once spend has reached the cap; replies fall
	// back to a canned short answer.
	HardLimited bool

	// SoftLimited is true past SoftLimitRatio; generation pins the base
	// model to slow the burn.
	SoftLimited bool
}

// Tracker evaluates spend against the configured monthly cap.
type Tracker struct {
	store    Store
	limitUsd float64
	now      func() time.Time
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithNow overrides the tracker clock. Useful in tests.
func WithNow(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// New returns a Tracker over the given store with the given monthly cap
// in USD.
func New(store Store, limitUsd float64, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		limitUsd: limitUsd,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MonthKey returns the UTC "YYYY-MM" label for t. Spend counters are keyed
// on this value so budgets roll over at month boundaries.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Status reports the current month's budget state.
func (t *Tracker) Status() Status {
	return t.statusFor(t.store.Spend(MonthKey(t.now())))
}

// Charge records a completed generation's cost and returns the budget
// state after the charge.
func (t *Tracker) Charge(costUsd float64) Status {
	return t.statusFor(t.store.Add(MonthKey(t.now()), costUsd))
}

func (t *Tracker) statusFor(spent float64) Status {
	var ratio float64
	if t.limitUsd > 0 {
		ratio = spent / t.limitUsd
	}
	return Status{
		SpentUsd:    spent,
		LimitUsd:    t.limitUsd,
		Ratio:       roundTo(ratio, 3),
		HardLimited: spent >= t.limitUsd,
		SoftLimited: ratio >= SoftLimitRatio,
	}
}

// EstimateCost converts token usage into estimated USD spend, rounded to
// six decimals.
func EstimateCost(promptTokens, completionTokens int) float64 {
	inputCost := float64(promptTokens) / 1_000_000 * InputUsdPerMillion
	outputCost := float64(completionTokens) / 1_000_000 * OutputUsdPerMillion
	return roundTo(inputCost+outputCost, 6)
}

func roundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
