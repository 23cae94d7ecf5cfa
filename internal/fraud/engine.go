package fraud

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/Yacineooak/ReatilBot-Factory/internal/logging"
	"github.com/Yacineooak/ReatilBot-Factory/internal/traces"
)

const (
	// DefaultHighValueThreshold is the order value (in currency units)
	// above which the high_order_value rule fires.
	DefaultHighValueThreshold = 50000

	// recentOrderWindow bounds the multiple_orders_same_phone rule.
	recentOrderWindow = 24 * time.Hour

	// localPhoneDigits is the expected digit count of a local mobile number.
	localPhoneDigits = 10
)

// validPhoneRe matches the accepted local mobile format: a 05/06/07 prefix
// followed by 8 more digits.
var validPhoneRe = regexp.MustCompile(`^(05|06|07)\d{8}$`)

// suspiciousPrefixes flag throwaway names and addresses.
var suspiciousPrefixes = []string{"test", "fake", "admin"}

// Engine evaluates orders against the weighted rule set. Evaluation is a pure
// function of the order fields, the injected clock, and the history lookup:
// identical inputs always produce an identical Assessment.
type Engine struct {
	history            HistoryProvider
	clock              Clock
	highValueThreshold float64
	blockedCities      map[string]struct{}
}

// NewEngine creates a scoring engine. A nil clock defaults to wall-clock time.
func NewEngine(history HistoryProvider, clock Clock) *Engine {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	e := &Engine{
		history:            history,
		clock:              clock,
		highValueThreshold: DefaultHighValueThreshold,
		blockedCities:      make(map[string]struct{}),
	}
	// Default blocklist: placeholder cities seen in fraudulent submissions.
	for _, c := range []string{"Unknown", "Test", ""} {
		e.blockedCities[c] = struct{}{}
	}
	return e
}

// WithHighValueThreshold overrides the high-value trigger.
func (e *Engine) WithHighValueThreshold(v float64) *Engine {
	e.highValueThreshold = v
	return e
}

// WithBlockedCities adds cities to the blocklist. The default placeholder
// entries stay in effect.
func (e *Engine) WithBlockedCities(cities ...string) *Engine {
	for _, c := range cities {
		e.blockedCities[c] = struct{}{}
	}
	return e
}

// Evaluate scores an order and returns the assessment. A failing history
// lookup degrades gracefully: the history rules are treated as not triggered,
// the degradation is logged and surfaced in Details, and scoring continues.
func (e *Engine) Evaluate(ctx context.Context, o *OrderProfile) *Assessment {
	ctx, span := traces.StartSpan(ctx, "fraud.evaluate",
		traces.OrderID(o.OrderID),
		traces.City(o.City),
	)
	defer span.End()

	now := e.clock.Now().UTC()

	score := 0
	var factors []string
	details := Details{
		Hour:    now.Hour(),
		Weekday: int(now.Weekday()),
	}

	trigger := func(name string) {
		factors = append(factors, name)
		score += factorWeights[name]
	}

	if o.Value > e.highValueThreshold {
		trigger(FactorHighOrderValue)
	}

	if details.SuspiciousPhone = suspiciousPhone(o.Phone); details.SuspiciousPhone {
		trigger(FactorSuspiciousPhone)
	}
	if details.SuspiciousName = suspiciousName(o.Name); details.SuspiciousName {
		trigger(FactorSuspiciousName)
	}
	if details.SuspiciousAddress = suspiciousAddress(o.Address); details.SuspiciousAddress {
		trigger(FactorSuspiciousAddress)
	}
	if details.SuspiciousCity = e.suspiciousCity(o.City); details.SuspiciousCity {
		trigger(FactorSuspiciousCity)
	}

	prior, err := e.history.PriorOrders(ctx, o.Phone)
	if err != nil {
		// Fail-open: scoring must not abort because the store can't answer.
		details.HistoryDegraded = true
		logging.L(ctx).Warn("order history lookup failed, scoring without history",
			"order_id", o.OrderID,
			"error", err,
		)
	} else {
		details.TotalPriorOrders = len(prior)
		cutoff := now.Add(-recentOrderWindow)
		for _, p := range prior {
			if p.FraudReported {
				details.FraudHistory = true
			}
			if !p.CreatedAt.Before(cutoff) {
				details.RecentOrders++
			}
		}
		if details.FraudHistory {
			trigger(FactorRepeatCustomerFraud)
		}
		if details.RecentOrders > 1 {
			trigger(FactorMultipleRecent)
		}
	}

	details.Weekend = now.Weekday() == time.Saturday || now.Weekday() == time.Sunday
	if details.Weekend {
		trigger(FactorWeekendOrder)
	}
	details.LateNight = now.Hour() >= 22 || now.Hour() <= 6
	if details.LateNight {
		trigger(FactorLateNightOrder)
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	level := ClassifyLevel(score)

	span.SetAttributes(
		traces.RiskScore(score),
		traces.RiskLevel(string(level)),
	)

	return &Assessment{
		Score:                score,
		Level:                level,
		Factors:              factors,
		VerificationRequired: level.RequiresVerification(),
		Details:              details,
		EvaluatedAt:          now,
	}
}

// ClassifyLevel maps a score onto the risk ladder. Thresholds are evaluated
// highest-first so level is monotonic non-decreasing in score.
func ClassifyLevel(score int) RiskLevel {
	switch {
	case score >= 70:
		return RiskVeryHigh
	case score >= 50:
		return RiskHigh
	case score >= 25:
		return RiskMedium
	default:
		return RiskLow
	}
}

// suspiciousPhone reports whether a phone number fails validation.
// The number is normalized to digits, then rejected when it is a run of one
// repeated digit (0000000000 and friends) or does not match the local format.
// An absent phone is suspicious by definition.
func suspiciousPhone(phone string) bool {
	if phone == "" {
		return true
	}
	digits := normalizeDigits(phone)
	if isRepeatedDigit(digits) {
		return true
	}
	return !validPhoneRe.MatchString(digits)
}

// normalizeDigits strips every non-digit rune.
func normalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// isRepeatedDigit reports whether the number opens with 10 copies of the
// same digit, the signature of keyboard-mash and placeholder numbers.
func isRepeatedDigit(digits string) bool {
	if len(digits) < localPhoneDigits {
		return false
	}
	first := digits[0]
	for i := 1; i < localPhoneDigits; i++ {
		if digits[i] != first {
			return false
		}
	}
	return true
}

func suspiciousName(name string) bool {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < 2 {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, p := range suspiciousPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return allDigits(lower)
}

func suspiciousAddress(address string) bool {
	trimmed := strings.TrimSpace(address)
	// Anything 5 characters or shorter can't be a deliverable address.
	if len(trimmed) <= 5 {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, p := range suspiciousPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return allDigits(lower)
}

func (e *Engine) suspiciousCity(city string) bool {
	trimmed := strings.TrimSpace(city)
	if trimmed == "" {
		return true
	}
	_, blocked := e.blockedCities[trimmed]
	return blocked
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
