// Package fraud implements heuristic fraud-risk scoring for cash-on-delivery orders.
//
// Every incoming COD order is evaluated against 9 weighted rules: order value,
// phone format, customer name, delivery address, city, prior fraud history,
// recent order bursts, and order timing (weekend / late night). Rule weights
// sum the risk score, clamped to [0, 100], and a fixed threshold ladder maps
// the score to a risk level. Orders at high or very_high risk must pass an
// out-of-band verification challenge before confirmation.
package fraud

import (
	"context"
	"fmt"
	"time"
)

// RiskLevel is the categorical classification of a risk score.
// Levels are ordered: low < medium < high < very_high.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// ParseRiskLevel converts an untrusted string into a RiskLevel.
// Unknown values return an error rather than a panic.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh, RiskVeryHigh:
		return RiskLevel(s), nil
	}
	return "", fmt.Errorf("invalid risk level %q", s)
}

// RequiresVerification reports whether orders at this level must be verified
// before confirmation.
func (l RiskLevel) RequiresVerification() bool {
	return l == RiskHigh || l == RiskVeryHigh
}

// Risk factor names, in evaluation order. The factor list of an Assessment
// always preserves this order so identical inputs produce identical output.
const (
	FactorHighOrderValue      = "high_order_value"
	FactorSuspiciousPhone     = "suspicious_phone"
	FactorSuspiciousName      = "suspicious_name"
	FactorSuspiciousAddress   = "suspicious_address"
	FactorSuspiciousCity      = "suspicious_city"
	FactorRepeatCustomerFraud = "repeat_customer_fraud"
	FactorMultipleRecent      = "multiple_orders_same_phone"
	FactorWeekendOrder        = "weekend_order"
	FactorLateNightOrder      = "late_night_order"
)

// factorWeights are the fixed additive weights per triggered rule.
// The sum (200) deliberately exceeds the score ceiling; scores clamp at 100.
var factorWeights = map[string]int{
	FactorHighOrderValue:      25,
	FactorSuspiciousPhone:     30,
	FactorSuspiciousName:      20,
	FactorSuspiciousAddress:   15,
	FactorSuspiciousCity:      20,
	FactorRepeatCustomerFraud: 40,
	FactorMultipleRecent:      15,
	FactorWeekendOrder:        5,
	FactorLateNightOrder:      10,
}

// FactorWeight returns the configured weight for a factor name, or 0 if unknown.
func FactorWeight(name string) int {
	return factorWeights[name]
}

// OrderProfile carries the customer-facing order fields the engine scores.
// Populated from the order record; no extra queries beyond the history lookup.
type OrderProfile struct {
	OrderID    string
	Name       string
	Phone      string
	Email      string
	Address    string
	City       string
	PostalCode string
	Value      float64
	Currency   string
}

// PriorOrder is a previous order sharing the candidate's phone number,
// reduced to the two signals the history rules need.
type PriorOrder struct {
	CreatedAt     time.Time
	FraudReported bool
}

// HistoryProvider fetches all prior orders for a phone number (exact match).
type HistoryProvider interface {
	PriorOrders(ctx context.Context, phone string) ([]PriorOrder, error)
}

// Clock abstracts wall-clock time so the weekend and late-night rules
// are deterministic under test.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// Details exposes the per-rule analysis behind an assessment for
// human inspection and the ops dashboard.
type Details struct {
	SuspiciousPhone   bool `json:"suspiciousPhone"`
	SuspiciousName    bool `json:"suspiciousName"`
	SuspiciousAddress bool `json:"suspiciousAddress"`
	SuspiciousCity    bool `json:"suspiciousCity"`
	FraudHistory      bool `json:"fraudHistory"`
	TotalPriorOrders  int  `json:"totalPriorOrders"`
	RecentOrders      int  `json:"recentOrders"`
	HistoryDegraded   bool `json:"historyDegraded"`
	Weekend           bool `json:"weekend"`
	LateNight         bool `json:"lateNight"`
	Hour              int  `json:"hour"`
	Weekday           int  `json:"weekday"`
}

// Assessment is the result of evaluating one order.
type Assessment struct {
	Score                int       `json:"score"`
	Level                RiskLevel `json:"level"`
	Factors              []string  `json:"factors"`
	VerificationRequired bool      `json:"verificationRequired"`
	Details              Details   `json:"details"`
	EvaluatedAt          time.Time `json:"evaluatedAt"`
}
