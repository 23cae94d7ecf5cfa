package fraud

import (
	"context"
	"sort"
	"time"
)

// cityWindow is the lookback used by the per-city risk profile.
const cityWindow = 90 * 24 * time.Hour

// ScoredOrder is the minimal slice of a stored order the aggregate
// analytics need. The order store adapts its records to this shape.
type ScoredOrder struct {
	City          string
	Score         int
	Factors       []string
	FraudReported bool
	CreatedAt     time.Time
}

// AssessmentSource yields previously scored orders created at or after
// a point in time.
type AssessmentSource interface {
	ScoredSince(ctx context.Context, since time.Time) ([]ScoredOrder, error)
}

// FactorBreakdown is a frequency histogram of triggered risk factors
// across all orders scored since a given time.
type FactorBreakdown struct {
	Since           time.Time      `json:"since"`
	OrdersEvaluated int            `json:"ordersEvaluated"`
	Counts          map[string]int `json:"counts"`
}

// CityRisk is the aggregated risk profile of one delivery city.
type CityRisk struct {
	City           string  `json:"city"`
	Orders         int     `json:"orders"`
	AverageScore   float64 `json:"averageScore"`
	FraudReports   int     `json:"fraudReports"`
	FraudRate      float64 `json:"fraudRate"`
	Classification string  `json:"classification"`
}

// City risk classifications.
const (
	CityHighRisk   = "high_risk"
	CityMediumRisk = "medium_risk"
	CityLowRisk    = "low_risk"
	CityUnknown    = "unknown"
)

// Analytics computes read-only aggregate views over stored assessments.
// It never mutates orders and tolerates an empty store.
type Analytics struct {
	source AssessmentSource
	clock  Clock
}

// NewAnalytics creates an analytics view over a source of scored orders.
// A nil clock defaults to wall-clock time.
func NewAnalytics(source AssessmentSource, clock Clock) *Analytics {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	return &Analytics{source: source, clock: clock}
}

// Factors builds the risk-factor frequency histogram for orders scored
// since the given time. Every known factor appears in the result, zero
// counts included, so dashboards render a stable set of rows.
func (a *Analytics) Factors(ctx context.Context, since time.Time) (*FactorBreakdown, error) {
	orders, err := a.source.ScoredSince(ctx, since)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(factorWeights))
	for name := range factorWeights {
		counts[name] = 0
	}
	for _, o := range orders {
		for _, f := range o.Factors {
			counts[f]++
		}
	}

	return &FactorBreakdown{
		Since:           since,
		OrdersEvaluated: len(orders),
		Counts:          counts,
	}, nil
}

// Cities builds the per-city risk profile over the trailing 90 days,
// sorted by average score descending (ties broken by city name so the
// output is stable).
func (a *Analytics) Cities(ctx context.Context) ([]CityRisk, error) {
	since := a.clock.Now().UTC().Add(-cityWindow)
	orders, err := a.source.ScoredSince(ctx, since)
	if err != nil {
		return nil, err
	}

	type cityAgg struct {
		orders     int
		scoreTotal int
		fraud      int
	}
	byCity := make(map[string]*cityAgg)
	for _, o := range orders {
		agg := byCity[o.City]
		if agg == nil {
			agg = &cityAgg{}
			byCity[o.City] = agg
		}
		agg.orders++
		agg.scoreTotal += o.Score
		if o.FraudReported {
			agg.fraud++
		}
	}

	result := make([]CityRisk, 0, len(byCity))
	for city, agg := range byCity {
		avg := float64(agg.scoreTotal) / float64(agg.orders)
		rate := float64(agg.fraud) / float64(agg.orders) * 100
		result = append(result, CityRisk{
			City:           city,
			Orders:         agg.orders,
			AverageScore:   avg,
			FraudReports:   agg.fraud,
			FraudRate:      rate,
			Classification: classifyCity(rate, avg),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].AverageScore != result[j].AverageScore {
			return result[i].AverageScore > result[j].AverageScore
		}
		return result[i].City < result[j].City
	})
	return result, nil
}

// classifyCity maps a city's fraud rate (percent) and average score
// onto the risk buckets used by the ops dashboard.
func classifyCity(fraudRate, avgScore float64) string {
	switch {
	case fraudRate > 20 || avgScore > 60:
		return CityHighRisk
	case fraudRate > 10 || avgScore > 40:
		return CityMediumRisk
	default:
		return CityLowRisk
	}
}
