package orders

import (
	"context"
	"strings"
	"time"

	"github.com/Yacineooak/ReatilBot-Factory/internal/fraud"
)

// History adapts a Store to the risk engine's prior-order lookup.
type History struct {
	store Store
}

// NewHistory creates a history provider over the order store.
func NewHistory(store Store) *History {
	return &History{store: store}
}

// PriorOrders implements fraud.HistoryProvider.
func (h *History) PriorOrders(ctx context.Context, phone string) ([]fraud.PriorOrder, error) {
	existing, err := h.store.FindByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	prior := make([]fraud.PriorOrder, 0, len(existing))
	for _, o := range existing {
		prior = append(prior, fraud.PriorOrder{
			CreatedAt:     o.CreatedAt,
			FraudReported: o.FraudReported || strings.Contains(o.Notes, FraudMarker),
		})
	}
	return prior, nil
}

// Source adapts a Store to the aggregate analytics' scored-order feed.
type Source struct {
	store Store
}

// NewSource creates an assessment source over the order store.
func NewSource(store Store) *Source {
	return &Source{store: store}
}

// ScoredSince implements fraud.AssessmentSource.
func (s *Source) ScoredSince(ctx context.Context, since time.Time) ([]fraud.ScoredOrder, error) {
	existing, err := s.store.ListSince(ctx, since)
	if err != nil {
		return nil, err
	}
	scored := make([]fraud.ScoredOrder, 0, len(existing))
	for _, o := range existing {
		scored = append(scored, fraud.ScoredOrder{
			City:          o.City,
			Score:         o.RiskScore,
			Factors:       o.RiskFactors,
			FraudReported: o.FraudReported,
			CreatedAt:     o.CreatedAt,
		})
	}
	return scored, nil
}

// VerificationStats summarizes verification outcomes across flagged orders.
type VerificationStats struct {
	TotalOrders     int     `json:"totalOrders"`
	RequiredOrders  int     `json:"requiredOrders"`
	Pending         int     `json:"pending"`
	Verified        int     `json:"verified"`
	Failed          int     `json:"failed"`
	SuccessRate     float64 `json:"successRate"`
	FraudReports    int     `json:"fraudReports"`
	AverageAttempts float64 `json:"averageAttempts"`
}

// VerificationStats aggregates outcomes over all stored orders.
// Rates are computed over orders that required verification.
func (s *Service) VerificationStats(ctx context.Context) (*VerificationStats, error) {
	all, err := s.store.ListSince(ctx, time.Time{})
	if err != nil {
		return nil, err
	}

	stats := &VerificationStats{TotalOrders: len(all)}
	attempts := 0
	for _, o := range all {
		if o.FraudReported {
			stats.FraudReports++
		}
		if !o.VerificationRequired {
			continue
		}
		stats.RequiredOrders++
		attempts += o.VerificationAttempts
		switch o.VerificationStatus {
		case VerificationVerified:
			stats.Verified++
		case VerificationFailed:
			stats.Failed++
		default:
			stats.Pending++
		}
	}
	if settled := stats.Verified + stats.Failed; settled > 0 {
		stats.SuccessRate = float64(stats.Verified) / float64(settled) * 100
	}
	if stats.RequiredOrders > 0 {
		stats.AverageAttempts = float64(attempts) / float64(stats.RequiredOrders)
	}
	return stats, nil
}
