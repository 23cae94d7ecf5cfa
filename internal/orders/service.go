package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Yacineooak/ReatilBot-Factory/internal/fraud"
	"github.com/Yacineooak/ReatilBot-Factory/internal/idgen"
	"github.com/Yacineooak/ReatilBot-Factory/internal/logging"
	"github.com/Yacineooak/ReatilBot-Factory/internal/metrics"
	"github.com/Yacineooak/ReatilBot-Factory/internal/realtime"
	"github.com/Yacineooak/ReatilBot-Factory/internal/validation"
	"github.com/Yacineooak/ReatilBot-Factory/internal/verification"
)

// DefaultCurrency is assumed when intake omits the currency.
const DefaultCurrency = "DZD"

// Verifier runs the out-of-band verification workflow for an order.
type Verifier interface {
	Initiate(ctx context.Context, orderID, phone string, method verification.Method) (*verification.InitiateResult, error)
	SubmitCode(ctx context.Context, orderID, code string) error
	Status(ctx context.Context, orderID string) (*verification.Status, error)
	Cancel(ctx context.Context, orderID string) error
}

// EventSink receives order lifecycle events for the live dashboard feed.
type EventSink interface {
	OrderFlagged(realtime.OrderEvent)
	OrderVerified(realtime.OrderEvent)
	VerificationFailed(realtime.OrderEvent)
}

// Service implements order business logic.
type Service struct {
	store    Store
	engine   *fraud.Engine
	verifier Verifier
	events   EventSink
}

// NewService creates an order service.
func NewService(store Store, engine *fraud.Engine, verifier Verifier) *Service {
	return &Service{
		store:    store,
		engine:   engine,
		verifier: verifier,
	}
}

// WithEvents adds a live event sink for the dashboard feed.
func (s *Service) WithEvents(sink EventSink) *Service {
	s.events = sink
	return s
}

// validateCreate checks intake fields before any store access.
func validateCreate(req CreateRequest) validation.ValidationErrors {
	return validation.Validate(
		validation.Required("orderId", req.OrderID),
		validation.ValidOrderID("orderId", req.OrderID),
		validation.Required("customerName", req.CustomerName),
		validation.MaxLength("customerName", req.CustomerName, 200),
		validation.Required("phone", req.Phone),
		validation.MaxLength("phone", req.Phone, 32),
		validation.Required("address", req.Address),
		validation.MaxLength("address", req.Address, 500),
		validation.Required("city", req.City),
		validation.MaxLength("city", req.City, 100),
		validation.PositiveValue("value", req.Value),
		validation.MaxLength("notes", req.Notes, 2000),
	)
}

// Create registers a new COD order: it scores the order, persists it, and
// auto-initiates an SMS verification when the risk level demands one.
// A failed verification dispatch does not fail the creation; the returned
// InitiateResult is nil in that case and in the no-verification case.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, *verification.InitiateResult, error) {
	if errs := validateCreate(req); len(errs) > 0 {
		return nil, nil, errs
	}

	// Reject duplicates before paying for a risk evaluation.
	if _, err := s.store.GetByOrderID(ctx, req.OrderID); err == nil {
		return nil, nil, ErrDuplicateOrder
	} else if !errors.Is(err, ErrOrderNotFound) {
		return nil, nil, fmt.Errorf("duplicate check: %w", err)
	}

	assessment := s.engine.Evaluate(ctx, &fraud.OrderProfile{
		OrderID:    req.OrderID,
		Name:       req.CustomerName,
		Phone:      req.Phone,
		Email:      req.Email,
		Address:    req.Address,
		City:       req.City,
		PostalCode: req.PostalCode,
		Value:      req.Value,
		Currency:   req.Currency,
	})

	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	now := time.Now().UTC()
	order := &Order{
		ID:                   idgen.WithPrefix("cod_"),
		OrderID:              req.OrderID,
		CustomerName:         req.CustomerName,
		Phone:                req.Phone,
		Email:                req.Email,
		Address:              req.Address,
		City:                 req.City,
		PostalCode:           req.PostalCode,
		Value:                req.Value,
		Currency:             currency,
		RiskScore:            assessment.Score,
		RiskLevel:            assessment.Level,
		RiskFactors:          assessment.Factors,
		VerificationRequired: assessment.VerificationRequired,
		VerificationStatus:   VerificationPending,
		Status:               StatusPending,
		Notes:                req.Notes,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.store.Create(ctx, order); err != nil {
		return nil, nil, err
	}

	metrics.OrdersScoredTotal.WithLabelValues(string(order.RiskLevel)).Inc()
	logging.L(ctx).Info("order created",
		"order_id", order.OrderID,
		"risk_score", order.RiskScore,
		"risk_level", order.RiskLevel,
		"verification_required", order.VerificationRequired,
	)

	if !order.VerificationRequired {
		return order, nil, nil
	}

	metrics.OrdersFlaggedTotal.Inc()
	if s.events != nil {
		s.events.OrderFlagged(orderEvent(order, ""))
	}

	res, err := s.verifier.Initiate(ctx, order.OrderID, order.Phone, verification.MethodSMS)
	if err != nil {
		// Best-effort: the order stands, the merchant retries over another channel.
		logging.L(ctx).Warn("auto verification dispatch failed",
			"order_id", order.OrderID,
			"error", err,
		)
		return order, nil, nil
	}
	return order, res, nil
}

// Get returns one order by its business key.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.store.GetByOrderID(ctx, orderID)
}

// List returns orders matching the filter, riskiest first.
func (s *Service) List(ctx context.Context, f Filter) ([]*Order, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 200 {
		f.Limit = 200
	}
	return s.store.List(ctx, f)
}

// UpdateStatus moves an order to a new fulfillment status.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status Status) (*Order, error) {
	order, err := s.store.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	order.Status = status
	order.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// ReportFraud confirms fraud on an order: the order is cancelled, the fraud
// marker is stamped into its notes, and every future order from the same
// phone number inherits the repeat-fraud risk factor.
func (s *Service) ReportFraud(ctx context.Context, req FraudReportRequest) (*Order, error) {
	order, err := s.store.GetByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order.FraudReported = true
	order.Status = StatusCancelled

	annotation := FraudMarker
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		annotation += ": " + reason
	}
	if order.Notes != "" {
		order.Notes += "\n"
	}
	order.Notes += annotation
	order.UpdatedAt = now

	if err := s.store.Update(ctx, order); err != nil {
		return nil, err
	}

	// An open challenge on a confirmed-fraud order is pointless.
	if err := s.verifier.Cancel(ctx, order.OrderID); err != nil {
		logging.L(ctx).Warn("cancel challenge after fraud report", "order_id", order.OrderID, "error", err)
	}

	metrics.FraudReportsTotal.Inc()
	logging.L(ctx).Info("fraud reported", "order_id", order.OrderID, "phone", order.Phone)
	return order, nil
}

// StartVerification initiates (or re-initiates) verification over a method.
// An empty method defaults to sms. A successful phone_call scheduling
// confirms the order on the spot.
func (s *Service) StartVerification(ctx context.Context, orderID, method string) (*verification.InitiateResult, error) {
	m := verification.MethodSMS
	if method != "" {
		parsed, err := verification.ParseMethod(method)
		if err != nil {
			return nil, err
		}
		m = parsed
	}

	order, err := s.store.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// Verified is terminal: a fresh challenge could fail and regress it.
	if order.VerificationStatus == VerificationVerified {
		return nil, ErrAlreadyVerified
	}

	res, err := s.verifier.Initiate(ctx, order.OrderID, order.Phone, m)
	if err != nil {
		return nil, err
	}
	if res.Verified {
		if err := s.completeVerification(ctx, order); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// SubmitCode checks a verification code and settles the order accordingly:
// a match confirms the order; an exhausted or expired challenge marks the
// verification failed. The verification error is returned unchanged so the
// handler can map it precisely.
func (s *Service) SubmitCode(ctx context.Context, orderID, code string) (*Order, error) {
	order, err := s.store.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	submitErr := s.verifier.SubmitCode(ctx, orderID, code)

	var mismatch *verification.CodeMismatchError
	switch {
	case submitErr == nil:
		if err := s.completeVerification(ctx, order); err != nil {
			return nil, err
		}
		return order, nil

	case errors.As(submitErr, &mismatch):
		order.VerificationAttempts = verification.MaxAttempts - mismatch.Remaining
		order.UpdatedAt = time.Now().UTC()
		if err := s.store.Update(ctx, order); err != nil {
			return nil, err
		}
		return order, submitErr

	case errors.Is(submitErr, verification.ErrAttemptsExceeded),
		errors.Is(submitErr, verification.ErrExpired):
		order.VerificationStatus = VerificationFailed
		if errors.Is(submitErr, verification.ErrAttemptsExceeded) {
			order.VerificationAttempts = verification.MaxAttempts
		}
		order.UpdatedAt = time.Now().UTC()
		if err := s.store.Update(ctx, order); err != nil {
			return nil, err
		}
		if s.events != nil {
			s.events.VerificationFailed(orderEvent(order, submitErr.Error()))
		}
		return order, submitErr

	default:
		return order, submitErr
	}
}

// VerificationState reports where an order stands: a verified or failed
// order answers from its own record, otherwise the live challenge decides.
func (s *Service) VerificationState(ctx context.Context, orderID string) (*VerificationReport, error) {
	order, err := s.store.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		OrderID:  order.OrderID,
		Required: order.VerificationRequired,
		Status:   order.VerificationStatus,
	}
	if order.VerificationStatus == VerificationVerified {
		report.State = "verified"
		report.VerifiedAt = order.VerifiedAt
		return report, nil
	}
	if order.VerificationStatus == VerificationFailed {
		report.State = "failed"
		return report, nil
	}

	status, err := s.verifier.Status(ctx, orderID)
	if err != nil {
		return nil, err
	}
	report.State = string(status.State)
	report.Challenge = status
	return report, nil
}

// CancelVerification drops any active challenge for the order. Idempotent.
func (s *Service) CancelVerification(ctx context.Context, orderID string) error {
	if _, err := s.store.GetByOrderID(ctx, orderID); err != nil {
		return err
	}
	return s.verifier.Cancel(ctx, orderID)
}

// VerificationReport merges the order record with the live challenge state.
type VerificationReport struct {
	OrderID    string               `json:"orderId"`
	Required   bool                 `json:"required"`
	State      string               `json:"state"`
	Status     VerificationStatus   `json:"status"`
	VerifiedAt *time.Time           `json:"verifiedAt,omitempty"`
	Challenge  *verification.Status `json:"challenge,omitempty"`
}

func (s *Service) completeVerification(ctx context.Context, order *Order) error {
	now := time.Now().UTC()
	order.VerificationStatus = VerificationVerified
	order.VerifiedAt = &now
	if order.Status == StatusPending {
		order.Status = StatusConfirmed
	}
	order.UpdatedAt = now

	if err := s.store.Update(ctx, order); err != nil {
		return fmt.Errorf("record verification: %w", err)
	}

	if s.events != nil {
		s.events.OrderVerified(orderEvent(order, ""))
	}
	logging.L(ctx).Info("order verification completed", "order_id", order.OrderID)
	return nil
}

func orderEvent(o *Order, reason string) realtime.OrderEvent {
	return realtime.OrderEvent{
		OrderID:   o.OrderID,
		City:      o.City,
		Value:     o.Value,
		RiskScore: o.RiskScore,
		RiskLevel: string(o.RiskLevel),
		Reason:    reason,
	}
}
