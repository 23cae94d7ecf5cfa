// Package orders manages cash-on-delivery orders: intake, risk scoring,
// verification orchestration, fraud reporting, and aggregate analytics.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Yacineooak/ReatilBot-Factory/internal/fraud"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrDuplicateOrder  = errors.New("order id already exists")
	ErrAlreadyVerified = errors.New("order is already verified")
)

// FraudMarker is stamped into an order's notes when fraud is confirmed.
// The risk engine treats any prior order carrying it as fraud history.
const FraudMarker = "FRAUDE CONFIRMÉE"

// Status represents the fulfillment state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
	StatusReturned  Status = "returned"
)

// ParseStatus converts an untrusted string into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusShipped,
		StatusDelivered, StatusCancelled, StatusReturned:
		return Status(s), nil
	}
	return "", fmt.Errorf("invalid order status %q", s)
}

// VerificationStatus tracks where an order stands in the verification flow.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

// Order is a cash-on-delivery order record.
type Order struct {
	ID                   string             `json:"id"`
	OrderID              string             `json:"orderId"`
	CustomerName         string             `json:"customerName"`
	Phone                string             `json:"phone"`
	Email                string             `json:"email,omitempty"`
	Address              string             `json:"address"`
	City                 string             `json:"city"`
	PostalCode           string             `json:"postalCode,omitempty"`
	Value                float64            `json:"value"`
	Currency             string             `json:"currency"`
	RiskScore            int                `json:"riskScore"`
	RiskLevel            fraud.RiskLevel    `json:"riskLevel"`
	RiskFactors          []string           `json:"riskFactors"`
	VerificationRequired bool               `json:"verificationRequired"`
	VerificationStatus   VerificationStatus `json:"verificationStatus"`
	VerificationAttempts int                `json:"verificationAttempts"`
	VerifiedAt           *time.Time         `json:"verifiedAt,omitempty"`
	FraudReported        bool               `json:"fraudReported"`
	Status               Status             `json:"status"`
	Notes                string             `json:"notes,omitempty"`
	CreatedAt            time.Time          `json:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt"`
}

// Filter narrows List results. Zero values mean "no filter".
type Filter struct {
	RiskLevel            fraud.RiskLevel
	Status               Status
	City                 string
	VerificationRequired *bool
	Limit                int
	Offset               int
}

// Store persists orders. Implementations order List results by risk score
// descending, then creation time descending.
type Store interface {
	Create(ctx context.Context, o *Order) error
	GetByOrderID(ctx context.Context, orderID string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	FindByPhone(ctx context.Context, phone string) ([]*Order, error)
	List(ctx context.Context, f Filter) ([]*Order, error)
	ListSince(ctx context.Context, since time.Time) ([]*Order, error)
}

// CreateRequest is the intake payload for a new COD order.
type CreateRequest struct {
	OrderID      string  `json:"orderId" binding:"required"`
	CustomerName string  `json:"customerName" binding:"required"`
	Phone        string  `json:"phone" binding:"required"`
	Email        string  `json:"email"`
	Address      string  `json:"address" binding:"required"`
	City         string  `json:"city" binding:"required"`
	PostalCode   string  `json:"postalCode"`
	Value        float64 `json:"value" binding:"required"`
	Currency     string  `json:"currency"`
	Notes        string  `json:"notes"`
}

// FraudReportRequest marks a delivered-to-be-fraud order.
type FraudReportRequest struct {
	OrderID string `json:"orderId" binding:"required"`
	Reason  string `json:"reason"`
}

// VerifyRequest starts a verification challenge.
type VerifyRequest struct {
	Method string `json:"method"`
}

// SubmitCodeRequest carries a customer's code submission.
type SubmitCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// UpdateStatusRequest changes an order's fulfillment status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}
