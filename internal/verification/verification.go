// Package verification implements the out-of-band order confirmation
// workflow for risky COD orders.
//
// A challenge is a short-lived secret bound to one order. At most one
// challenge is active per order: re-initiating supersedes the previous one
// and its code stops working immediately. Challenges expire lazily (checked
// on read) and are discarded after three wrong code submissions.
package verification

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoChallenge      = errors.New("no active verification challenge")
	ErrExpired          = errors.New("verification challenge expired")
	ErrAttemptsExceeded = errors.New("verification attempts exceeded")
	ErrDispatchFailed   = errors.New("verification dispatch failed")
	ErrInvalidMethod    = errors.New("invalid verification method")
)

// MaxAttempts is the number of code submissions allowed per challenge.
const MaxAttempts = 3

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

// Method is the delivery channel of a verification challenge.
type Method string

const (
	MethodSMS      Method = "sms"
	MethodWhatsApp Method = "whatsapp"
	MethodCall     Method = "phone_call"
)

// ParseMethod converts an untrusted string into a Method.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodSMS, MethodWhatsApp, MethodCall:
		return Method(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMethod, s)
}

// Expiry returns how long a challenge on this method stays valid.
func (m Method) Expiry() time.Duration {
	switch m {
	case MethodWhatsApp:
		return 20 * time.Minute
	case MethodCall:
		return 30 * time.Minute
	default:
		return 15 * time.Minute
	}
}

// Fallback returns the channel to suggest when dispatch on this method fails.
func (m Method) Fallback() Method {
	switch m {
	case MethodSMS:
		return MethodCall
	default:
		return MethodSMS
	}
}

// Challenge is one active verification secret for an order.
type Challenge struct {
	OrderID   string    `json:"orderId"`
	Phone     string    `json:"phone"`
	Code      string    `json:"-"`
	Method    Method    `json:"method"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ExpiredAt reports whether the challenge is past its deadline at t.
func (c *Challenge) ExpiredAt(t time.Time) bool {
	return t.After(c.ExpiresAt)
}

// ChallengeStore persists verification challenges, keyed by order ID.
// Put replaces any existing challenge for the same order.
type ChallengeStore interface {
	Put(ctx context.Context, ch *Challenge) error
	Get(ctx context.Context, orderID string) (*Challenge, error)
	Update(ctx context.Context, ch *Challenge) error
	Delete(ctx context.Context, orderID string) error
}

// Sender delivers a verification message over a channel.
type Sender interface {
	Send(ctx context.Context, channel, recipient, subject, body string) (bool, error)
}

// CallScheduler queues an outbound confirmation call.
type CallScheduler interface {
	ScheduleCall(ctx context.Context, phone string) (bool, error)
}

// Clock abstracts wall-clock time for deterministic expiry tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// DispatchError reports that a challenge could not be delivered.
// Suggested names the channel the customer should try instead.
type DispatchError struct {
	Method    Method
	Suggested Method
	Err       error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch via %s failed: %v (try %s)", e.Method, e.Err, e.Suggested)
	}
	return fmt.Sprintf("dispatch via %s failed (try %s)", e.Method, e.Suggested)
}

// Is lets errors.Is(err, ErrDispatchFailed) match.
func (e *DispatchError) Is(target error) bool { return target == ErrDispatchFailed }

// Unwrap returns the underlying transport error, if any.
func (e *DispatchError) Unwrap() error { return e.Err }

// CodeMismatchError reports a wrong code with attempts still remaining.
type CodeMismatchError struct {
	Remaining int
}

func (e *CodeMismatchError) Error() string {
	return fmt.Sprintf("incorrect verification code, %d attempts remaining", e.Remaining)
}

// State is the observable lifecycle position of an order's verification.
type State string

const (
	StateNotInitiated State = "not_initiated"
	StatePending      State = "pending"
	StateExpired      State = "expired"
)

// Status is a point-in-time report on an order's active challenge.
type Status struct {
	State             State     `json:"state"`
	Method            Method    `json:"method,omitempty"`
	Attempts          int       `json:"attempts,omitempty"`
	AttemptsRemaining int       `json:"attemptsRemaining,omitempty"`
	MinutesRemaining  int       `json:"minutesRemaining,omitempty"`
	ExpiresAt         time.Time `json:"expiresAt,omitzero"`
}

// InitiateResult is the outcome of starting a verification.
type InitiateResult struct {
	Method    Method    `json:"method"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
	// Verified is true only for phone_call, where successful scheduling
	// confirms the order directly and no code is issued.
	Verified bool `json:"verified"`
}
