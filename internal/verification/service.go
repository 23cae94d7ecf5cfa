package verification

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Yacineooak/ReatilBot-Factory/internal/idgen"
	"github.com/Yacineooak/ReatilBot-Factory/internal/logging"
	"github.com/Yacineooak/ReatilBot-Factory/internal/metrics"
	"github.com/Yacineooak/ReatilBot-Factory/internal/syncutil"
	"github.com/Yacineooak/ReatilBot-Factory/internal/traces"
)

// Service runs the verification workflow. All submissions for the same
// order are serialized through a per-key lock so concurrent wrong guesses
// cannot slip past the attempt cap.
type Service struct {
	store    ChallengeStore
	sender   Sender
	calls    CallScheduler
	clock    Clock
	newCode  func() string
	renderer MessageRenderer
	locks    *syncutil.ContextShardedMutex
}

// NewService creates a verification service.
func NewService(store ChallengeStore, sender Sender, calls CallScheduler) *Service {
	return &Service{
		store:    store,
		sender:   sender,
		calls:    calls,
		clock:    ClockFunc(time.Now),
		newCode:  func() string { return idgen.NumericCode(CodeLength) },
		renderer: defaultRenderer,
		locks:    syncutil.NewContextShardedMutex(),
	}
}

// WithClock overrides the clock. For tests.
func (s *Service) WithClock(clock Clock) *Service {
	s.clock = clock
	return s
}

// WithCodeGenerator overrides code generation. For tests.
func (s *Service) WithCodeGenerator(gen func() string) *Service {
	s.newCode = gen
	return s
}

// MessageRenderer builds the outbound message for a code challenge.
// Overridable so callers can localize; the default is set by the server.
type MessageRenderer func(orderID, code string, expiry time.Duration) (subject, body string)

var defaultRenderer MessageRenderer = func(orderID, code string, expiry time.Duration) (string, string) {
	return fmt.Sprintf("Verification for order %s", orderID),
		fmt.Sprintf("Your verification code for order %s is %s. It expires in %d minutes.",
			orderID, code, int(expiry.Minutes()))
}

// WithMessageRenderer overrides the outbound message template.
func (s *Service) WithMessageRenderer(r MessageRenderer) *Service {
	if r != nil {
		s.renderer = r
	}
	return s
}

// Initiate starts (or restarts) verification for an order. Any previous
// challenge is superseded: its code stops working the moment the new one is
// stored. For phone_call no code is issued; a successfully scheduled call
// confirms the order and Verified is set on the result.
func (s *Service) Initiate(ctx context.Context, orderID, phone string, method Method) (*InitiateResult, error) {
	ctx, span := traces.StartSpan(ctx, "verification.initiate",
		traces.OrderID(orderID),
		traces.Channel(string(method)),
	)
	defer span.End()

	unlock, err := s.locks.LockContext(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if method == MethodCall {
		ok, err := s.calls.ScheduleCall(ctx, phone)
		if err != nil || !ok {
			metrics.VerificationOutcomesTotal.WithLabelValues("dispatch_failed").Inc()
			return nil, &DispatchError{Method: method, Suggested: method.Fallback(), Err: err}
		}
		// A scheduled call replaces any pending code challenge.
		if err := s.discard(ctx, orderID); err != nil {
			return nil, err
		}
		metrics.VerificationsInitiatedTotal.WithLabelValues(string(method)).Inc()
		metrics.VerificationOutcomesTotal.WithLabelValues("verified").Inc()
		return &InitiateResult{Method: method, Verified: true}, nil
	}

	now := s.clock.Now().UTC()
	ch := &Challenge{
		OrderID:   orderID,
		Phone:     phone,
		Code:      s.newCode(),
		Method:    method,
		CreatedAt: now,
		ExpiresAt: now.Add(method.Expiry()),
	}
	if err := s.store.Put(ctx, ch); err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}
	metrics.ActiveChallenges.Inc()

	subject, body := s.renderer(orderID, ch.Code, method.Expiry())
	ok, err := s.sender.Send(ctx, string(method), phone, subject, body)
	if err != nil || !ok {
		// Undeliverable code must not stay submittable.
		if derr := s.discard(ctx, orderID); derr != nil {
			logging.L(ctx).Error("failed to discard undelivered challenge",
				"order_id", orderID,
				"error", derr,
			)
		}
		metrics.VerificationOutcomesTotal.WithLabelValues("dispatch_failed").Inc()
		return nil, &DispatchError{Method: method, Suggested: method.Fallback(), Err: err}
	}

	metrics.VerificationsInitiatedTotal.WithLabelValues(string(method)).Inc()
	logging.L(ctx).Info("verification initiated",
		"order_id", orderID,
		"method", method,
		"expires_at", ch.ExpiresAt,
	)
	return &InitiateResult{Method: method, ExpiresAt: ch.ExpiresAt}, nil
}

// SubmitCode checks a code against the order's active challenge.
// nil means verified; the challenge is consumed. Wrong codes return
// *CodeMismatchError until the attempt cap discards the challenge.
func (s *Service) SubmitCode(ctx context.Context, orderID, code string) error {
	ctx, span := traces.StartSpan(ctx, "verification.submit_code",
		traces.OrderID(orderID),
	)
	defer span.End()

	unlock, err := s.locks.LockContext(ctx, orderID)
	if err != nil {
		return err
	}
	defer unlock()

	ch, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}

	now := s.clock.Now().UTC()
	if ch.ExpiredAt(now) {
		if err := s.discard(ctx, orderID); err != nil {
			return err
		}
		metrics.VerificationOutcomesTotal.WithLabelValues("expired").Inc()
		return ErrExpired
	}

	// Guard against stale rows that already hit the cap.
	if ch.Attempts+1 > MaxAttempts {
		if err := s.discard(ctx, orderID); err != nil {
			return err
		}
		metrics.VerificationOutcomesTotal.WithLabelValues("attempts_exceeded").Inc()
		return ErrAttemptsExceeded
	}

	ch.Attempts++

	if subtle.ConstantTimeCompare([]byte(ch.Code), []byte(code)) == 1 {
		if err := s.discard(ctx, orderID); err != nil {
			return err
		}
		metrics.VerificationOutcomesTotal.WithLabelValues("verified").Inc()
		logging.L(ctx).Info("order verified", "order_id", orderID, "attempts", ch.Attempts)
		return nil
	}

	if ch.Attempts >= MaxAttempts {
		if err := s.discard(ctx, orderID); err != nil {
			return err
		}
		metrics.VerificationOutcomesTotal.WithLabelValues("attempts_exceeded").Inc()
		return ErrAttemptsExceeded
	}

	if err := s.store.Update(ctx, ch); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	metrics.VerificationOutcomesTotal.WithLabelValues("mismatch").Inc()
	return &CodeMismatchError{Remaining: MaxAttempts - ch.Attempts}
}

// Status reports the current challenge state without consuming attempts.
// An expired challenge is discarded on read.
func (s *Service) Status(ctx context.Context, orderID string) (*Status, error) {
	ch, err := s.store.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrNoChallenge) {
			return &Status{State: StateNotInitiated}, nil
		}
		return nil, err
	}

	now := s.clock.Now().UTC()
	if ch.ExpiredAt(now) {
		if err := s.discard(ctx, orderID); err != nil {
			return nil, err
		}
		metrics.VerificationOutcomesTotal.WithLabelValues("expired").Inc()
		return &Status{State: StateExpired, Method: ch.Method}, nil
	}

	minutes := int(math.Ceil(ch.ExpiresAt.Sub(now).Minutes()))
	return &Status{
		State:             StatePending,
		Method:            ch.Method,
		Attempts:          ch.Attempts,
		AttemptsRemaining: MaxAttempts - ch.Attempts,
		MinutesRemaining:  minutes,
		ExpiresAt:         ch.ExpiresAt,
	}, nil
}

// Cancel removes any active challenge for the order. Idempotent.
func (s *Service) Cancel(ctx context.Context, orderID string) error {
	unlock, err := s.locks.LockContext(ctx, orderID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.discard(ctx, orderID); err != nil {
		return err
	}
	metrics.VerificationOutcomesTotal.WithLabelValues("cancelled").Inc()
	return nil
}

// discard removes the order's challenge, tolerating absence.
func (s *Service) discard(ctx context.Context, orderID string) error {
	err := s.store.Delete(ctx, orderID)
	if err == nil {
		metrics.ActiveChallenges.Dec()
		return nil
	}
	if errors.Is(err, ErrNoChallenge) {
		return nil
	}
	return err
}
