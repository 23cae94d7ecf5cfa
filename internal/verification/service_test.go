package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var testStart = time.Date(2025, time.June, 10, 10, 0, 0, 0, time.UTC)

// testClock is a settable clock shared by service and test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: testStart} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubSender accepts or declines sends and records the last body.
type stubSender struct {
	mu       sync.Mutex
	decline  bool
	failCall bool
	lastBody string
	channels []string
}

func (s *stubSender) Send(ctx context.Context, channel, recipient, subject, body string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = append(s.channels, channel)
	if s.decline {
		return false, nil
	}
	s.lastBody = body
	return true, nil
}

func (s *stubSender) ScheduleCall(ctx context.Context, phone string) (bool, error) {
	if s.failCall {
		return false, errors.New("call gateway down")
	}
	return true, nil
}

func newTestService(sender *stubSender, clock Clock) *Service {
	codes := []string{"111111", "222222", "333333"}
	i := 0
	return NewService(NewMemoryStore(), sender, sender).
		WithClock(clock).
		WithCodeGenerator(func() string {
			code := codes[i%len(codes)]
			i++
			return code
		})
}

func TestInitiateStoresAndSends(t *testing.T) {
	sender := &stubSender{}
	clock := newTestClock()
	svc := newTestService(sender, clock)

	res, err := svc.Initiate(context.Background(), "ord-1", "0555123456", MethodSMS)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	want := testStart.Add(15 * time.Minute)
	if !res.ExpiresAt.Equal(want) {
		t.Errorf("sms expiry = %v, want %v", res.ExpiresAt, want)
	}
	if res.Verified {
		t.Error("sms initiate must not report verified")
	}

	status, err := svc.Status(context.Background(), "ord-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != StatePending {
		t.Errorf("state = %s, want pending", status.State)
	}
	if status.AttemptsRemaining != 3 {
		t.Errorf("attempts remaining = %d, want 3", status.AttemptsRemaining)
	}
	if status.MinutesRemaining != 15 {
		t.Errorf("minutes remaining = %d, want 15", status.MinutesRemaining)
	}
}

func TestWhatsAppExpiry(t *testing.T) {
	svc := newTestService(&stubSender{}, newTestClock())

	res, err := svc.Initiate(context.Background(), "ord-1", "0555123456", MethodWhatsApp)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	want := testStart.Add(20 * time.Minute)
	if !res.ExpiresAt.Equal(want) {
		t.Errorf("whatsapp expiry = %v, want %v", res.ExpiresAt, want)
	}
}

func TestDispatchFailureDiscardsChallenge(t *testing.T) {
	sender := &stubSender{decline: true}
	svc := newTestService(sender, newTestClock())

	_, err := svc.Initiate(context.Background(), "ord-1", "0555123456", MethodSMS)
	if !errors.Is(err, ErrDispatchFailed) {
		t.Fatalf("err = %v, want dispatch failure", err)
	}
	var derr *DispatchError
	if !errors.As(err, &derr) {
		t.Fatalf("err type = %T", err)
	}
	if derr.Suggested != MethodCall {
		t.Errorf("sms fallback = %s, want phone_call", derr.Suggested)
	}

	// The undelivered code must not be submittable.
	if err := svc.SubmitCode(context.Background(), "ord-1", "111111"); !errors.Is(err, ErrNoChallenge) {
		t.Errorf("SubmitCode after failed dispatch = %v, want ErrNoChallenge", err)
	}
	status, _ := svc.Status(context.Background(), "ord-1")
	if status.State != StateNotInitiated {
		t.Errorf("state = %s, want not_initiated", status.State)
	}
}

func TestWhatsAppFallbackIsSMS(t *testing.T) {
	sender := &stubSender{decline: true}
	svc := newTestService(sender, newTestClock())

	_, err := svc.Initiate(context.Background(), "ord-1", "0555123456", MethodWhatsApp)
	var derr *DispatchError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v", err)
	}
	if derr.Suggested != MethodSMS {
		t.Errorf("whatsapp fallback = %s, want sms", derr.Suggested)
	}
}

func TestPhoneCallVerifiesImmediately(t *testing.T) {
	sender := &stubSender{}
	svc := newTestService(sender, newTestClock())

	res, err := svc.Initiate(context.Background(), "ord-1", "0555123456", MethodCall)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if !res.Verified {
		t.Error("scheduled call should confirm the order")
	}

	// No code challenge left behind.
	status, _ := svc.Status(context.Background(), "ord-1")
	if status.State != StateNotInitiated {
		t.Errorf("state = %s, want not_initiated", status.State)
	}
}

func TestPhoneCallSchedulingFailure(t *testing.T) {
	sender := &stubSender{failCall: true}
	svc := newTestService(sender, newTestClock())

	_, err := svc.Initiate(context.Background(), "ord-1", "0555123456", MethodCall)
	var derr *DispatchError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want DispatchError", err)
	}
	if derr.Suggested != MethodSMS {
		t.Errorf("phone_call fallback = %s, want sms", derr.Suggested)
	}
}

func TestSubmitCorrectCode(t *testing.T) {
	svc := newTestService(&stubSender{}, newTestClock())
	ctx := context.Background()

	if _, err := svc.Initiate(ctx, "ord-1", "0555123456", MethodSMS); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if err := svc.SubmitCode(ctx, "ord-1", "111111"); err != nil {
		t.Fatalf("correct code rejected: %v", err)
	}
	// Challenge is consumed.
	if err := svc.SubmitCode(ctx, "ord-1", "111111"); !errors.Is(err, ErrNoChallenge) {
		t.Errorf("second submit = %v, want ErrNoChallenge", err)
	}
}

func TestAttemptCap(t *testing.T) {
	svc := newTestService(&stubSender{}, newTestClock())
	ctx := context.Background()

	if _, err := svc.Initiate(ctx, "ord-1", "0555123456", MethodSMS); err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	var mismatch *CodeMismatchError
	err := svc.SubmitCode(ctx, "ord-1", "000000")
	if !errors.As(err, &mismatch) || mismatch.Remaining != 2 {
		t.Fatalf("first wrong code: %v", err)
	}
	err = svc.SubmitCode(ctx, "ord-1", "000000")
	if !errors.As(err, &mismatch) || mismatch.Remaining != 1 {
		t.Fatalf("second wrong code: %v", err)
	}
	if err := svc.SubmitCode(ctx, "ord-1", "000000"); !errors.Is(err, ErrAttemptsExceeded) {
		t.Fatalf("third wrong code = %v, want ErrAttemptsExceeded", err)
	}
	// Challenge discarded: even the right code is dead now.
	if err := svc.SubmitCode(ctx, "ord-1", "111111"); !errors.Is(err, ErrNoChallenge) {
		t.Errorf("fourth submit = %v, want ErrNoChallenge", err)
	}
}

func TestCorrectCodeOnLastAttempt(t *testing.T) {
	svc := newTestService(&stubSender{}, newTestClock())
	ctx := context.Background()

	if _, err := svc.Initiate(ctx, "ord-1", "0555123456", MethodSMS); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	_ = svc.SubmitCode(ctx, "ord-1", "000000")
	_ = svc.SubmitCode(ctx, "ord-1", "000000")
	if err := svc.SubmitCode(ctx, "ord-1", "111111"); err != nil {
		t.Errorf("correct code on final attempt = %v, want success", err)
	}
}

func TestExpiredChallenge(t *testing.T) {
	clock := newTestClock()
	svc := newTestService(&stubSender{}, clock)
	ctx := context.Background()

	if _, err := svc.Initiate(ctx, "ord-1", "0555123456", MethodSMS); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	clock.Advance(15*time.Minute + time.Second)

	if err := svc.SubmitCode(ctx, "ord-1", "111111"); !errors.Is(err, ErrExpired) {
		t.Fatalf("submit after expiry = %v, want ErrExpired", err)
	}
	// Expired challenge is discarded, not retried.
	if err := svc.SubmitCode(ctx, "ord-1", "111111"); !errors.Is(err, ErrNoChallenge) {
		t.Errorf("second submit = %v, want ErrNoChallenge", err)
	}
}

func TestStatusExpiresLazily(t *testing.T) {
	clock := newTestClock()
	svc := newTestService(&stubSender{}, clock)
	ctx := context.Background()

	if _, err := svc.Initiate(ctx, "ord-1", "0555123456", MethodSMS); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	clock.Advance(16 * time.Minute)

	status, err := svc.Status(ctx, "ord-1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.State != StateExpired {
		t.Errorf("state = %s, want expired", status.State)
	}
	// The read consumed the challenge.
	status, _ = svc.Status(ctx, "ord-1")
	if status.State != StateNotInitiated {
		t.Errorf("state after expiry read = %s, want not_initiated", status.State)
	}
}

func TestReinitiateSupersedes(t *testing.T) {
	svc := newTestService(&stubSender{}, newTestClock())
	ctx := context.Background()

	if _, err := svc.Initiate(ctx, "ord-1", "0555123456", MethodSMS); err != nil {
		t.Fatalf("first Initiate: %v", err)
	}
	if _, err := svc.Initiate(ctx, "ord-1", "0555123456", MethodWhatsApp); err != nil {
		t.Fatalf("second Initiate: %v", err)
	}

	// Old code dead, new code live.
	var mismatch *CodeMismatchError
	if err := svc.SubmitCode(ctx, "ord-1", "111111"); !errors.As(err, &mismatch) {
		t.Errorf("old code = %v, want mismatch", err)
	}
	if err := svc.SubmitCode(ctx, "ord-1", "222222"); err != nil {
		t.Errorf("new code = %v, want success", err)
	}
}

func TestCancelIdempotent(t *testing.T) {
	svc := newTestService(&stubSender{}, newTestClock())
	ctx := context.Background()

	if _, err := svc.Initiate(ctx, "ord-1", "0555123456", MethodSMS); err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if err := svc.Cancel(ctx, "ord-1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := svc.Cancel(ctx, "ord-1"); err != nil {
		t.Errorf("repeat Cancel = %v, want nil", err)
	}
	if err := svc.SubmitCode(ctx, "ord-1", "111111"); !errors.Is(err, ErrNoChallenge) {
		t.Errorf("submit after cancel = %v, want ErrNoChallenge", err)
	}
}

func TestConcurrentWrongGuessesRespectCap(t *testing.T) {
	svc := newTestService(&stubSender{}, newTestClock())
	ctx := context.Background()

	if _, err := svc.Initiate(ctx, "ord-1", "0555123456", MethodSMS); err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	const guesses = 10
	results := make(chan error, guesses)
	var wg sync.WaitGroup
	wg.Add(guesses)
	for i := 0; i < guesses; i++ {
		go func() {
			defer wg.Done()
			results <- svc.SubmitCode(ctx, "ord-1", "999999")
		}()
	}
	wg.Wait()
	close(results)

	var mismatches, exceeded, gone int
	for err := range results {
		var mismatch *CodeMismatchError
		switch {
		case errors.As(err, &mismatch):
			mismatches++
		case errors.Is(err, ErrAttemptsExceeded):
			exceeded++
		case errors.Is(err, ErrNoChallenge):
			gone++
		default:
			t.Errorf("unexpected result: %v", err)
		}
	}
	if mismatches != 2 {
		t.Errorf("mismatches = %d, want 2", mismatches)
	}
	if exceeded != 1 {
		t.Errorf("exceeded = %d, want 1", exceeded)
	}
	if gone != guesses-3 {
		t.Errorf("no-challenge results = %d, want %d", gone, guesses-3)
	}
}

func TestParseMethod(t *testing.T) {
	for _, valid := range []string{"sms", "whatsapp", "phone_call"} {
		if _, err := ParseMethod(valid); err != nil {
			t.Errorf("ParseMethod(%q) unexpected error: %v", valid, err)
		}
	}
	if _, err := ParseMethod("carrier_pigeon"); !errors.Is(err, ErrInvalidMethod) {
		t.Errorf("ParseMethod should reject unknown methods, got %v", err)
	}
}
