package verification_test

import (
	"context"
	"testing"
	"time"

	"github.com/Yacineooak/ReatilBot-Factory/internal/testutil"
	"github.com/Yacineooak/ReatilBot-Factory/internal/verification"
)

func seedChallenge(orderID string) *verification.Challenge {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &verification.Challenge{
		OrderID:   orderID,
		Phone:     "0555123456",
		Code:      "482913",
		Method:    verification.MethodSMS,
		CreatedAt: now,
		ExpiresAt: now.Add(15 * time.Minute),
	}
}

func TestPostgresStorePutAndGet(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := verification.NewPostgresStore(db)
	ctx := context.Background()

	ch := seedChallenge("ord-vpg-1")
	if err := store.Put(ctx, ch); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "ord-vpg-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Code != ch.Code || got.Method != verification.MethodSMS || got.Phone != ch.Phone {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.ExpiresAt.Equal(ch.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, ch.ExpiresAt)
	}
}

func TestPostgresStorePutReplacesChallenge(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := verification.NewPostgresStore(db)
	ctx := context.Background()

	first := seedChallenge("ord-vpg-replace")
	if err := store.Put(ctx, first); err != nil {
		t.Fatalf("Put: %v", err)
	}

	second := seedChallenge("ord-vpg-replace")
	second.Code = "117755"
	second.Method = verification.MethodWhatsApp
	second.ExpiresAt = second.CreatedAt.Add(20 * time.Minute)
	if err := store.Put(ctx, second); err != nil {
		t.Fatalf("Put replacement: %v", err)
	}

	got, err := store.Get(ctx, "ord-vpg-replace")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Code != "117755" || got.Method != verification.MethodWhatsApp {
		t.Errorf("replacement not applied: %+v", got)
	}
	if got.Attempts != 0 {
		t.Errorf("Attempts = %d, want reset to 0", got.Attempts)
	}
}

func TestPostgresStoreUpdateAttempts(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := verification.NewPostgresStore(db)
	ctx := context.Background()

	ch := seedChallenge("ord-vpg-att")
	if err := store.Put(ctx, ch); err != nil {
		t.Fatalf("Put: %v", err)
	}

	ch.Attempts = 2
	if err := store.Update(ctx, ch); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := store.Get(ctx, "ord-vpg-att")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", got.Attempts)
	}

	ghost := seedChallenge("ord-vpg-ghost")
	if err := store.Update(ctx, ghost); err != verification.ErrNoChallenge {
		t.Fatalf("Update unknown = %v, want ErrNoChallenge", err)
	}
}

func TestPostgresStoreDelete(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := verification.NewPostgresStore(db)
	ctx := context.Background()

	if err := store.Put(ctx, seedChallenge("ord-vpg-del")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Delete(ctx, "ord-vpg-del"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "ord-vpg-del"); err != verification.ErrNoChallenge {
		t.Fatalf("Get after delete = %v, want ErrNoChallenge", err)
	}
	if err := store.Delete(ctx, "ord-vpg-del"); err != verification.ErrNoChallenge {
		t.Fatalf("second Delete = %v, want ErrNoChallenge", err)
	}
}
