package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*EnrollmentStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run error: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewEnrollmentStore(client, "ace"), mr
}

func newAttempt(ttl time.Duration) *EnrollmentAttempt {
	now := time.Now()
	return &EnrollmentAttempt{
		State:             EnrollmentStateMethodSelection,
		Method:            1,
		AttemptsRemaining: 5,
		StartedAt:         now.Unix(),
		ExpiresAt:         now.Add(ttl).Unix(),
	}
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	attempt := newAttempt(10 * time.Minute)
	attempt.Secret = []byte("pending-secret-bytes")

	if err := store.Create(ctx, "0", "acct-1", attempt, 10*time.Minute); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	got, err := store.Get(ctx, "0", "acct-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.State != EnrollmentStateMethodSelection || got.AttemptsRemaining != 5 {
		t.Fatalf("unexpected record: %+v", got)
	}
	if string(got.Secret) != "pending-secret-bytes" {
		t.Fatalf("secret not preserved: %q", got.Secret)
	}
}

func TestCreateSecondAttemptRejected(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "0", "acct-1", newAttempt(10*time.Minute), 10*time.Minute); err != nil {
		t.Fatalf("first Create error: %v", err)
	}

	err := store.Create(ctx, "0", "acct-1", newAttempt(10*time.Minute), 10*time.Minute)
	if !errors.Is(err, ErrEnrollmentExists) {
		t.Fatalf("expected ErrEnrollmentExists, got %v", err)
	}
}

func TestGetMissingAttempt(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "0", "nobody")
	if !errors.Is(err, ErrEnrollmentNotFound) {
		t.Fatalf("expected ErrEnrollmentNotFound, got %v", err)
	}
}

func TestExpiredAttemptIsReaped(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	attempt := newAttempt(10 * time.Minute)
	attempt.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	if err := store.Create(ctx, "0", "acct-1", attempt, 10*time.Minute); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := store.Get(ctx, "0", "acct-1"); !errors.Is(err, ErrEnrollmentExpired) {
		t.Fatalf("expected ErrEnrollmentExpired, got %v", err)
	}

	// the reap deletes the key, so the next read is a plain miss
	if _, err := store.Get(ctx, "0", "acct-1"); !errors.Is(err, ErrEnrollmentNotFound) {
		t.Fatalf("expected ErrEnrollmentNotFound after reap, got %v", err)
	}
}

func TestTransitionAdvancesState(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "0", "acct-1", newAttempt(10*time.Minute), 10*time.Minute); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	updated, err := store.Transition(ctx, "0", "acct-1", func(a *EnrollmentAttempt) error {
		a.State = EnrollmentStateSecretIssued
		a.Secret = []byte("issued")
		return nil
	})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if updated.State != EnrollmentStateSecretIssued {
		t.Fatalf("state not advanced: %+v", updated)
	}

	got, err := store.Get(ctx, "0", "acct-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.State != EnrollmentStateSecretIssued || string(got.Secret) != "issued" {
		t.Fatalf("transition not persisted: %+v", got)
	}
}

func TestTransitionMutateErrorLeavesRecord(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "0", "acct-1", newAttempt(10*time.Minute), 10*time.Minute); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	wantErr := errors.New("wrong state")
	if _, err := store.Transition(ctx, "0", "acct-1", func(a *EnrollmentAttempt) error {
		return wantErr
	}); !errors.Is(err, wantErr) {
		t.Fatalf("expected mutate error, got %v", err)
	}

	got, err := store.Get(ctx, "0", "acct-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.State != EnrollmentStateMethodSelection {
		t.Fatalf("record mutated despite error: %+v", got)
	}
}

func TestRecordFailureCountsDown(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "0", "acct-1", newAttempt(10*time.Minute), 10*time.Minute); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	for want := 4; want >= 1; want-- {
		remaining, cancelled, err := store.RecordFailure(ctx, "0", "acct-1")
		if err != nil {
			t.Fatalf("RecordFailure error: %v", err)
		}
		if cancelled {
			t.Fatalf("cancelled early at remaining=%d", remaining)
		}
		if remaining != want {
			t.Fatalf("expected remaining %d, got %d", want, remaining)
		}
	}

	remaining, cancelled, err := store.RecordFailure(ctx, "0", "acct-1")
	if err != nil {
		t.Fatalf("final RecordFailure error: %v", err)
	}
	if !cancelled || remaining != 0 {
		t.Fatalf("expected cancellation at zero, got remaining=%d cancelled=%v", remaining, cancelled)
	}

	if _, err := store.Get(ctx, "0", "acct-1"); !errors.Is(err, ErrEnrollmentNotFound) {
		t.Fatalf("expected attempt to be discarded, got %v", err)
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "0", "acct-1", newAttempt(10*time.Minute), 10*time.Minute); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	existed, err := store.Delete(ctx, "0", "acct-1")
	if err != nil || !existed {
		t.Fatalf("first Delete: existed=%v err=%v", existed, err)
	}

	existed, err = store.Delete(ctx, "0", "acct-1")
	if err != nil || existed {
		t.Fatalf("second Delete: existed=%v err=%v", existed, err)
	}
}

func TestTenantsAreIsolated(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "t1", "acct-1", newAttempt(10*time.Minute), 10*time.Minute); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := store.Get(ctx, "t2", "acct-1"); !errors.Is(err, ErrEnrollmentNotFound) {
		t.Fatalf("expected tenant isolation, got %v", err)
	}
}

func TestBackendFailureWrapped(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	err := store.Create(context.Background(), "0", "acct-1", newAttempt(time.Minute), time.Minute)
	if !errors.Is(err, ErrEnrollmentBackend) {
		t.Fatalf("expected ErrEnrollmentBackend, got %v", err)
	}
}
