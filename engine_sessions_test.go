package goAccount

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newSessionTestEngine(t *testing.T) (*Engine, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	cs := &mockCredentialStore{
		accounts: map[string]Account{
			"acct-1": {AccountID: "acct-1", Identifier: "alice@example.com"},
		},
	}
	engine := newTestEngine(t, rdb, cs, newTestHasher(t))
	return engine, mr.Close
}

func TestRegisterSessionAndList(t *testing.T) {
	engine, closeFn := newSessionTestEngine(t)
	defer closeFn()

	ctx := WithClientIP(context.Background(), "203.0.113.7")

	sid, err := engine.RegisterSession(ctx, "acct-1", SessionMeta{
		DeviceLabel:  "laptop",
		BrowserLabel: "firefox",
	})
	if err != nil {
		t.Fatalf("RegisterSession failed: %v", err)
	}
	if sid == "" {
		t.Fatal("expected a session id")
	}

	infos, err := engine.ListSessions(ctx, "acct-1", sid)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 session, got %d", len(infos))
	}
	if infos[0].SessionID != sid || !infos[0].IsCurrent {
		t.Fatalf("expected the registered session marked current, got %+v", infos[0])
	}
	if infos[0].DeviceLabel != "laptop" || infos[0].BrowserLabel != "firefox" {
		t.Fatalf("metadata not preserved: %+v", infos[0])
	}
	if infos[0].SourceIP != "203.0.113.7" {
		t.Fatalf("expected context client IP, got %q", infos[0].SourceIP)
	}
}

func TestListSessionsOrdersByActivity(t *testing.T) {
	engine, closeFn := newSessionTestEngine(t)
	defer closeFn()

	ctx := context.Background()
	now := time.Now()

	saveTestSession(t, engine.sessionStore, "0", "acct-1", "sid-old", now.Add(-2*time.Hour))
	saveTestSession(t, engine.sessionStore, "0", "acct-1", "sid-new", now)
	saveTestSession(t, engine.sessionStore, "0", "acct-1", "sid-mid", now.Add(-time.Hour))

	infos, err := engine.ListSessions(ctx, "acct-1", "sid-mid")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(infos))
	}
	wantOrder := []string{"sid-new", "sid-mid", "sid-old"}
	for i, want := range wantOrder {
		if infos[i].SessionID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, infos[i].SessionID)
		}
	}
	for _, info := range infos {
		if info.IsCurrent != (info.SessionID == "sid-mid") {
			t.Fatalf("wrong IsCurrent for %s", info.SessionID)
		}
	}
}

func TestListSessionsWithoutRequesterMarksNothingCurrent(t *testing.T) {
	engine, closeFn := newSessionTestEngine(t)
	defer closeFn()

	ctx := context.Background()
	saveTestSession(t, engine.sessionStore, "0", "acct-1", "sid-1", time.Now())

	infos, err := engine.ListSessions(ctx, "acct-1", "")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(infos) != 1 || infos[0].IsCurrent {
		t.Fatal("expected no session marked current without a requesting session")
	}
}

func TestTouchSessionAdvancesOrdering(t *testing.T) {
	engine, closeFn := newSessionTestEngine(t)
	defer closeFn()

	ctx := context.Background()
	now := time.Now()
	saveTestSession(t, engine.sessionStore, "0", "acct-1", "sid-a", now.Add(-2*time.Hour))
	saveTestSession(t, engine.sessionStore, "0", "acct-1", "sid-b", now.Add(-time.Hour))

	if err := engine.TouchSession(ctx, "acct-1", "sid-a"); err != nil {
		t.Fatalf("TouchSession failed: %v", err)
	}

	infos, err := engine.ListSessions(ctx, "acct-1", "")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if infos[0].SessionID != "sid-a" {
		t.Fatalf("expected touched session first, got %s", infos[0].SessionID)
	}
}

func TestTouchSessionMissing(t *testing.T) {
	engine, closeFn := newSessionTestEngine(t)
	defer closeFn()

	err := engine.TouchSession(context.Background(), "acct-1", "ghost")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestTerminateSession(t *testing.T) {
	engine, closeFn := newSessionTestEngine(t)
	defer closeFn()

	ctx := context.Background()
	saveTestSession(t, engine.sessionStore, "0", "acct-1", "sid-1", time.Now())
	saveTestSession(t, engine.sessionStore, "0", "acct-1", "sid-2", time.Now())

	if err := engine.TerminateSession(ctx, "acct-1", "sid-1", "sid-2"); err != nil {
		t.Fatalf("TerminateSession failed: %v", err)
	}

	// Terminating the same session twice reports it missing.
	if err := engine.TerminateSession(ctx, "acct-1", "sid-1", "sid-2"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on repeat, got %v", err)
	}

	infos, err := engine.ListSessions(ctx, "acct-1", "sid-1")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(infos) != 1 || infos[0].SessionID != "sid-1" {
		t.Fatalf("expected only sid-1 to remain, got %d sessions", len(infos))
	}
}

func TestTerminateSessionRejectsSelf(t *testing.T) {
	engine, closeFn := newSessionTestEngine(t)
	defer closeFn()

	ctx := context.Background()
	saveTestSession(t, engine.sessionStore, "0", "acct-1", "sid-1", time.Now())

	err := engine.TerminateSession(ctx, "acct-1", "sid-1", "sid-1")
	if !errors.Is(err, ErrSelfTermination) {
		t.Fatalf("expected ErrSelfTermination, got %v", err)
	}

	infos, listErr := engine.ListSessions(ctx, "acct-1", "sid-1")
	if listErr != nil {
		t.Fatalf("ListSessions failed: %v", listErr)
	}
	if len(infos) != 1 {
		t.Fatal("expected the session to survive a self-termination attempt")
	}
}

func TestTerminateAllOtherSessions(t *testing.T) {
	engine, closeFn := newSessionTestEngine(t)
	defer closeFn()

	ctx := context.Background()
	now := time.Now()
	saveTestSession(t, engine.sessionStore, "0", "acct-1", "sid-keep", now)
	saveTestSession(t, engine.sessionStore, "0", "acct-1", "sid-1", now)
	saveTestSession(t, engine.sessionStore, "0", "acct-1", "sid-2", now)
	saveTestSession(t, engine.sessionStore, "0", "acct-1", "sid-3", now)

	removed, err := engine.TerminateAllOtherSessions(ctx, "acct-1", "sid-keep")
	if err != nil {
		t.Fatalf("TerminateAllOtherSessions failed: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}

	infos, err := engine.ListSessions(ctx, "acct-1", "sid-keep")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(infos) != 1 || infos[0].SessionID != "sid-keep" {
		t.Fatalf("expected only the requester to survive, got %d sessions", len(infos))
	}

	// Nothing left to remove on a second sweep.
	removed, err = engine.TerminateAllOtherSessions(ctx, "acct-1", "sid-keep")
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected 0 removed on second sweep, got %d", removed)
	}
}

func TestTerminateAllOtherSessionsRequiresRequester(t *testing.T) {
	engine, closeFn := newSessionTestEngine(t)
	defer closeFn()

	if _, err := engine.TerminateAllOtherSessions(context.Background(), "acct-1", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRegisterSessionEvictsStalest(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cs := &mockCredentialStore{
		accounts: map[string]Account{
			"acct-1": {AccountID: "acct-1"},
		},
	}
	cfg := defaultConfig()
	cfg.Session.MaxSessionsPerAccount = 2
	engine := newTestEngineWithConfig(t, rdb, cs, newTestHasher(t), cfg)

	ctx := context.Background()
	now := time.Now()
	saveTestSession(t, engine.sessionStore, "0", "acct-1", "sid-stale", now.Add(-3*time.Hour))
	saveTestSession(t, engine.sessionStore, "0", "acct-1", "sid-fresh", now.Add(-time.Minute))

	sid, err := engine.RegisterSession(ctx, "acct-1", SessionMeta{DeviceLabel: "phone"})
	if err != nil {
		t.Fatalf("RegisterSession failed: %v", err)
	}

	infos, err := engine.ListSessions(ctx, "acct-1", sid)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected cap of 2 sessions, got %d", len(infos))
	}
	for _, info := range infos {
		if info.SessionID == "sid-stale" {
			t.Fatal("expected the least recently active session to be evicted")
		}
	}
}

func TestSessionsIsolatedPerAccount(t *testing.T) {
	engine, closeFn := newSessionTestEngine(t)
	defer closeFn()

	ctx := context.Background()
	saveTestSession(t, engine.sessionStore, "0", "acct-1", "sid-1", time.Now())
	saveTestSession(t, engine.sessionStore, "0", "acct-2", "sid-2", time.Now())

	if err := engine.TerminateSession(ctx, "acct-1", "", "sid-2"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected cross-account terminate to miss, got %v", err)
	}

	infos, err := engine.ListSessions(ctx, "acct-2", "")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected acct-2 session untouched, got %d", len(infos))
	}
}
