package goAccount

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/MrEthical07/goAccount/internal"
	"github.com/MrEthical07/goAccount/session"
	"github.com/redis/go-redis/v9"
)

func mapSessionStoreErr(err error) error {
	switch {
	case errors.Is(err, redis.Nil):
		return ErrSessionNotFound
	case errors.Is(err, session.ErrRedisUnavailable):
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	default:
		return err
	}
}

// RegisterSession describes the registersession operation and its observable behavior.
//
// RegisterSession may return an error when input validation, dependency calls, or security checks fail.
// RegisterSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RegisterSession(ctx context.Context, accountID string, meta SessionMeta) (string, error) {
	if e == nil || e.sessionStore == nil {
		return "", ErrEngineNotReady
	}
	tenantID := tenantIDFromContext(ctx)

	if accountID == "" {
		return "", ErrInvalidInput
	}

	if limit := e.config.Session.MaxSessionsPerAccount; limit > 0 {
		if err := e.evictStalest(ctx, tenantID, accountID, limit); err != nil {
			e.emitAudit(ctx, auditEventSessionRegistered, false, accountID, tenantID, "", err, func() map[string]string {
				return map[string]string{
					"reason": "cap_enforcement_failed",
				}
			})
			return "", err
		}
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		e.emitAudit(ctx, auditEventSessionRegistered, false, accountID, tenantID, "", err, func() map[string]string {
			return map[string]string{
				"reason": "session_id_generation",
			}
		})
		return "", err
	}
	sessionID := sid.String()

	sourceIP := meta.SourceIP
	if sourceIP == "" {
		sourceIP = clientIPFromContext(ctx)
	}

	now := time.Now()
	sess := &session.Session{
		SessionID:           sessionID,
		AccountID:           accountID,
		TenantID:            tenantID,
		DeviceLabel:         meta.DeviceLabel,
		BrowserLabel:        meta.BrowserLabel,
		SourceIP:            sourceIP,
		ApproximateLocation: meta.ApproximateLocation,
		CreatedAt:           now.Unix(),
		LastActiveAt:        now.Unix(),
		ExpiresAt:           now.Add(e.config.Session.SessionTTL).Unix(),
	}

	if err := e.sessionStore.Save(ctx, sess, e.config.Session.SessionTTL); err != nil {
		mapped := mapSessionStoreErr(err)
		e.emitAudit(ctx, auditEventSessionRegistered, false, accountID, tenantID, sessionID, mapped, nil)
		return "", mapped
	}

	e.metricInc(MetricSessionRegistered)
	e.emitAudit(ctx, auditEventSessionRegistered, true, accountID, tenantID, sessionID, nil, func() map[string]string {
		return map[string]string{
			"device": meta.DeviceLabel,
		}
	})

	return sessionID, nil
}

// evictStalest removes least-recently-active sessions until the account is
// below its cap, leaving room for the session about to be registered.
func (e *Engine) evictStalest(ctx context.Context, tenantID, accountID string, limit int) error {
	sessions, err := e.sessionStore.ListForAccount(ctx, tenantID, accountID)
	if err != nil {
		return mapSessionStoreErr(err)
	}
	if len(sessions) < limit {
		return nil
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].LastActiveAt != sessions[j].LastActiveAt {
			return sessions[i].LastActiveAt < sessions[j].LastActiveAt
		}
		return sessions[i].CreatedAt < sessions[j].CreatedAt
	})

	evict := len(sessions) - limit + 1
	for i := 0; i < evict; i++ {
		if _, err := e.sessionStore.Delete(ctx, tenantID, accountID, sessions[i].SessionID); err != nil {
			return mapSessionStoreErr(err)
		}
		e.metricInc(MetricSessionEvicted)
	}
	return nil
}

// TouchSession describes the touchsession operation and its observable behavior.
//
// TouchSession may return an error when input validation, dependency calls, or security checks fail.
// TouchSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) TouchSession(ctx context.Context, accountID, sessionID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	if accountID == "" || sessionID == "" {
		return ErrInvalidInput
	}

	tenantID := tenantIDFromContext(ctx)
	if err := e.sessionStore.Touch(ctx, tenantID, accountID, sessionID, time.Now()); err != nil {
		return mapSessionStoreErr(err)
	}
	return nil
}

// ListSessions describes the listsessions operation and its observable behavior.
//
// ListSessions may return an error when input validation, dependency calls, or security checks fail.
// ListSessions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ListSessions(ctx context.Context, accountID, requestingSessionID string) ([]SessionInfo, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}
	if accountID == "" {
		return nil, ErrInvalidInput
	}

	tenantID := tenantIDFromContext(ctx)
	sessions, err := e.sessionStore.ListForAccount(ctx, tenantID, accountID)
	if err != nil {
		return nil, mapSessionStoreErr(err)
	}

	// Most recent activity first; creation time breaks ties deterministically.
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].LastActiveAt != sessions[j].LastActiveAt {
			return sessions[i].LastActiveAt > sessions[j].LastActiveAt
		}
		if sessions[i].CreatedAt != sessions[j].CreatedAt {
			return sessions[i].CreatedAt > sessions[j].CreatedAt
		}
		return sessions[i].SessionID < sessions[j].SessionID
	})

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, SessionInfo{
			SessionID:           s.SessionID,
			DeviceLabel:         s.DeviceLabel,
			BrowserLabel:        s.BrowserLabel,
			SourceIP:            s.SourceIP,
			ApproximateLocation: s.ApproximateLocation,
			CreatedAt:           time.Unix(s.CreatedAt, 0),
			LastActiveAt:        time.Unix(s.LastActiveAt, 0),
			IsCurrent:           requestingSessionID != "" && s.SessionID == requestingSessionID,
		})
	}

	return infos, nil
}

// TerminateSession describes the terminatesession operation and its observable behavior.
//
// TerminateSession may return an error when input validation, dependency calls, or security checks fail.
// TerminateSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) TerminateSession(ctx context.Context, accountID, requestingSessionID, sessionID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	tenantID := tenantIDFromContext(ctx)

	if accountID == "" || sessionID == "" {
		return ErrInvalidInput
	}
	if sessionID == requestingSessionID {
		e.emitAudit(ctx, auditEventSessionTerminated, false, accountID, tenantID, sessionID, ErrSelfTermination, nil)
		return ErrSelfTermination
	}

	// A session belonging to a different account reads as absent, so a caller
	// can never terminate outside its own registry.
	sess, err := e.sessionStore.Get(ctx, tenantID, sessionID)
	if err != nil {
		mapped := mapSessionStoreErr(err)
		e.emitAudit(ctx, auditEventSessionTerminated, false, accountID, tenantID, sessionID, mapped, nil)
		return mapped
	}
	if sess.AccountID != accountID {
		e.emitAudit(ctx, auditEventSessionTerminated, false, accountID, tenantID, sessionID, ErrSessionNotFound, nil)
		return ErrSessionNotFound
	}

	existed, err := e.sessionStore.Delete(ctx, tenantID, accountID, sessionID)
	if err != nil {
		mapped := mapSessionStoreErr(err)
		e.emitAudit(ctx, auditEventSessionTerminated, false, accountID, tenantID, sessionID, mapped, nil)
		return mapped
	}
	if !existed {
		e.emitAudit(ctx, auditEventSessionTerminated, false, accountID, tenantID, sessionID, ErrSessionNotFound, nil)
		return ErrSessionNotFound
	}

	e.metricInc(MetricSessionTerminated)
	e.emitAudit(ctx, auditEventSessionTerminated, true, accountID, tenantID, sessionID, nil, nil)

	return nil
}

// TerminateAllOtherSessions describes the terminateallothersessions operation and its observable behavior.
//
// TerminateAllOtherSessions may return an error when input validation, dependency calls, or security checks fail.
// TerminateAllOtherSessions does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) TerminateAllOtherSessions(ctx context.Context, accountID, requestingSessionID string) (int, error) {
	if e == nil || e.sessionStore == nil {
		return 0, ErrEngineNotReady
	}
	tenantID := tenantIDFromContext(ctx)

	if accountID == "" || requestingSessionID == "" {
		return 0, ErrInvalidInput
	}

	removed, err := e.sessionStore.DeleteAllExcept(ctx, tenantID, accountID, requestingSessionID)
	if err != nil {
		mapped := mapSessionStoreErr(err)
		e.emitAudit(ctx, auditEventSessionTerminateOthers, false, accountID, tenantID, requestingSessionID, mapped, nil)
		return 0, mapped
	}

	e.metricInc(MetricSessionTerminateOthers)
	e.emitAudit(ctx, auditEventSessionTerminateOthers, true, accountID, tenantID, requestingSessionID, nil, func() map[string]string {
		return map[string]string{
			"terminated": fmt.Sprintf("%d", removed),
		}
	})

	return removed, nil
}
