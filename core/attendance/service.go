package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/attendly/attendly/core"
	"github.com/attendly/attendly/core/role"
)

// NowFunc is mockable in tests.
var NowFunc = time.Now

type (
	// Repository is the append-only adjustment log and the base record store.
	Repository interface {
		// GetBaseRecord returns ErrNotFound when the member never checked in.
		GetBaseRecord(ctx context.Context, key Key) (BaseRecord, error)
		SaveBaseRecord(ctx context.Context, rec BaseRecord) error
		// ListAdjustments returns the records of key ordered by (ModifiedAt, Sequence).
		ListAdjustments(ctx context.Context, key Key) ([]AdjustmentRecord, error)
		// AppendAdjustment stores rec only if key currently has exactly expectedCount records,
		// otherwise it fails with ErrConcurrentModification. It assigns rec.Sequence.
		AppendAdjustment(ctx context.Context, rec AdjustmentRecord, expectedCount int) (AdjustmentRecord, error)
		// QueryTrail returns the matching records ordered by (ModifiedAt, Sequence).
		QueryTrail(ctx context.Context, q TrailQuery) ([]AdjustmentRecord, error)
	}

	// Directory resolves organization members; it returns ErrNotFound for unknown ids.
	Directory interface {
		LookupMember(ctx context.Context, userID string) (Member, error)
	}

	PolicyStore interface {
		AdjustmentPolicy(ctx context.Context, orgID string) (Policy, error)
	}

	// StateCache keeps reconstructed states. Put must never replace a state by one
	// that is OlderThan it.
	StateCache interface {
		GetState(ctx context.Context, key Key) (EffectiveState, bool, error)
		PutState(ctx context.Context, state EffectiveState) error
		DeleteState(ctx context.Context, key Key) error
	}

	Service struct {
		repo     Repository
		dir      Directory
		policies PolicyStore
		cache    StateCache
		mailSvc  core.EmailService
		logger   core.Logger
		locks    *keyLocker
	}
)

// NoCache is the StateCache used when no cache is configured.
type NoCache struct{}

func (NoCache) GetState(context.Context, Key) (EffectiveState, bool, error) {
	return EffectiveState{}, false, nil
}
func (NoCache) PutState(context.Context, EffectiveState) error { return nil }
func (NoCache) DeleteState(context.Context, Key) error         { return nil }

func NewService(
	repo Repository,
	dir Directory,
	policies PolicyStore,
	cache StateCache,
	mailSvc core.EmailService,
	logger core.Logger,
) *Service {
	if cache == nil {
		cache = NoCache{}
	}
	return &Service{
		repo:     repo,
		dir:      dir,
		policies: policies,
		cache:    cache,
		mailSvc:  mailSvc,
		logger:   logger,
		locks:    newKeyLocker(),
	}
}

// Today returns the current date in UTC.
func Today() Date {
	return DateOf(NowFunc().UTC())
}

// Submit validates an adjustment request and appends it to the log.
// Checks run in this order: permission, reason, no-op, late minutes, organization, window.
// Submissions for the same key are serialized: the later one sees the earlier one's result.
func (svc *Service) Submit(ctx context.Context, actor Actor, na NewAdjustment) (AdjustmentRecord, error) {
	if !role.CanAdjust(actor.Role) {
		return AdjustmentRecord{}, ErrPermissionDenied
	}
	reason := strings.TrimSpace(na.Reason)
	if err := checkReason(reason); err != nil {
		return AdjustmentRecord{}, err
	}
	if !na.NewStatus.IsValid() {
		return AdjustmentRecord{}, ErrInvalidStatus
	}

	key := NewKey(na.SessionID, na.Date, na.TargetUserID)
	if key.SessionID == "" || key.UserID == "" || key.Date.IsZero() {
		return AdjustmentRecord{}, newError(KindInvalidRecord, "session, date and member are required")
	}

	target, found, err := svc.lookupMember(ctx, key.UserID)
	if err != nil {
		return AdjustmentRecord{}, err
	}
	orgID := actor.OrganizationID
	if found {
		orgID = target.OrganizationID
	}
	policy, err := svc.policies.AdjustmentPolicy(ctx, orgID)
	if err != nil {
		return AdjustmentRecord{}, errors.Wrap(err, "loading adjustment policy")
	}

	unlock := svc.locks.Lock(key)
	defer unlock()

	base, records, err := svc.load(ctx, key)
	if err != nil {
		return AdjustmentRecord{}, err
	}
	current := Reconstruct(key, base, records)

	if current.Status == na.NewStatus {
		return AdjustmentRecord{}, ErrNoOpRejected
	}
	if err := checkLateMinutes(na.NewStatus, na.LateMinutes, policy.LateMinutesCap()); err != nil {
		return AdjustmentRecord{}, err
	}
	if !found || (actor.Role != role.PlatformOwner && target.OrganizationID != actor.OrganizationID) {
		return AdjustmentRecord{}, ErrCrossOrgForbidden
	}
	if policy.AdjustmentWindowDays > 0 && key.Date.Before(Today().AddDays(-policy.AdjustmentWindowDays)) {
		return AdjustmentRecord{}, ErrStaleTargetDate
	}

	rec := AdjustmentRecord{
		ID:             uuid.New().String(),
		OrganizationID: target.OrganizationID,
		SessionID:      key.SessionID,
		Date:           key.Date,
		TargetUserID:   key.UserID,
		TargetUserName: target.Name,
		PreviousStatus: current.Status,
		NewStatus:      na.NewStatus,
		LateMinutes:    copyInt(na.LateMinutes),
		Reason:         reason,
		ModifiedBy:     Modifier{UserID: actor.UserID, Name: actor.Name, Role: actor.Role},
		ModifiedAt:     NowFunc().UTC().Truncate(time.Microsecond),
	}
	// the log orders by ModifiedAt first: never go back in time for a key
	if current.LastModifiedAt != nil && !rec.ModifiedAt.After(*current.LastModifiedAt) {
		rec.ModifiedAt = current.LastModifiedAt.Add(time.Microsecond)
	}

	saved, err := svc.repo.AppendAdjustment(ctx, rec, len(records))
	if err != nil {
		return AdjustmentRecord{}, err
	}

	svc.refreshCache(ctx, Reconstruct(key, base, append(records, saved)))
	svc.logger.Info("attendance adjusted", map[string]interface{}{
		"adjustment_id":   saved.ID,
		"session_id":      saved.SessionID,
		"occurrence_date": saved.Date.String(),
		"target_user_id":  saved.TargetUserID,
		"previous_status": saved.PreviousStatus,
		"new_status":      saved.NewStatus,
		"modified_by":     saved.ModifiedBy.UserID,
	})
	svc.notify(target, saved)
	return saved, nil
}

// CurrentState returns the effective attendance of key.
func (svc *Service) CurrentState(ctx context.Context, key Key) (EffectiveState, error) {
	state, ok, err := svc.cache.GetState(ctx, key)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("attendance.CurrentState: cache read: %v", err), err)
	} else if ok {
		return state, nil
	}

	// never waits on writers: the cache refuses states older than the one it holds
	base, records, err := svc.load(ctx, key)
	if err != nil {
		return EffectiveState{}, err
	}
	state = Reconstruct(key, base, records)
	if err := svc.cache.PutState(ctx, state); err != nil {
		svc.logger.Warn(fmt.Sprintf("attendance.CurrentState: cache write: %v", err), err)
	}
	return state, nil
}

// ViewState returns the effective attendance of key to a staff member of its organization
// or to the member it belongs to.
func (svc *Service) ViewState(ctx context.Context, actor Actor, key Key) (EffectiveState, error) {
	key = NewKey(key.SessionID, key.Date, key.UserID)
	if actor.UserID != key.UserID {
		if !role.CanView(actor.Role) {
			return EffectiveState{}, ErrPermissionDenied
		}
		if err := svc.checkTenant(ctx, actor, key.UserID); err != nil {
			return EffectiveState{}, err
		}
	}
	return svc.CurrentState(ctx, key)
}

// Roster returns the effective attendance of the given members for one occurrence.
// With manualOnly, members without adjustments are left out.
func (svc *Service) Roster(ctx context.Context, actor Actor, sessionID string, date Date, userIDs []string, manualOnly bool) ([]EffectiveState, error) {
	if !role.CanView(actor.Role) {
		return nil, ErrPermissionDenied
	}
	states := make([]EffectiveState, 0, len(userIDs))
	for _, userID := range userIDs {
		if err := svc.checkTenant(ctx, actor, userID); err != nil {
			return nil, err
		}
		state, err := svc.CurrentState(ctx, NewKey(sessionID, date, userID))
		if err != nil {
			return nil, err
		}
		if manualOnly && !state.IsManuallyModified {
			continue
		}
		states = append(states, state)
	}
	return states, nil
}

// Trail returns the adjustment log of a session, optionally restricted to one occurrence.
// Only platform owners see other organizations' entries.
func (svc *Service) Trail(ctx context.Context, actor Actor, sessionID string, date *Date) ([]AdjustmentRecord, error) {
	if !role.CanViewAuditTrail(actor.Role) {
		return nil, ErrPermissionDenied
	}
	q := TrailQuery{
		OrganizationID: actor.OrganizationID,
		SessionID:      core.CleanString(sessionID),
		Date:           date,
	}
	if actor.Role == role.PlatformOwner {
		q.OrganizationID = ""
	}
	trail, err := svc.repo.QueryTrail(ctx, q)
	if err != nil {
		return nil, err
	}
	SortRecords(trail)
	return trail, nil
}

// RecordScan stores the scan-derived base record of a member.
func (svc *Service) RecordScan(ctx context.Context, rec BaseRecord) error {
	key := NewKey(rec.SessionID, rec.Date, rec.UserID)
	if key.SessionID == "" || key.UserID == "" || key.Date.IsZero() {
		return newError(KindInvalidRecord, "session, date and member are required")
	}
	if !rec.Status.IsValid() {
		return ErrInvalidStatus
	}
	rec.SessionID, rec.UserID = key.SessionID, key.UserID
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = NowFunc().UTC()
	}

	unlock := svc.locks.Lock(key)
	defer unlock()

	base, records, err := svc.load(ctx, key)
	if err != nil {
		return err
	}
	// cached states are ordered by their base's RecordedAt: never go back in time for a key
	rec.RecordedAt = rec.RecordedAt.UTC().Truncate(time.Microsecond)
	if base != nil && !rec.RecordedAt.After(base.RecordedAt) {
		rec.RecordedAt = base.RecordedAt.Add(time.Microsecond)
	}
	if err := svc.repo.SaveBaseRecord(ctx, rec); err != nil {
		return err
	}
	svc.refreshCache(ctx, Reconstruct(key, &rec, records))
	return nil
}

func (svc *Service) load(ctx context.Context, key Key) (*BaseRecord, []AdjustmentRecord, error) {
	var base *BaseRecord
	b, err := svc.repo.GetBaseRecord(ctx, key)
	switch {
	case err == nil:
		base = &b
	case errors.Is(err, ErrNotFound):
	default:
		return nil, nil, errors.Wrap(err, "loading base record")
	}
	records, err := svc.repo.ListAdjustments(ctx, key)
	if err != nil {
		return nil, nil, errors.Wrap(err, "loading adjustments")
	}
	return base, records, nil
}

func (svc *Service) lookupMember(ctx context.Context, userID string) (Member, bool, error) {
	m, err := svc.dir.LookupMember(ctx, userID)
	switch {
	case err == nil:
		return m, true, nil
	case errors.Is(err, ErrNotFound):
		return Member{}, false, nil
	default:
		return Member{}, false, errors.Wrap(err, "looking up member")
	}
}

func (svc *Service) checkTenant(ctx context.Context, actor Actor, userID string) error {
	if actor.Role == role.PlatformOwner {
		return nil
	}
	m, found, err := svc.lookupMember(ctx, userID)
	if err != nil {
		return err
	}
	if !found || m.OrganizationID != actor.OrganizationID {
		return ErrCrossOrgForbidden
	}
	return nil
}

func (svc *Service) refreshCache(ctx context.Context, state EffectiveState) {
	if err := svc.cache.PutState(ctx, state); err != nil {
		svc.logger.Warn(fmt.Sprintf("attendance: cache write: %v", err), err)
		if err := svc.cache.DeleteState(ctx, state.Key()); err != nil {
			svc.logger.Error(fmt.Sprintf("attendance: cache delete: %v", err), err)
		}
	}
}
