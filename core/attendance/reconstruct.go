package attendance

import (
	"sort"
	"time"
)

// SortRecords orders records by (ModifiedAt, Sequence) in place.
func SortRecords(records []AdjustmentRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.ModifiedAt.Equal(b.ModifiedAt) {
			return a.ModifiedAt.Before(b.ModifiedAt)
		}
		return a.Sequence < b.Sequence
	})
}

// Reconstruct folds the adjustments of key over its base record.
// A nil base stands for a member who never checked in: ABSENT, no timestamps.
// Records of other keys are ignored. records is left untouched.
func Reconstruct(key Key, base *BaseRecord, records []AdjustmentRecord) EffectiveState {
	state := EffectiveState{
		SessionID: key.SessionID,
		Date:      key.Date,
		UserID:    key.UserID,
		Status:    StatusAbsent,
	}
	if base != nil {
		state.Status = base.Status
		state.LateMinutes = copyInt(base.LateMinutes)
		state.CheckInTime = copyTime(base.CheckInTime)
		state.LocationVerified = base.LocationVerified
		if !base.RecordedAt.IsZero() {
			state.BaseRecordedAt = copyTime(&base.RecordedAt)
		}
	}

	ordered := make([]AdjustmentRecord, 0, len(records))
	for _, rec := range records {
		if rec.Key() == key {
			ordered = append(ordered, rec)
		}
	}
	SortRecords(ordered)

	for _, rec := range ordered {
		state.Status = rec.NewStatus
		state.LateMinutes = nil
		if rec.NewStatus == StatusLate {
			state.LateMinutes = copyInt(rec.LateMinutes)
		}
		by := rec.ModifiedBy
		at := rec.ModifiedAt
		state.LastModifiedBy = &by
		state.LastModifiedAt = &at
	}
	state.ModificationCount = len(ordered)
	state.IsManuallyModified = state.ModificationCount > 0
	return state
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
