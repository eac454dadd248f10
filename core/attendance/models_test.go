package attendance_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendly/attendly/core"
	"github.com/attendly/attendly/core/attendance"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in     string
		want   attendance.Status
		wantOk bool
	}{
		{"PRESENT", attendance.StatusPresent, true},
		{" late ", attendance.StatusLate, true},
		{"Absent", attendance.StatusAbsent, true},
		{"EXCUSED", "EXCUSED", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := attendance.ParseStatus(tt.in)
			assert.Equal(t, tt.wantOk, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDate(t *testing.T) {
	d, err := attendance.ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())
	assert.Equal(t, "2024-03-01", d.AddDays(1).String())
	assert.True(t, d.Before(d.AddDays(1)))

	local := time.Date(2024, 2, 29, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))
	assert.Equal(t, d, attendance.DateOf(local))

	_, err = attendance.ParseDate("29/02/2024")
	assert.Error(t, err)

	b, err := json.Marshal(struct {
		Date attendance.Date `json:"date"`
	}{d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date": "2024-02-29"}`, string(b))

	var decoded struct {
		Date attendance.Date `json:"date"`
	}
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, d, decoded.Date)

	var scanned attendance.Date
	require.NoError(t, scanned.Scan(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, d, scanned)
	require.NoError(t, scanned.Scan([]byte("2024-02-29")))
	assert.Equal(t, d, scanned)
	assert.Error(t, scanned.Scan(42))
	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsZero())

	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, d.Time(), v)
	v, err = attendance.Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v, "a missing date is stored as NULL")
}

func TestEffectiveState_OlderThan(t *testing.T) {
	early := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	late := early.Add(time.Minute)
	state := func(count int, base *time.Time) attendance.EffectiveState {
		return attendance.EffectiveState{ModificationCount: count, BaseRecordedAt: base}
	}

	tests := []struct {
		name  string
		s     attendance.EffectiveState
		other attendance.EffectiveState
		want  bool
	}{
		{name: "fewer adjustments", s: state(1, &late), other: state(2, &early), want: true},
		{name: "more adjustments", s: state(2, &early), other: state(1, &late), want: false},
		{name: "no base vs base", s: state(0, nil), other: state(0, &early), want: true},
		{name: "earlier base", s: state(1, &early), other: state(1, &late), want: true},
		{name: "later base", s: state(1, &late), other: state(1, &early), want: false},
		{name: "same", s: state(1, &early), other: state(1, &early), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.OlderThan(tt.other))
		})
	}
}

func TestAdjustmentRecord_Validate(t *testing.T) {
	key := attendance.NewKey(sessionID, today, "jane")
	valid := adjustmentRecord(key, 1, now, attendance.StatusAbsent, attendance.StatusPresent, nil)
	require.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		mutate  func(r *attendance.AdjustmentRecord)
		wantErr error
	}{
		{"missing id", func(r *attendance.AdjustmentRecord) { r.ID = "" }, attendance.ErrInvalidRecord},
		{"missing author", func(r *attendance.AdjustmentRecord) { r.ModifiedBy.UserID = "" }, attendance.ErrInvalidRecord},
		{"missing date", func(r *attendance.AdjustmentRecord) { r.Date = attendance.Date{} }, attendance.ErrInvalidRecord},
		{"unknown status", func(r *attendance.AdjustmentRecord) { r.NewStatus = "EXCUSED" }, attendance.ErrInvalidStatus},
		{"no-op", func(r *attendance.AdjustmentRecord) { r.NewStatus = r.PreviousStatus }, attendance.ErrNoOpRejected},
		{"short reason", func(r *attendance.AdjustmentRecord) { r.Reason = "too short" }, attendance.ErrInvalidReason},
		{"late without minutes", func(r *attendance.AdjustmentRecord) { r.NewStatus = attendance.StatusLate }, attendance.ErrInvalidLateMinutes},
		{"present with minutes", func(r *attendance.AdjustmentRecord) { r.LateMinutes = core.IntPtr(3) }, attendance.ErrInvalidLateMinutes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			assert.ErrorIs(t, r.Validate(), tt.wantErr)
		})
	}
}

func TestErrors(t *testing.T) {
	wrapped := errors.Wrap(attendance.ErrStaleTargetDate, "submitting")
	assert.ErrorIs(t, wrapped, attendance.ErrStaleTargetDate)
	assert.NotErrorIs(t, wrapped, attendance.ErrNoOpRejected)
	assert.Equal(t, attendance.KindStaleTargetDate, attendance.KindOf(wrapped))
	assert.Equal(t, "STALE_TARGET_DATE", attendance.KindOf(wrapped).Code())

	assert.Equal(t, attendance.KindUnknown, attendance.KindOf(errors.New("boom")))
	assert.Equal(t, "INTERNAL", attendance.KindOf(nil).Code())

	codes := map[error]string{
		attendance.ErrPermissionDenied:   "PERMISSION_DENIED",
		attendance.ErrInvalidReason:      "INVALID_REASON",
		attendance.ErrNoOpRejected:       "NO_OP_REJECTED",
		attendance.ErrInvalidLateMinutes: "INVALID_LATE_MINUTES",
		attendance.ErrCrossOrgForbidden:  "CROSS_ORG_FORBIDDEN",
	}
	for err, code := range codes {
		assert.Equal(t, code, attendance.KindOf(err).Code())
	}
}

func TestPolicy_LateMinutesCap(t *testing.T) {
	assert.Equal(t, 30, attendance.Policy{MaxLateMinutes: 30}.LateMinutesCap())
	assert.Equal(t, 180, attendance.Policy{MaxLateMinutes: 0}.LateMinutesCap())
	assert.Equal(t, 180, attendance.Policy{MaxLateMinutes: 500}.LateMinutesCap())
}
