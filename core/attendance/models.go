package attendance

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/attendly/attendly/core"
	"github.com/attendly/attendly/core/role"
)

// Bounds
const (
	ReasonMinLen   = 10
	ReasonMaxLen   = 500
	LateMinutesMin = 1
	LateMinutesMax = 180
)

// Status is an attendance status.
type Status string

const (
	StatusPresent Status = "PRESENT"
	StatusAbsent  Status = "ABSENT"
	StatusLate    Status = "LATE"
)

var Statuses = []Status{StatusPresent, StatusAbsent, StatusLate}

// ParseStatus maps a status name to its Status; ok is false for unknown names.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	return st, st.IsValid()
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	default:
		return false
	}
}

// Date is a calendar date (UTC midnight), e.g. the occurrence date of a session.
type Date struct {
	t time.Time
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(core.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// MustParseDate is like ParseDate but panics on error.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) Time() time.Time        { return d.t }
func (d Date) IsZero() bool           { return d.t.IsZero() }
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) AddDays(n int) Date     { return Date{t: d.t.AddDate(0, 0, n)} }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(core.DateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.t, nil
}

func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
	case string:
		return d.UnmarshalText([]byte(v))
	case []byte:
		return d.UnmarshalText(v)
	case nil:
		*d = Date{}
	default:
		return fmt.Errorf("attendance.Date: cannot scan %T", src)
	}
	return nil
}

// Key identifies one member's attendance for one occurrence of a session.
type Key struct {
	SessionID string `json:"session_id"`
	Date      Date   `json:"occurrence_date"`
	UserID    string `json:"user_id"`
}

func NewKey(sessionID string, date Date, userID string) Key {
	return Key{SessionID: core.CleanString(sessionID), Date: date, UserID: core.CleanString(userID)}
}

func (k Key) String() string {
	return k.SessionID + "|" + k.Date.String() + "|" + k.UserID
}

// Actor is the authenticated member performing an operation.
type Actor struct {
	UserID         string
	Name           string
	Role           role.Role
	OrganizationID string
}

// Member is the directory entry of an organization member.
type Member struct {
	ID             string
	OrganizationID string
	Name           string
	Email          string
}

// Policy is an organization's adjustment policy.
type Policy struct {
	OrganizationID       string `json:"organization_id"`
	AdjustmentWindowDays int    `json:"adjustment_window_days"` // 0: no age limit
	MaxLateMinutes       int    `json:"max_late_minutes"`
}

// LateMinutesCap returns the maximum accepted late minutes, never above LateMinutesMax.
func (p Policy) LateMinutesCap() int {
	if p.MaxLateMinutes < LateMinutesMin || p.MaxLateMinutes > LateMinutesMax {
		return LateMinutesMax
	}
	return p.MaxLateMinutes
}

// BaseRecord is the scan-derived attendance of one Key.
type BaseRecord struct {
	SessionID        string     `json:"session_id"`
	Date             Date       `json:"occurrence_date"`
	UserID           string     `json:"user_id"`
	Status           Status     `json:"status"`
	CheckInTime      *time.Time `json:"check_in_time"`
	LateMinutes      *int       `json:"late_minutes"`
	LocationVerified bool       `json:"location_verified"`
	RecordedAt       time.Time  `json:"recorded_at"`
}

func (b BaseRecord) Key() Key {
	return Key{SessionID: b.SessionID, Date: b.Date, UserID: b.UserID}
}

// Modifier identifies who made an adjustment.
type Modifier struct {
	UserID string    `json:"user_id"`
	Name   string    `json:"name"`
	Role   role.Role `json:"role"`
}

// AdjustmentRecord is one immutable entry of the adjustment log.
type AdjustmentRecord struct {
	ID             string    `json:"id"`
	Sequence       int64     `json:"sequence"` // assigned by the store, strictly increasing
	OrganizationID string    `json:"organization_id"`
	SessionID      string    `json:"session_id"`
	Date           Date      `json:"occurrence_date"`
	TargetUserID   string    `json:"target_user_id"`
	TargetUserName string    `json:"target_user_name"`
	PreviousStatus Status    `json:"previous_status"`
	NewStatus      Status    `json:"new_status"`
	LateMinutes    *int      `json:"late_minutes,omitempty"`
	Reason         string    `json:"reason"`
	ModifiedBy     Modifier  `json:"modified_by"`
	ModifiedAt     time.Time `json:"modified_at"`
}

func (r AdjustmentRecord) Key() Key {
	return Key{SessionID: r.SessionID, Date: r.Date, UserID: r.TargetUserID}
}

// Validate checks the structural invariants every stored record must hold.
func (r AdjustmentRecord) Validate() error {
	switch {
	case r.ID == "", r.SessionID == "", r.TargetUserID == "", r.Date.IsZero():
		return newError(KindInvalidRecord, "adjustment record is missing its identity")
	case r.ModifiedBy.UserID == "", r.ModifiedAt.IsZero():
		return newError(KindInvalidRecord, "adjustment record is missing its author")
	case !r.PreviousStatus.IsValid(), !r.NewStatus.IsValid():
		return newError(KindInvalidStatus, "invalid attendance status")
	case r.PreviousStatus == r.NewStatus:
		return ErrNoOpRejected
	}
	if err := checkReason(r.Reason); err != nil {
		return err
	}
	return checkLateMinutes(r.NewStatus, r.LateMinutes, LateMinutesMax)
}

func checkReason(reason string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(reason))
	if n < ReasonMinLen || n > ReasonMaxLen {
		return ErrInvalidReason
	}
	return nil
}

func checkLateMinutes(status Status, lateMinutes *int, lateCap int) error {
	if status != StatusLate {
		if lateMinutes != nil {
			return newError(KindInvalidLateMinutes, "late minutes are only accepted with status %s", StatusLate)
		}
		return nil
	}
	if lateMinutes == nil {
		return newError(KindInvalidLateMinutes, "late minutes are required with status %s", StatusLate)
	}
	if *lateMinutes < LateMinutesMin || *lateMinutes > lateCap {
		return newError(KindInvalidLateMinutes, "late minutes must be between %d and %d", LateMinutesMin, lateCap)
	}
	return nil
}

// EffectiveState is the attendance of one Key after folding its adjustments over the base record.
type EffectiveState struct {
	SessionID          string     `json:"session_id"`
	Date               Date       `json:"occurrence_date"`
	UserID             string     `json:"user_id"`
	Status             Status     `json:"status"`
	LateMinutes        *int       `json:"late_minutes"`
	CheckInTime        *time.Time `json:"check_in_time"`
	LocationVerified   bool       `json:"location_verified"`
	IsManuallyModified bool       `json:"is_manually_modified"`
	LastModifiedBy     *Modifier  `json:"last_modified_by"`
	LastModifiedAt     *time.Time `json:"last_modified_at"`
	ModificationCount  int        `json:"modification_count"`
	BaseRecordedAt     *time.Time `json:"base_recorded_at,omitempty"`
}

func (s EffectiveState) Key() Key {
	return Key{SessionID: s.SessionID, Date: s.Date, UserID: s.UserID}
}

// BaseVersion identifies the base record s was built from, in microseconds. 0 without a base.
func (s EffectiveState) BaseVersion() int64 {
	if s.BaseRecordedAt == nil {
		return 0
	}
	return s.BaseRecordedAt.UnixMicro()
}

// OlderThan reports whether s was built from fewer writes than other:
// fewer adjustments, or as many over an earlier base record.
func (s EffectiveState) OlderThan(other EffectiveState) bool {
	if s.ModificationCount != other.ModificationCount {
		return s.ModificationCount < other.ModificationCount
	}
	return s.BaseVersion() < other.BaseVersion()
}

// NewAdjustment is a requested change of a member's attendance status.
type NewAdjustment struct {
	SessionID    string
	Date         Date
	TargetUserID string
	NewStatus    Status
	Reason       string
	LateMinutes  *int
}

// TrailQuery selects the adjustment log entries of a session.
type TrailQuery struct {
	OrganizationID string // empty: every organization
	SessionID      string
	Date           *Date // nil: every occurrence
}

// TrailFilter narrows an audit trail for display.
type TrailFilter struct {
	ManualOnly bool   `query:"manual_only"`
	SinceDays  int    `query:"since_days"`
	SearchText string `query:"search"`
}
