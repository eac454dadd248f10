package attendance

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies the expected failures of attendance operations.
type Kind int

const (
	KindUnknown Kind = iota
	KindPermissionDenied
	KindInvalidReason
	KindNoOpRejected
	KindInvalidLateMinutes
	KindCrossOrgForbidden
	KindStaleTargetDate
	KindInvalidStatus
	KindInvalidRecord
	KindConcurrentModification
	KindNotFound
)

var kindCodes = map[Kind]string{
	KindUnknown:                "INTERNAL",
	KindPermissionDenied:       "PERMISSION_DENIED",
	KindInvalidReason:          "INVALID_REASON",
	KindNoOpRejected:           "NO_OP_REJECTED",
	KindInvalidLateMinutes:     "INVALID_LATE_MINUTES",
	KindCrossOrgForbidden:      "CROSS_ORG_FORBIDDEN",
	KindStaleTargetDate:        "STALE_TARGET_DATE",
	KindInvalidStatus:          "INVALID_STATUS",
	KindInvalidRecord:          "INVALID_RECORD",
	KindConcurrentModification: "CONCURRENT_MODIFICATION",
	KindNotFound:               "NOT_FOUND",
}

// Code is the stable wire code of k.
func (k Kind) Code() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return kindCodes[KindUnknown]
}

func (k Kind) String() string { return k.Code() }

// Error is a recoverable attendance failure. Errors match by Kind with errors.Is.
type Error struct {
	Kind Kind
	Msg  string
}

func newError(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrPermissionDenied       = &Error{Kind: KindPermissionDenied, Msg: "permission denied"}
	ErrInvalidReason          = &Error{Kind: KindInvalidReason, Msg: fmt.Sprintf("reason must contain between %d and %d characters", ReasonMinLen, ReasonMaxLen)}
	ErrNoOpRejected           = &Error{Kind: KindNoOpRejected, Msg: "no change detected: the attendance already has this status"}
	ErrInvalidLateMinutes     = &Error{Kind: KindInvalidLateMinutes, Msg: "invalid late minutes"}
	ErrCrossOrgForbidden      = &Error{Kind: KindCrossOrgForbidden, Msg: "member does not belong to your organization"}
	ErrStaleTargetDate        = &Error{Kind: KindStaleTargetDate, Msg: "occurrence date is outside the editable window"}
	ErrInvalidStatus          = &Error{Kind: KindInvalidStatus, Msg: "invalid attendance status"}
	ErrInvalidRecord          = &Error{Kind: KindInvalidRecord, Msg: "invalid adjustment record"}
	ErrConcurrentModification = &Error{Kind: KindConcurrentModification, Msg: "attendance was modified concurrently, reload and try again"}
	ErrNotFound               = &Error{Kind: KindNotFound, Msg: "not found"}
)

// KindOf returns the Kind of err, KindUnknown if err is not (wrapping) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
