package echoapi

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/attendly/attendly/core/attendance"
)

type (
	LoginResponse struct {
		Token string `json:"token"`
	}

	// AdjustmentRequest is the body of an adjustment submission.
	// Reason, status & late minutes are checked by the attendance service.
	AdjustmentRequest struct {
		SessionID    string `json:"session_id" validate:"required,notblank"`
		Date         string `json:"occurrence_date" validate:"required,iso_date"`
		TargetUserID string `json:"target_user_id" validate:"required,notblank"`
		NewStatus    string `json:"new_status"`
		Reason       string `json:"reason"`
		LateMinutes  *int   `json:"late_minutes"`
	}

	ScanRequest struct {
		SessionID        string     `json:"session_id" validate:"required,notblank"`
		Date             string     `json:"occurrence_date" validate:"required,iso_date"`
		UserID           string     `json:"user_id" validate:"required,notblank"`
		Status           string     `json:"status" validate:"required,att_status"`
		CheckInTime      *time.Time `json:"check_in_time"`
		LateMinutes      *int       `json:"late_minutes" validate:"omitempty,min=1,max=180"`
		LocationVerified bool       `json:"location_verified"`
	}

	RosterQuery struct {
		UserIDs    []string `query:"user"`
		ManualOnly bool     `query:"manual_only"`
	}

	TrailQuery struct {
		Date       string `query:"date" validate:"omitempty,iso_date"`
		ManualOnly bool   `query:"manual_only"`
		SinceDays  int    `query:"since_days" validate:"min=0"`
		Search     string `query:"search"`
	}
)

func bindAndValidate(ctx echo.Context, validate *validator.Validate, dst interface{}) error {
	if err := ctx.Bind(dst); err != nil {
		return errors.Wrapf(err, "binding to %T", dst)
	}
	return validate.Struct(dst)
}

func (ar AdjustmentRequest) newAdjustment() attendance.NewAdjustment {
	date, _ := attendance.ParseDate(ar.Date)
	status, ok := attendance.ParseStatus(ar.NewStatus)
	if !ok {
		status = attendance.Status(ar.NewStatus)
	}
	return attendance.NewAdjustment{
		SessionID:    ar.SessionID,
		Date:         date,
		TargetUserID: ar.TargetUserID,
		NewStatus:    status,
		Reason:       ar.Reason,
		LateMinutes:  ar.LateMinutes,
	}
}

func (sr ScanRequest) baseRecord() attendance.BaseRecord {
	date, _ := attendance.ParseDate(sr.Date)
	status, _ := attendance.ParseStatus(sr.Status)
	rec := attendance.BaseRecord{
		SessionID:        sr.SessionID,
		Date:             date,
		UserID:           sr.UserID,
		Status:           status,
		LateMinutes:      sr.LateMinutes,
		LocationVerified: sr.LocationVerified,
	}
	if sr.CheckInTime != nil {
		t := sr.CheckInTime.UTC()
		rec.CheckInTime = &t
	}
	return rec
}

func (tq TrailQuery) filter() attendance.TrailFilter {
	return attendance.TrailFilter{
		ManualOnly: tq.ManualOnly,
		SinceDays:  tq.SinceDays,
		SearchText: tq.Search,
	}
}
