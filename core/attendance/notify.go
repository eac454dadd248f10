package attendance

import (
	"net/mail"

	"github.com/attendly/attendly/core"
)

// AdjustedTemplate is the email template sent to a member whose attendance was adjusted.
const AdjustedTemplate = "attendance_adjusted"

type adjustedNotice struct {
	TargetName     string
	SessionID      string
	Date           string
	PreviousStatus Status
	NewStatus      Status
	LateMinutes    int
	ModifiedBy     string
	Reason         string
}

func (svc *Service) notify(target Member, rec AdjustmentRecord) {
	if svc.mailSvc == nil || target.Email == "" {
		return
	}
	notice := adjustedNotice{
		TargetName:     target.Name,
		SessionID:      rec.SessionID,
		Date:           rec.Date.String(),
		PreviousStatus: rec.PreviousStatus,
		NewStatus:      rec.NewStatus,
		ModifiedBy:     rec.ModifiedBy.Name,
		Reason:         rec.Reason,
	}
	if rec.LateMinutes != nil {
		notice.LateMinutes = *rec.LateMinutes
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: target.Name, Address: target.Email}},
		Subject:      "Your attendance was adjusted",
		TemplateName: AdjustedTemplate,
		TemplateData: notice,
	})
}
