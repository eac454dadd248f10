package attendance

import (
	"strings"
	"time"

	"github.com/attendly/attendly/core"
)

// FilterTrail returns the entries of trail matching f, in the same order.
// SinceDays > 0 keeps entries modified within that many days before now.
// SearchText matches the member's name, the author's name or the reason, ignoring case.
// Every log entry is a manual adjustment, so ManualOnly keeps them all.
func FilterTrail(trail []AdjustmentRecord, f TrailFilter, now time.Time) []AdjustmentRecord {
	search := strings.TrimSpace(f.SearchText)
	var since time.Time
	if f.SinceDays > 0 {
		since = now.AddDate(0, 0, -f.SinceDays)
	}

	filtered := make([]AdjustmentRecord, 0, len(trail))
	for _, rec := range trail {
		if !since.IsZero() && rec.ModifiedAt.Before(since) {
			continue
		}
		if search != "" &&
			!core.ContainsFold(rec.TargetUserName, search) &&
			!core.ContainsFold(rec.ModifiedBy.Name, search) &&
			!core.ContainsFold(rec.Reason, search) {
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered
}
