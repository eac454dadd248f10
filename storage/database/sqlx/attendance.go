package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/attendly/attendly/core/attendance"
	"github.com/attendly/attendly/core/role"
)

const adjustmentColumns = `seq, id, organization_id, session_id, occurrence_date, target_user_id, target_user_name,
	previous_status, new_status, late_minutes, reason, modified_by_id, modified_by_name, modified_by_role, modified_at`

type baseRecordRow struct {
	SessionID        string            `db:"session_id"`
	Date             attendance.Date   `db:"occurrence_date"`
	UserID           string            `db:"user_id"`
	Status           attendance.Status `db:"status"`
	CheckInTime      null.Time         `db:"check_in_time"`
	LateMinutes      null.Int          `db:"late_minutes"`
	LocationVerified bool              `db:"location_verified"`
	RecordedAt       time.Time         `db:"recorded_at"`
}

func (r baseRecordRow) toBaseRecord() attendance.BaseRecord {
	rec := attendance.BaseRecord{
		SessionID:        r.SessionID,
		Date:             r.Date,
		UserID:           r.UserID,
		Status:           r.Status,
		LateMinutes:      r.LateMinutes.Ptr(),
		LocationVerified: r.LocationVerified,
		RecordedAt:       r.RecordedAt.UTC(),
	}
	if r.CheckInTime.Valid {
		t := r.CheckInTime.Time.UTC()
		rec.CheckInTime = &t
	}
	return rec
}

type adjustmentRow struct {
	Sequence       int64             `db:"seq"`
	ID             string            `db:"id"`
	OrganizationID string            `db:"organization_id"`
	SessionID      string            `db:"session_id"`
	Date           attendance.Date   `db:"occurrence_date"`
	TargetUserID   string            `db:"target_user_id"`
	TargetUserName string            `db:"target_user_name"`
	PreviousStatus attendance.Status `db:"previous_status"`
	NewStatus      attendance.Status `db:"new_status"`
	LateMinutes    null.Int          `db:"late_minutes"`
	Reason         string            `db:"reason"`
	ModifiedByID   string            `db:"modified_by_id"`
	ModifiedByName string            `db:"modified_by_name"`
	ModifiedByRole role.Role         `db:"modified_by_role"`
	ModifiedAt     time.Time         `db:"modified_at"`
}

func (r adjustmentRow) toRecord() attendance.AdjustmentRecord {
	return attendance.AdjustmentRecord{
		ID:             r.ID,
		Sequence:       r.Sequence,
		OrganizationID: r.OrganizationID,
		SessionID:      r.SessionID,
		Date:           r.Date,
		TargetUserID:   r.TargetUserID,
		TargetUserName: r.TargetUserName,
		PreviousStatus: r.PreviousStatus,
		NewStatus:      r.NewStatus,
		LateMinutes:    r.LateMinutes.Ptr(),
		Reason:         r.Reason,
		ModifiedBy: attendance.Modifier{
			UserID: r.ModifiedByID,
			Name:   r.ModifiedByName,
			Role:   r.ModifiedByRole,
		},
		ModifiedAt: r.ModifiedAt.UTC(),
	}
}

func toRecords(rows []adjustmentRow) []attendance.AdjustmentRecord {
	records := make([]attendance.AdjustmentRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records
}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) GetBaseRecord(ctx context.Context, key attendance.Key) (attendance.BaseRecord, error) {
	var row baseRecordRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT session_id, occurrence_date, user_id, status, check_in_time, late_minutes, location_verified, recorded_at
		FROM attendance_base_records
		WHERE session_id = $1 AND occurrence_date = $2 AND user_id = $3`,
		key.SessionID, key.Date, key.UserID,
	)
	if isNoRows(err) {
		return attendance.BaseRecord{}, attendance.ErrNotFound
	}
	if err != nil {
		return attendance.BaseRecord{}, errors.Wrap(err, "selecting base record")
	}
	return row.toBaseRecord(), nil
}

func (repo *attendanceRepository) SaveBaseRecord(ctx context.Context, rec attendance.BaseRecord) error {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO attendance_base_records
			(session_id, occurrence_date, user_id, status, check_in_time, late_minutes, location_verified, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id, occurrence_date, user_id) DO UPDATE
		SET status = EXCLUDED.status,
			check_in_time = EXCLUDED.check_in_time,
			late_minutes = EXCLUDED.late_minutes,
			location_verified = EXCLUDED.location_verified,
			recorded_at = EXCLUDED.recorded_at`,
		rec.SessionID, rec.Date, rec.UserID, rec.Status,
		null.TimeFromPtr(rec.CheckInTime), null.IntFromPtr(rec.LateMinutes),
		rec.LocationVerified, rec.RecordedAt,
	)
	return errors.Wrap(err, "saving base record")
}

func (repo *attendanceRepository) ListAdjustments(ctx context.Context, key attendance.Key) ([]attendance.AdjustmentRecord, error) {
	rows := make([]adjustmentRow, 0)
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT `+adjustmentColumns+`
		FROM attendance_adjustments
		WHERE session_id = $1 AND occurrence_date = $2 AND target_user_id = $3
		ORDER BY modified_at, seq`,
		key.SessionID, key.Date, key.UserID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting adjustments")
	}
	return toRecords(rows), nil
}

// AppendAdjustment inserts rec only while the key holds expectedCount records.
// The key_version unique constraint settles concurrent appends that both see the same count.
func (repo *attendanceRepository) AppendAdjustment(ctx context.Context, rec attendance.AdjustmentRecord, expectedCount int) (attendance.AdjustmentRecord, error) {
	if err := rec.Validate(); err != nil {
		return attendance.AdjustmentRecord{}, err
	}

	var seq int64
	err := repo.db.QueryRowxContext(ctx, `
		INSERT INTO attendance_adjustments (
			id, organization_id, session_id, occurrence_date, target_user_id, target_user_name, key_version,
			previous_status, new_status, late_minutes, reason, modified_by_id, modified_by_name, modified_by_role, modified_at
		)
		SELECT $1::uuid, $2::text, $3::text, $4::date, $5::text, $6::text, $7::integer, $8::text, $9::text,
			$10::integer, $11::text, $12::text, $13::text, $14::text, $15::timestamptz
		WHERE (
			SELECT count(*) FROM attendance_adjustments
			WHERE session_id = $3 AND occurrence_date = $4 AND target_user_id = $5
		) = $16
		RETURNING seq`,
		rec.ID, rec.OrganizationID, rec.SessionID, rec.Date, rec.TargetUserID, rec.TargetUserName, expectedCount+1,
		rec.PreviousStatus, rec.NewStatus, null.IntFromPtr(rec.LateMinutes), rec.Reason,
		rec.ModifiedBy.UserID, rec.ModifiedBy.Name, rec.ModifiedBy.Role, rec.ModifiedAt,
		expectedCount,
	).Scan(&seq)
	switch {
	case isNoRows(err), isUniqueViolation(err, "attendance_adjustments_key_version_uq"):
		return attendance.AdjustmentRecord{}, attendance.ErrConcurrentModification
	case isUniqueViolation(err, "attendance_adjustments_id_key"):
		return attendance.AdjustmentRecord{}, attendance.ErrInvalidRecord
	case err != nil:
		return attendance.AdjustmentRecord{}, errors.Wrap(err, "inserting adjustment")
	}
	rec.Sequence = seq
	return rec, nil
}

func (repo *attendanceRepository) QueryTrail(ctx context.Context, q attendance.TrailQuery) ([]attendance.AdjustmentRecord, error) {
	var date interface{}
	if q.Date != nil {
		date = *q.Date
	}

	rows := make([]adjustmentRow, 0)
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT `+adjustmentColumns+`
		FROM attendance_adjustments
		WHERE session_id = $1
			AND ($2::text = '' OR organization_id = $2::text)
			AND ($3::date IS NULL OR occurrence_date = $3::date)
		ORDER BY modified_at, seq`,
		q.SessionID, q.OrganizationID, date,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting trail")
	}
	return toRecords(rows), nil
}
