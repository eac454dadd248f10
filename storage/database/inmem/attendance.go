package inmemdb

import (
	"context"

	"github.com/attendly/attendly/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTables
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db.attendance}
}

func (repo *attendanceRepository) GetBaseRecord(_ context.Context, key attendance.Key) (attendance.BaseRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.base[key]; ok {
		return rec, nil
	}
	return attendance.BaseRecord{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) SaveBaseRecord(_ context.Context, rec attendance.BaseRecord) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.base[rec.Key()] = rec
	return nil
}

func (repo *attendanceRepository) ListAdjustments(_ context.Context, key attendance.Key) ([]attendance.AdjustmentRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := make([]attendance.AdjustmentRecord, 0, repo.db.perKey[key])
	for _, rec := range repo.db.log {
		if rec.Key() == key {
			records = append(records, rec)
		}
	}
	attendance.SortRecords(records)
	return records, nil
}

func (repo *attendanceRepository) AppendAdjustment(_ context.Context, rec attendance.AdjustmentRecord, expectedCount int) (attendance.AdjustmentRecord, error) {
	if err := rec.Validate(); err != nil {
		return attendance.AdjustmentRecord{}, err
	}

	repo.db.Lock()
	defer repo.db.Unlock()

	key := rec.Key()
	if repo.db.perKey[key] != expectedCount {
		return attendance.AdjustmentRecord{}, attendance.ErrConcurrentModification
	}
	if _, ok := repo.db.ids[rec.ID]; ok {
		return attendance.AdjustmentRecord{}, attendance.ErrInvalidRecord
	}

	repo.db.sequence++
	rec.Sequence = repo.db.sequence
	repo.db.log = append(repo.db.log, rec)
	repo.db.perKey[key]++
	repo.db.ids[rec.ID] = struct{}{}
	return rec, nil
}

func (repo *attendanceRepository) QueryTrail(_ context.Context, q attendance.TrailQuery) ([]attendance.AdjustmentRecord, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	trail := make([]attendance.AdjustmentRecord, 0)
	for _, rec := range repo.db.log {
		if q.OrganizationID != "" && rec.OrganizationID != q.OrganizationID {
			continue
		}
		if rec.SessionID != q.SessionID {
			continue
		}
		if q.Date != nil && rec.Date != *q.Date {
			continue
		}
		trail = append(trail, rec)
	}
	attendance.SortRecords(trail)
	return trail, nil
}
