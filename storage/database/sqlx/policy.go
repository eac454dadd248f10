package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/attendly/attendly/core/attendance"
	"github.com/attendly/attendly/core/member"
)

type policyRepository struct {
	db *sqlx.DB
}

var _ member.PolicyRepository = (*policyRepository)(nil)

func NewPolicyRepository(db *sqlx.DB) member.PolicyRepository {
	return &policyRepository{db: db}
}

func (repo *policyRepository) GetPolicy(ctx context.Context, orgID string) (attendance.Policy, error) {
	var p attendance.Policy
	err := repo.db.QueryRowxContext(ctx,
		`SELECT organization_id, adjustment_window_days, max_late_minutes FROM organization_policies WHERE organization_id = $1`,
		orgID,
	).Scan(&p.OrganizationID, &p.AdjustmentWindowDays, &p.MaxLateMinutes)
	if isNoRows(err) {
		return attendance.Policy{}, member.ErrPolicyNotFound
	}
	if err != nil {
		return attendance.Policy{}, errors.Wrap(err, "selecting policy")
	}
	return p, nil
}

func (repo *policyRepository) SavePolicy(ctx context.Context, p attendance.Policy, updatedAt time.Time) error {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO organization_policies (organization_id, adjustment_window_days, max_late_minutes, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization_id) DO UPDATE
		SET adjustment_window_days = EXCLUDED.adjustment_window_days,
			max_late_minutes = EXCLUDED.max_late_minutes,
			updated_at = EXCLUDED.updated_at`,
		p.OrganizationID, p.AdjustmentWindowDays, p.MaxLateMinutes, updatedAt,
	)
	return errors.Wrap(err, "saving policy")
}
