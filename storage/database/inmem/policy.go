package inmemdb

import (
	"context"
	"time"

	"github.com/attendly/attendly/core/attendance"
	"github.com/attendly/attendly/core/member"
)

type policyRepository struct {
	db *policyTable
}

var _ member.PolicyRepository = (*policyRepository)(nil)

func NewPolicyRepository(db *DB) member.PolicyRepository {
	return &policyRepository{db: db.policy}
}

func (repo *policyRepository) GetPolicy(_ context.Context, orgID string) (attendance.Policy, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.table[orgID]; ok {
		return p, nil
	}
	return attendance.Policy{}, member.ErrPolicyNotFound
}

func (repo *policyRepository) SavePolicy(_ context.Context, p attendance.Policy, _ time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[p.OrganizationID] = p
	return nil
}
