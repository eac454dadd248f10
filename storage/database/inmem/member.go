package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/attendly/attendly/core/member"
)

type memberRepository struct {
	db *memberTable
}

var _ member.Repository = (*memberRepository)(nil)

func NewMemberRepository(db *DB) member.Repository {
	return &memberRepository{db: db.member}
}

func (repo *memberRepository) CreateMember(_ context.Context, m member.Member) (member.Member, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, other := range repo.db.table {
		if other.Email == m.Email {
			return member.Member{}, member.ErrEmailExists
		}
	}
	repo.db.table[m.ID] = &m
	return m, nil
}

func (repo *memberRepository) GetMemberByID(_ context.Context, id string) (member.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.table[id]; ok {
		return *m, nil
	}
	return member.Member{}, member.ErrNotFound
}

func (repo *memberRepository) GetMemberByEmail(_ context.Context, email string) (member.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, m := range repo.db.table {
		if m.Email == email {
			return *m, nil
		}
	}
	return member.Member{}, member.ErrNotFound
}

func (repo *memberRepository) FilterMembers(_ context.Context, filter member.QueryFilter) ([]member.Member, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	members := make([]member.Member, 0)
	for _, m := range repo.db.table {
		if filter.Matches(*m) {
			members = append(members, *m)
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members, nil
}

func (repo *memberRepository) UpdatePassword(_ context.Context, id string, hash []byte, updatedAt time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	m, ok := repo.db.table[id]
	if !ok {
		return member.ErrNotFound
	}
	m.PasswordHash = hash
	m.UpdatedAt = updatedAt
	return nil
}

func (repo *memberRepository) SetLastLogin(_ context.Context, id string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	m, ok := repo.db.table[id]
	if !ok {
		return member.ErrNotFound
	}
	m.LastLogin = null.TimeFrom(at)
	return nil
}
