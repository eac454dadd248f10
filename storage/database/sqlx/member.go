package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/attendly/attendly/core/member"
	"github.com/attendly/attendly/core/role"
)

const memberColumns = `id, organization_id, name, email, role, is_active, password_hash, created_at, updated_at, last_login`

type memberRow struct {
	ID             string    `db:"id"`
	OrganizationID string    `db:"organization_id"`
	Name           string    `db:"name"`
	Email          string    `db:"email"`
	Role           role.Role `db:"role"`
	IsActive       bool      `db:"is_active"`
	PasswordHash   []byte    `db:"password_hash"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
	LastLogin      null.Time `db:"last_login"`
}

func (r memberRow) toMember() member.Member {
	return member.Member{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		Name:           r.Name,
		Email:          r.Email,
		Role:           r.Role,
		IsActive:       r.IsActive,
		PasswordHash:   r.PasswordHash,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
		LastLogin:      r.LastLogin,
	}
}

type memberRepository struct {
	db *sqlx.DB
}

var _ member.Repository = (*memberRepository)(nil)

func NewMemberRepository(db *sqlx.DB) member.Repository {
	return &memberRepository{db: db}
}

func (repo *memberRepository) CreateMember(ctx context.Context, m member.Member) (member.Member, error) {
	row := memberRow{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		Name:           m.Name,
		Email:          m.Email,
		Role:           m.Role,
		IsActive:       m.IsActive,
		PasswordHash:   m.PasswordHash,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		LastLogin:      m.LastLogin,
	}
	q := `INSERT INTO members (` + memberColumns + `)
		VALUES (:id, :organization_id, :name, :email, :role, :is_active, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		if isUniqueViolation(err, "members_email_key") {
			return member.Member{}, member.ErrEmailExists
		}
		return member.Member{}, errors.Wrap(err, "inserting member")
	}
	return row.toMember(), nil
}

func (repo *memberRepository) get(ctx context.Context, where string, arg interface{}) (member.Member, error) {
	var row memberRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+memberColumns+` FROM members WHERE `+where, arg)
	if isNoRows(err) {
		return member.Member{}, member.ErrNotFound
	}
	if err != nil {
		return member.Member{}, errors.Wrap(err, "selecting member")
	}
	return row.toMember(), nil
}

func (repo *memberRepository) GetMemberByID(ctx context.Context, id string) (member.Member, error) {
	if _, err := uuid.Parse(id); err != nil {
		return member.Member{}, member.ErrNotFound
	}
	return repo.get(ctx, "id = $1", id)
}

func (repo *memberRepository) GetMemberByEmail(ctx context.Context, email string) (member.Member, error) {
	return repo.get(ctx, "email = $1", email)
}

func (repo *memberRepository) FilterMembers(ctx context.Context, filter member.QueryFilter) ([]member.Member, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.OrganizationID != "" {
		conds = append(conds, "organization_id = "+arg(filter.OrganizationID))
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = "+arg(*filter.IsActive))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf("(name ILIKE %s OR email ILIKE %s)", p, p))
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, 0, len(filter.Roles))
		for _, r := range filter.Roles {
			roles = append(roles, role.Parse(r).String())
		}
		conds = append(conds, "role = ANY("+arg(pq.Array(roles))+")")
	}

	q := `SELECT ` + memberColumns + ` FROM members`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY name, id"

	rows := make([]memberRow, 0)
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting members")
	}
	members := make([]member.Member, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.toMember())
	}
	return members, nil
}

func (repo *memberRepository) UpdatePassword(ctx context.Context, id string, hash []byte, updatedAt time.Time) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE members SET password_hash = $1, updated_at = $2 WHERE id = $3`, hash, updatedAt, id)
	if err != nil {
		return errors.Wrap(err, "updating password")
	}
	return checkAffected(res, member.ErrNotFound)
}

func (repo *memberRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE members SET last_login = $1 WHERE id = $2`, at, id)
	if err != nil {
		return errors.Wrap(err, "updating last login")
	}
	return checkAffected(res, member.ErrNotFound)
}
