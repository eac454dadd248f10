package member

import (
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/attendly/attendly/core"
	"github.com/attendly/attendly/core/role"
)

type Member struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           role.Role `json:"role"`
	IsActive       bool      `json:"is_active"`
	PasswordHash   []byte    `json:"-"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
	LastLogin      null.Time `json:"last_login"` // UTC
}

func (m *Member) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	m.PasswordHash = hash
	return nil
}

func (m *Member) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(m.PasswordHash, []byte(pwd))
}

// NewMember contains information needed to create a new Member.
type NewMember struct {
	OrganizationID  string `json:"organization_id" validate:"required,notblank"`
	Name            string `json:"name" validate:"required,notblank"`
	Email           string `json:"email" validate:"required,email"`
	Role            string `json:"role" validate:"required,known_role"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nm *NewMember) Clean() {
	nm.OrganizationID = core.CleanString(nm.OrganizationID)
	nm.Name = core.CleanString(nm.Name)
	nm.Email = core.CleanString(nm.Email, true /* lower */)
	nm.Role = core.CleanString(nm.Role)
}

type ResetPassword struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	// password similarity checks
	name  string
	email string
}

// UpdatePolicy sets an organization's adjustment policy.
type UpdatePolicy struct {
	OrganizationID       string `json:"organization_id" validate:"required,notblank"`
	AdjustmentWindowDays int    `json:"adjustment_window_days" validate:"min=0"`
	MaxLateMinutes       int    `json:"max_late_minutes" validate:"min=1,max=180"`
}

type Credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type QueryFilter struct {
	OrganizationID string   `query:"organization_id"`
	Search         string   `query:"search"`
	Roles          []string `query:"role"`
	IsActive       *bool    `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.OrganizationID = core.CleanString(qf.OrganizationID)
	qf.Search = core.CleanString(qf.Search)
}

// Matches reports whether m satisfies every set field of qf.
// Search does a case-insensitive match on one of Member.Name or Member.Email.
func (qf QueryFilter) Matches(m Member) bool {
	if qf.OrganizationID != "" && m.OrganizationID != qf.OrganizationID {
		return false
	}
	if qf.IsActive != nil && m.IsActive != *qf.IsActive {
		return false
	}
	if qf.Search != "" && !core.ContainsFold(m.Name, qf.Search) && !core.ContainsFold(m.Email, qf.Search) {
		return false
	}
	if len(qf.Roles) > 0 {
		for _, r := range qf.Roles {
			if role.Parse(r) == m.Role {
				return true
			}
		}
		return false
	}
	return true
}
