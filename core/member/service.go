package member

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/attendly/attendly/core"
	"github.com/attendly/attendly/core/attendance"
	"github.com/attendly/attendly/core/role"
)

var (
	// errors
	ErrNotFound           = errors.New("member not found")
	ErrEmailExists        = errors.New("a member with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactive           = errors.New("account deactivated")
	ErrPolicyNotFound     = errors.New("organization policy not found")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateMember(ctx context.Context, m Member) (Member, error)
		GetMemberByID(ctx context.Context, id string) (Member, error)
		GetMemberByEmail(ctx context.Context, email string) (Member, error)
		// FilterMembers applies AND operation on the set QueryFilter fields.
		FilterMembers(ctx context.Context, filter QueryFilter) ([]Member, error)
		UpdatePassword(ctx context.Context, id string, hash []byte, updatedAt time.Time) error
		SetLastLogin(ctx context.Context, id string, at time.Time) error
	}

	PolicyRepository interface {
		// GetPolicy returns ErrPolicyNotFound when the organization kept the defaults.
		GetPolicy(ctx context.Context, orgID string) (attendance.Policy, error)
		SavePolicy(ctx context.Context, p attendance.Policy, updatedAt time.Time) error
	}

	// Service manages organization members and policies.
	// It is the attendance.Directory & attendance.PolicyStore of the application.
	Service struct {
		repo     Repository
		policies PolicyRepository
		validate *validator.Validate
		defaults attendance.Policy
	}
)

var (
	_ attendance.Directory   = (*Service)(nil)
	_ attendance.PolicyStore = (*Service)(nil)
)

func NewService(repo Repository, policies PolicyRepository, validate *validator.Validate, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		policies: policies,
		validate: validate,
		defaults: attendance.Policy{
			AdjustmentWindowDays: conf.Attendance.DefaultWindowDays,
			MaxLateMinutes:       conf.Attendance.DefaultMaxLateMinutes,
		},
	}
}

func (svc *Service) Create(ctx context.Context, nm NewMember) (Member, error) {
	nm.Clean()
	if err := svc.validate.Struct(nm); err != nil {
		return Member{}, err
	}
	if _, err := svc.repo.GetMemberByEmail(ctx, nm.Email); err == nil {
		return Member{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	} else if !errors.Is(err, ErrNotFound) {
		return Member{}, err
	}

	now := NowFunc().UTC()
	m := Member{
		ID:             uuid.New().String(),
		OrganizationID: nm.OrganizationID,
		Name:           nm.Name,
		Email:          nm.Email,
		Role:           role.Parse(nm.Role),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.SetPassword(nm.Password); err != nil {
		return Member{}, err
	}
	return svc.repo.CreateMember(ctx, m)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Member, error) {
	return svc.repo.GetMemberByID(ctx, core.CleanString(id))
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Member, error) {
	return svc.repo.GetMemberByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Member, error) {
	filter.Clean()
	return svc.repo.FilterMembers(ctx, filter)
}

// Authenticate checks the credentials of an active member and records the login.
func (svc *Service) Authenticate(ctx context.Context, creds Credentials) (Member, error) {
	if err := svc.validate.Struct(creds); err != nil {
		return Member{}, err
	}
	m, err := svc.GetByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Member{}, ErrInvalidCredentials
		}
		return Member{}, err
	}
	if err := m.CheckPassword(creds.Password); err != nil {
		return Member{}, ErrInvalidCredentials
	}
	if !m.IsActive {
		return Member{}, ErrInactive
	}

	now := NowFunc().UTC()
	if err := svc.repo.SetLastLogin(ctx, m.ID, now); err != nil {
		return Member{}, err
	}
	m.LastLogin = null.TimeFrom(now)
	return m, nil
}

func (svc *Service) ResetPassword(ctx context.Context, id string, rp ResetPassword) error {
	m, err := svc.GetByID(ctx, id)
	if err != nil {
		return err
	}
	rp.name, rp.email = m.Name, m.Email
	if err := svc.validate.Struct(rp); err != nil {
		return err
	}
	if err := m.SetPassword(rp.Password); err != nil {
		return err
	}
	return svc.repo.UpdatePassword(ctx, m.ID, m.PasswordHash, NowFunc().UTC())
}

// Policy returns the adjustment policy of an organization, the configured defaults if it has none.
func (svc *Service) Policy(ctx context.Context, orgID string) (attendance.Policy, error) {
	orgID = core.CleanString(orgID)
	p, err := svc.policies.GetPolicy(ctx, orgID)
	if errors.Is(err, ErrPolicyNotFound) {
		p = svc.defaults
		p.OrganizationID = orgID
		err = nil
	}
	if err != nil {
		return attendance.Policy{}, err
	}
	p.MaxLateMinutes = p.LateMinutesCap()
	return p, nil
}

func (svc *Service) SetPolicy(ctx context.Context, up UpdatePolicy) (attendance.Policy, error) {
	up.OrganizationID = core.CleanString(up.OrganizationID)
	if err := svc.validate.Struct(up); err != nil {
		return attendance.Policy{}, err
	}
	p := attendance.Policy{
		OrganizationID:       up.OrganizationID,
		AdjustmentWindowDays: up.AdjustmentWindowDays,
		MaxLateMinutes:       up.MaxLateMinutes,
	}
	if err := svc.policies.SavePolicy(ctx, p, NowFunc().UTC()); err != nil {
		return attendance.Policy{}, err
	}
	return p, nil
}

// LookupMember resolves the directory entry of an active member.
func (svc *Service) LookupMember(ctx context.Context, userID string) (attendance.Member, error) {
	m, err := svc.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return attendance.Member{}, attendance.ErrNotFound
		}
		return attendance.Member{}, err
	}
	if !m.IsActive {
		return attendance.Member{}, attendance.ErrNotFound
	}
	return attendance.Member{ID: m.ID, OrganizationID: m.OrganizationID, Name: m.Name, Email: m.Email}, nil
}

func (svc *Service) AdjustmentPolicy(ctx context.Context, orgID string) (attendance.Policy, error) {
	return svc.Policy(ctx, orgID)
}
