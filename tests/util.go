package testutil

import (
	"context"
	"io"
	"log"
	"os"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/attendly/attendly/core"
	"github.com/attendly/attendly/core/attendance"
	"github.com/attendly/attendly/core/member"
	"github.com/attendly/attendly/core/role"
	appfs "github.com/attendly/attendly/fs"
	logsvc "github.com/attendly/attendly/services/logger"
	"github.com/attendly/attendly/storage/database"
)

// NewLogger returns a disabled logger that discards its output.
func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), core.NewTestConfig())
}

// NewValidator returns a validator with every application tag registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	member.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	return validate, translator
}

// NewEmailTemplates parses the embedded email templates in test mode.
func NewEmailTemplates() *core.EmailTemplates {
	return core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, core.NewTestConfig(), NewLogger())
}

// CreateMember stores a member directly through repo, bypassing validation.
func CreateMember(
	t *testing.T,
	repo member.Repository,
	orgID, name, email, pwd string,
	r role.Role,
	isActive bool,
	createdAt ...time.Time,
) member.Member {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	m := member.Member{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Name:           name,
		Email:          email,
		Role:           r,
		IsActive:       isActive,
		CreatedAt:      tstamp,
		UpdatedAt:      tstamp,
	}
	if pwd != "" {
		if err := m.SetPassword(pwd); err != nil {
			t.Fatalf("CreateMember() failed: %v", err)
		}
	}
	m, err := repo.CreateMember(context.Background(), m)
	if err != nil {
		t.Fatalf("CreateMember() failed: %v", err)
	}
	return m
}

// ActorOf returns the Actor acting as m.
func ActorOf(m member.Member) attendance.Actor {
	return attendance.Actor{UserID: m.ID, Name: m.Name, Role: m.Role, OrganizationID: m.OrganizationID}
}

// MockNow pins attendance.NowFunc & member.NowFunc to now until the test ends.
func MockNow(t *testing.T, now time.Time) {
	origAtt, origMember := attendance.NowFunc, member.NowFunc
	attendance.NowFunc = func() time.Time { return now }
	member.NowFunc = func() time.Time { return now }
	t.Cleanup(func() {
		attendance.NowFunc = origAtt
		member.NowFunc = origMember
	})
}

// OpenTestDB connects to TEST_DATABASE_URL and applies the migrations.
// The test is skipped when the variable is not set.
func OpenTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := database.OpenURL(dsn)
	if err != nil {
		t.Fatalf("OpenTestDB() failed: %v", err)
	}
	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("OpenTestDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ResetDB(t, db)
	return db
}

// ResetDB empties every table.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	q := `TRUNCATE attendance_adjustments, attendance_base_records, organization_policies, members RESTART IDENTITY`
	if _, err := db.Exec(q); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}
