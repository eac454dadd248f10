package sqlxrepos_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendly/attendly/core"
	"github.com/attendly/attendly/core/attendance"
	"github.com/attendly/attendly/core/member"
	"github.com/attendly/attendly/core/role"
	"github.com/attendly/attendly/storage/database/sqlx"
	"github.com/attendly/attendly/tests"
)

var (
	ctx  = context.Background()
	day  = attendance.MustParseDate("2024-03-15")
	noon = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
)

func newRecord(key attendance.Key, orgID string, prev, next attendance.Status, at time.Time, late *int) attendance.AdjustmentRecord {
	return attendance.AdjustmentRecord{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		SessionID:      key.SessionID,
		Date:           key.Date,
		TargetUserID:   key.UserID,
		TargetUserName: "Jane Doe",
		PreviousStatus: prev,
		NewStatus:      next,
		LateMinutes:    late,
		Reason:         "forgot to scan QR code",
		ModifiedBy:     attendance.Modifier{UserID: "admin-1", Name: "Admin", Role: role.OrgAdmin},
		ModifiedAt:     at,
	}
}

func TestMemberRepository(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := sqlxrepos.NewMemberRepository(db)

	jane := testutil.CreateMember(t, repo, "org-a", "Jane Doe", "jane@test.cd", "", role.EndUser, true, noon)
	bob := testutil.CreateMember(t, repo, "org-a", "Bob Admin", "bob@test.cd", "", role.OrgAdmin, true, noon)
	zed := testutil.CreateMember(t, repo, "org-b", "Zed", "zed@test.cd", "", role.Manager, false, noon)

	t.Run("duplicate email", func(t *testing.T) {
		dup := jane
		dup.ID = uuid.New().String()
		_, err := repo.CreateMember(ctx, dup)
		assert.ErrorIs(t, err, member.ErrEmailExists)
	})

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetMemberByID(ctx, jane.ID)
		require.NoError(t, err)
		assert.Equal(t, jane.Email, got.Email)
		assert.Equal(t, role.EndUser, got.Role)
		assert.True(t, got.CreatedAt.Equal(noon))

		got, err = repo.GetMemberByEmail(ctx, "bob@test.cd")
		require.NoError(t, err)
		assert.Equal(t, bob.ID, got.ID)

		_, err = repo.GetMemberByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, member.ErrNotFound)
		_, err = repo.GetMemberByID(ctx, uuid.New().String())
		assert.ErrorIs(t, err, member.ErrNotFound)
	})

	t.Run("filter", func(t *testing.T) {
		ids := func(members []member.Member) []string {
			out := make([]string, 0, len(members))
			for _, m := range members {
				out = append(out, m.ID)
			}
			return out
		}
		tests := []struct {
			name   string
			filter member.QueryFilter
			want   []string
		}{
			{name: "all", want: []string{bob.ID, jane.ID, zed.ID}},
			{name: "organization", filter: member.QueryFilter{OrganizationID: "org-a"}, want: []string{bob.ID, jane.ID}},
			{name: "search", filter: member.QueryFilter{Search: "DOE"}, want: []string{jane.ID}},
			{name: "roles", filter: member.QueryFilter{Roles: []string{"org_admin", "manager"}}, want: []string{bob.ID, zed.ID}},
			{name: "inactive", filter: member.QueryFilter{IsActive: core.BoolPtr(false)}, want: []string{zed.ID}},
			{name: "no match", filter: member.QueryFilter{Search: "lol"}, want: []string{}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.FilterMembers(ctx, tt.filter)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(got))
			})
		}
	})

	t.Run("updates", func(t *testing.T) {
		later := noon.Add(time.Hour)
		require.NoError(t, repo.UpdatePassword(ctx, jane.ID, []byte("hash"), later))
		require.NoError(t, repo.SetLastLogin(ctx, jane.ID, later))

		got, err := repo.GetMemberByID(ctx, jane.ID)
		require.NoError(t, err)
		assert.Equal(t, []byte("hash"), got.PasswordHash)
		assert.True(t, got.UpdatedAt.Equal(later))
		assert.True(t, got.LastLogin.Valid)

		assert.ErrorIs(t, repo.SetLastLogin(ctx, uuid.New().String(), later), member.ErrNotFound)
	})
}

func TestPolicyRepository(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := sqlxrepos.NewPolicyRepository(db)

	_, err := repo.GetPolicy(ctx, "org-a")
	assert.ErrorIs(t, err, member.ErrPolicyNotFound)

	p := attendance.Policy{OrganizationID: "org-a", AdjustmentWindowDays: 7, MaxLateMinutes: 60}
	require.NoError(t, repo.SavePolicy(ctx, p, noon))
	got, err := repo.GetPolicy(ctx, "org-a")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	p.MaxLateMinutes = 90
	require.NoError(t, repo.SavePolicy(ctx, p, noon))
	got, err = repo.GetPolicy(ctx, "org-a")
	require.NoError(t, err)
	assert.Equal(t, 90, got.MaxLateMinutes)
}

func TestAttendanceRepository_BaseRecord(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := sqlxrepos.NewAttendanceRepository(db)
	key := attendance.NewKey("standup", day, "user-1")

	_, err := repo.GetBaseRecord(ctx, key)
	assert.ErrorIs(t, err, attendance.ErrNotFound)

	checkIn := noon.Add(-2 * time.Hour)
	rec := attendance.BaseRecord{
		SessionID:        key.SessionID,
		Date:             key.Date,
		UserID:           key.UserID,
		Status:           attendance.StatusLate,
		CheckInTime:      &checkIn,
		LateMinutes:      core.IntPtr(12),
		LocationVerified: true,
		RecordedAt:       noon,
	}
	undated := rec
	undated.Date = attendance.Date{}
	assert.Error(t, repo.SaveBaseRecord(ctx, undated), "a missing date is never stored")

	require.NoError(t, repo.SaveBaseRecord(ctx, rec))
	got, err := repo.GetBaseRecord(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, got.Key())
	assert.Equal(t, attendance.StatusLate, got.Status)
	assert.Equal(t, core.IntPtr(12), got.LateMinutes)
	require.NotNil(t, got.CheckInTime)
	assert.True(t, got.CheckInTime.Equal(checkIn))

	rec.Status, rec.LateMinutes = attendance.StatusPresent, nil
	require.NoError(t, repo.SaveBaseRecord(ctx, rec))
	got, err = repo.GetBaseRecord(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresent, got.Status)
	assert.Nil(t, got.LateMinutes)
}

func TestAttendanceRepository_Adjustments(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := sqlxrepos.NewAttendanceRepository(db)
	key := attendance.NewKey("standup", day, "user-1")
	other := attendance.NewKey("standup", day.AddDays(1), "user-2")

	first, err := repo.AppendAdjustment(ctx, newRecord(key, "org-a", attendance.StatusAbsent, attendance.StatusPresent, noon, nil), 0)
	require.NoError(t, err)
	assert.NotZero(t, first.Sequence)

	t.Run("stale expected count", func(t *testing.T) {
		_, err := repo.AppendAdjustment(ctx, newRecord(key, "org-a", attendance.StatusAbsent, attendance.StatusLate, noon, core.IntPtr(5)), 0)
		assert.ErrorIs(t, err, attendance.ErrConcurrentModification)
	})

	t.Run("invalid record", func(t *testing.T) {
		_, err := repo.AppendAdjustment(ctx, newRecord(key, "org-a", attendance.StatusPresent, attendance.StatusPresent, noon, nil), 1)
		assert.ErrorIs(t, err, attendance.ErrNoOpRejected)
	})

	second, err := repo.AppendAdjustment(ctx, newRecord(key, "org-a", attendance.StatusPresent, attendance.StatusLate, noon.Add(time.Minute), core.IntPtr(5)), 1)
	require.NoError(t, err)
	assert.Greater(t, second.Sequence, first.Sequence)
	_, err = repo.AppendAdjustment(ctx, newRecord(other, "org-b", attendance.StatusAbsent, attendance.StatusPresent, noon, nil), 0)
	require.NoError(t, err)

	t.Run("list", func(t *testing.T) {
		got, err := repo.ListAdjustments(ctx, key)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, first.ID, got[0].ID)
		assert.Equal(t, second.ID, got[1].ID)
		assert.Equal(t, core.IntPtr(5), got[1].LateMinutes)
		assert.Equal(t, role.OrgAdmin, got[1].ModifiedBy.Role)
	})

	t.Run("trail", func(t *testing.T) {
		tests := []struct {
			name  string
			query attendance.TrailQuery
			want  int
		}{
			{name: "org scoped", query: attendance.TrailQuery{OrganizationID: "org-a", SessionID: "standup"}, want: 2},
			{name: "all orgs", query: attendance.TrailQuery{SessionID: "standup"}, want: 3},
			{name: "date", query: attendance.TrailQuery{SessionID: "standup", Date: &other.Date}, want: 1},
			{name: "other org", query: attendance.TrailQuery{OrganizationID: "org-c", SessionID: "standup"}, want: 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.QueryTrail(ctx, tt.query)
				require.NoError(t, err)
				assert.Len(t, got, tt.want)
			})
		}
	})

	t.Run("append only", func(t *testing.T) {
		_, err := db.Exec(`UPDATE attendance_adjustments SET reason = 'rewritten history'`)
		assert.Error(t, err)
		_, err = db.Exec(`DELETE FROM attendance_adjustments`)
		assert.Error(t, err)
	})
}

func TestAttendanceRepository_ConcurrentAppend(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := sqlxrepos.NewAttendanceRepository(db)
	key := attendance.NewKey("standup", day, "user-1")

	const writers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := newRecord(key, "org-a", attendance.StatusAbsent, attendance.StatusPresent, noon, nil)
			if _, err := repo.AppendAdjustment(ctx, rec, 0); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, attendance.ErrConcurrentModification)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	got, err := repo.ListAdjustments(ctx, key)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
