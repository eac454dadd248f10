package redisstate_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendly/attendly/core"
	"github.com/attendly/attendly/core/attendance"
	"github.com/attendly/attendly/core/role"
	"github.com/attendly/attendly/storage/cache/redisstate"
)

func newCache(t *testing.T) (*redisstate.Cache, *miniredis.Miniredis) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisstate.NewCache(client, time.Hour), srv
}

func state(count int, status attendance.Status) attendance.EffectiveState {
	at := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	s := attendance.EffectiveState{
		SessionID:         "standup",
		Date:              attendance.MustParseDate("2024-03-15"),
		UserID:            "jane",
		Status:            status,
		ModificationCount: count,
	}
	if count > 0 {
		s.IsManuallyModified = true
		s.LastModifiedBy = &attendance.Modifier{UserID: "alice", Name: "Alice Admin", Role: role.OrgAdmin}
		s.LastModifiedAt = &at
	}
	if status == attendance.StatusLate {
		s.LateMinutes = core.IntPtr(15)
	}
	return s
}

func TestCache(t *testing.T) {
	ctx := context.Background()
	cache, srv := newCache(t)
	key := state(0, attendance.StatusAbsent).Key()

	_, ok, err := cache.GetState(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.PutState(ctx, state(0, attendance.StatusAbsent)))
	require.NoError(t, cache.PutState(ctx, state(2, attendance.StatusLate)))

	got, ok, err := cache.GetState(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, state(2, attendance.StatusLate), got)
	assert.True(t, srv.TTL("attendance:state:"+key.String()) > 0)

	t.Run("older states are refused", func(t *testing.T) {
		require.NoError(t, cache.PutState(ctx, state(1, attendance.StatusPresent)))
		got, _, err := cache.GetState(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, 2, got.ModificationCount)
		assert.Equal(t, attendance.StatusLate, got.Status)
	})

	t.Run("states over an earlier base are refused", func(t *testing.T) {
		key := attendance.NewKey("standup", attendance.MustParseDate("2024-03-16"), "jane")
		scanned := time.Date(2024, 3, 16, 8, 0, 0, 0, time.UTC)
		newer := attendance.EffectiveState{SessionID: key.SessionID, Date: key.Date, UserID: key.UserID, Status: attendance.StatusPresent, BaseRecordedAt: &scanned}
		older := attendance.EffectiveState{SessionID: key.SessionID, Date: key.Date, UserID: key.UserID, Status: attendance.StatusAbsent}

		require.NoError(t, cache.PutState(ctx, newer))
		require.NoError(t, cache.PutState(ctx, older))
		got, ok, err := cache.GetState(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, attendance.StatusPresent, got.Status)

		rescanned := scanned.Add(time.Minute)
		latest := newer
		latest.Status = attendance.StatusLate
		latest.LateMinutes = core.IntPtr(3)
		latest.BaseRecordedAt = &rescanned
		require.NoError(t, cache.PutState(ctx, latest))
		got, _, err = cache.GetState(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusLate, got.Status)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, cache.DeleteState(ctx, key))
		_, ok, err := cache.GetState(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unavailable", func(t *testing.T) {
		client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
		t.Cleanup(func() { _ = client.Close() })
		down := redisstate.NewCache(client, time.Hour)

		_, _, err := down.GetState(ctx, key)
		assert.Error(t, err)
		assert.Error(t, down.PutState(ctx, state(3, attendance.StatusPresent)))
	})
}
