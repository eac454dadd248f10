package inmemdb

import (
	"sync"

	"github.com/attendly/attendly/core/attendance"
	"github.com/attendly/attendly/core/member"
)

type (
	// DB is a process-local store, used in tests & when no database is configured.
	DB struct {
		member     *memberTable
		policy     *policyTable
		attendance *attendanceTables
	}

	memberTable struct {
		sync.RWMutex
		table map[string]*member.Member
	}

	policyTable struct {
		sync.RWMutex
		table map[string]attendance.Policy
	}

	attendanceTables struct {
		sync.RWMutex
		base     map[attendance.Key]attendance.BaseRecord
		log      []attendance.AdjustmentRecord
		perKey   map[attendance.Key]int
		ids      map[string]struct{}
		sequence int64
	}
)

func Open() *DB {
	return &DB{
		member: &memberTable{table: make(map[string]*member.Member)},
		policy: &policyTable{table: make(map[string]attendance.Policy)},
		attendance: &attendanceTables{
			base:   make(map[attendance.Key]attendance.BaseRecord),
			perKey: make(map[attendance.Key]int),
			ids:    make(map[string]struct{}),
		},
	}
}
