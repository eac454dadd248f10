// Package role defines the closed set of member roles and the capabilities each one grants.
package role

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Role is a member's role within an organization (or the platform).
// The zero value is Unknown, which grants nothing.
type Role int

const (
	Unknown Role = iota
	PlatformOwner
	OrgSuperAdmin
	OrgAdmin
	Manager
	EndUser
)

var (
	// All lists every known role, highest first.
	All = []Role{PlatformOwner, OrgSuperAdmin, OrgAdmin, Manager, EndUser}

	names = map[Role]string{
		Unknown:       "UNKNOWN",
		PlatformOwner: "PLATFORM_OWNER",
		OrgSuperAdmin: "ORG_SUPER_ADMIN",
		OrgAdmin:      "ORG_ADMIN",
		Manager:       "MANAGER",
		EndUser:       "END_USER",
	}
)

// Parse maps a role name to its Role. Anything unrecognised is Unknown.
func Parse(s string) Role {
	s = strings.ToUpper(strings.TrimSpace(s))
	for r, name := range names {
		if r != Unknown && name == s {
			return r
		}
	}
	return Unknown
}

func (r Role) String() string {
	if name, ok := names[r]; ok {
		return name
	}
	return names[Unknown]
}

// IsKnown reports whether r is one of All.
func (r Role) IsKnown() bool {
	return r != Unknown && names[r] != ""
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText never fails: unrecognised names decode to Unknown.
func (r *Role) UnmarshalText(b []byte) error {
	*r = Parse(string(b))
	return nil
}

func (r Role) Value() (driver.Value, error) {
	return r.String(), nil
}

func (r *Role) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*r = Parse(v)
	case []byte:
		*r = Parse(string(v))
	case nil:
		*r = Unknown
	default:
		return fmt.Errorf("role: cannot scan %T", src)
	}
	return nil
}
