package role

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{in: "PLATFORM_OWNER", want: PlatformOwner},
		{in: "org_super_admin", want: OrgSuperAdmin},
		{in: " ORG_ADMIN ", want: OrgAdmin},
		{in: "Manager", want: Manager},
		{in: "END_USER", want: EndUser},
		{in: "", want: Unknown},
		{in: "UNKNOWN", want: Unknown},
		{in: "CompanyAdmin", want: Unknown},
		{in: "admin:owner", want: Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in))
		})
	}
}

func TestPermissions(t *testing.T) {
	tests := []struct {
		role Role
		want Capabilities
	}{
		{role: PlatformOwner, want: Capabilities{View: true, Adjust: true, Delete: true, Export: true, ViewAuditTrail: true}},
		{role: OrgSuperAdmin, want: Capabilities{View: true, Adjust: true, Delete: true, Export: true, ViewAuditTrail: true}},
		{role: OrgAdmin, want: Capabilities{View: true, Adjust: true, Delete: true, Export: true, ViewAuditTrail: true}},
		{role: Manager, want: Capabilities{View: true, Adjust: true}},
		{role: EndUser},
		{role: Unknown},
		{role: Role(42)},
		{role: Role(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Of(tt.role))
		})
	}
}

func TestRole_JSON(t *testing.T) {
	var got struct {
		Role Role `json:"role"`
	}
	assert.NoError(t, json.Unmarshal([]byte(`{"role":"MANAGER"}`), &got))
	assert.Equal(t, Manager, got.Role)

	// malformed roles fail closed instead of erroring
	assert.NoError(t, json.Unmarshal([]byte(`{"role":"SUPREME_LEADER"}`), &got))
	assert.Equal(t, Unknown, got.Role)
	assert.False(t, CanAdjust(got.Role))

	b, err := json.Marshal(struct {
		Role Role `json:"role"`
	}{Role: OrgAdmin})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"role":"ORG_ADMIN"}`, string(b))
}

func TestRole_Scan(t *testing.T) {
	var r Role
	assert.NoError(t, r.Scan([]byte("ORG_ADMIN")))
	assert.Equal(t, OrgAdmin, r)
	assert.NoError(t, r.Scan(nil))
	assert.Equal(t, Unknown, r)
	assert.Error(t, r.Scan(42))
}

func TestRole_Outranks(t *testing.T) {
	tests := []struct {
		r, other Role
		want     bool
	}{
		{r: PlatformOwner, other: OrgSuperAdmin, want: true},
		{r: OrgAdmin, other: Manager, want: true},
		{r: Manager, other: Manager},
		{r: EndUser, other: OrgAdmin},
		{r: EndUser, other: Unknown, want: true},
		{r: Unknown, other: EndUser},
	}
	for _, tt := range tests {
		t.Run(tt.r.String()+">"+tt.other.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.Outranks(tt.other))
		})
	}
}
