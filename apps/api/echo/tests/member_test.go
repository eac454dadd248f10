package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/attendly/attendly/apps/api/echo"
	"github.com/attendly/attendly/core"
	"github.com/attendly/attendly/core/attendance"
	"github.com/attendly/attendly/core/member"
	"github.com/attendly/attendly/core/role"
)

func TestMemberApi_login(t *testing.T) {
	a := setup(t)
	gone := a.target
	gone.ID, gone.Email, gone.IsActive = "gone", "gone@test.cd", false
	_, err := a.memberRepo.CreateMember(ctx, gone)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Missing fields", body: marshallObj(t, member.Credentials{}), wantCode: http.StatusBadRequest},
		{
			name: "Wrong password", body: marshallObj(t, member.Credentials{Email: "jane@test.cd", Password: "nope"}),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Deactivated", body: marshallObj(t, member.Credentials{Email: "gone@test.cd", Password: password}),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method, tt.path = http.MethodPost, "/v1/users/login"
			checkCodeAndData(t, tt, a.do(t, tt))
		})
	}

	t.Run("Valid", func(t *testing.T) {
		rec := a.do(t, httpTest{
			method: http.MethodPost, path: "/v1/users/login",
			body: marshallObj(t, member.Credentials{Email: "JANE@test.cd", Password: password}),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.Token)

		// the token authenticates & refreshes
		rec = a.do(t, httpTest{path: "/v1/members/me", token: resp.Token})
		require.Equal(t, http.StatusOK, rec.Code)
		rec = a.do(t, httpTest{method: http.MethodPost, path: "/v1/users/token-refresh", token: resp.Token})
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Invalid token", func(t *testing.T) {
		rec := a.do(t, httpTest{path: "/v1/members/me", token: "not.a.token"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestMemberApi_permissions(t *testing.T) {
	a := setup(t)

	tests := []struct {
		name string
		m    member.Member
	}{
		{name: "owner", m: a.owner},
		{name: "admin", m: a.admin},
		{name: "manager", m: a.manager},
		{name: "end user", m: a.endUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httpTest{path: "/v1/permissions", token: a.token(t, tt.m), wantCode: http.StatusOK, wantData: marshallObj(t, role.Of(tt.m.Role))}
			checkCodeAndData(t, req, a.do(t, req))
		})
	}
}

func TestMemberApi_members(t *testing.T) {
	a := setup(t)
	adminToken := a.token(t, a.admin)

	newMember := func(orgID, r string) []byte {
		return marshallObj(t, member.NewMember{
			OrganizationID:  orgID,
			Name:            "New Hire",
			Email:           "new@test.cd",
			Role:            r,
			Password:        "N3w!Secret",
			PasswordConfirm: "N3w!Secret",
		})
	}

	tests := []httpTest{
		{name: "List: end user", path: "/v1/members", token: a.token(t, a.endUser), wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden)},
		{
			name: "List: organization scoped", path: "/v1/members", token: a.token(t, a.manager),
			wantCode: http.StatusOK, wantData: marshallObj(t, []member.Member{a.admin, a.endUser, a.target, a.manager}),
		},
		{
			name: "List: search", path: "/v1/members?search=doe", token: adminToken,
			wantCode: http.StatusOK, wantData: marshallObj(t, []member.Member{a.target}),
		},
		{
			name: "Retrieve: other organization", path: "/v1/members/" + a.target.ID, token: a.token(t, a.outsider),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "not found"}),
		},
		{name: "Retrieve: unknown", path: "/v1/members/unknown", token: adminToken, wantCode: http.StatusNotFound},
		{name: "Retrieve", path: "/v1/members/" + a.target.ID, token: adminToken, wantCode: http.StatusOK, wantData: marshallObj(t, a.target)},
		{
			name: "Create: manager", method: http.MethodPost, path: "/v1/members", body: newMember(orgA, "END_USER"),
			token: a.token(t, a.manager), wantCode: http.StatusForbidden,
		},
		{
			name: "Create: other organization", method: http.MethodPost, path: "/v1/members", body: newMember(orgB, "END_USER"),
			token: adminToken, wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden),
		},
		{
			name: "Create: higher role", method: http.MethodPost, path: "/v1/members", body: newMember(orgA, "ORG_SUPER_ADMIN"),
			token: adminToken, wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"role": "not enough rights to set this role"}),
		},
		{
			name: "Create: unknown role", method: http.MethodPost, path: "/v1/members", body: newMember(orgA, "JANITOR"),
			token: adminToken, wantCode: http.StatusBadRequest, wantData: marshallObj(t, map[string]string{"role": "invalid role"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.method == "" {
				tt.method = http.MethodGet
			}
			checkCodeAndData(t, tt, a.do(t, tt))
		})
	}

	t.Run("Create", func(t *testing.T) {
		rec := a.do(t, httpTest{method: http.MethodPost, path: "/v1/members", body: newMember("", "manager"), token: adminToken})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var got member.Member
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, orgA, got.OrganizationID)
		assert.Equal(t, role.Manager, got.Role)
		assert.NotContains(t, rec.Body.String(), "password")
	})

	t.Run("Reset own password", func(t *testing.T) {
		body := marshallObj(t, map[string]string{"password": "An0ther!Secret", "password_confirm": "An0ther!Secret"})
		rec := a.do(t, httpTest{method: http.MethodPut, path: "/v1/members/me/password", body: body, token: a.token(t, a.endUser)})
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		_, err := a.memberSvc.Authenticate(ctx, member.Credentials{Email: a.endUser.Email, Password: "An0ther!Secret"})
		assert.NoError(t, err)
	})
}

func TestMemberApi_policies(t *testing.T) {
	a := setup(t)
	path := "/v1/policies/" + orgA
	adminToken := a.token(t, a.admin)

	tests := []httpTest{
		{
			name: "Defaults", path: path, token: a.token(t, a.manager), wantCode: http.StatusOK,
			wantData: marshallObj(t, attendance.Policy{OrganizationID: orgA, AdjustmentWindowDays: 30, MaxLateMinutes: 180}),
		},
		{name: "Other organization", path: path, token: a.token(t, a.outsider), wantCode: http.StatusForbidden},
		{
			name: "Update: manager", method: http.MethodPut, path: path, token: a.token(t, a.manager),
			body: marshallObj(t, member.UpdatePolicy{AdjustmentWindowDays: 7, MaxLateMinutes: 60}), wantCode: http.StatusForbidden,
		},
		{
			name: "Update: out of range", method: http.MethodPut, path: path, token: adminToken,
			body: marshallObj(t, member.UpdatePolicy{AdjustmentWindowDays: 7, MaxLateMinutes: 500}), wantCode: http.StatusBadRequest,
		},
		{
			name: "Update", method: http.MethodPut, path: path, token: adminToken,
			body:     marshallObj(t, member.UpdatePolicy{AdjustmentWindowDays: 7, MaxLateMinutes: 60}),
			wantCode: http.StatusOK, wantData: marshallObj(t, attendance.Policy{OrganizationID: orgA, AdjustmentWindowDays: 7, MaxLateMinutes: 60}),
		},
		{
			name: "Updated", path: path, token: adminToken, wantCode: http.StatusOK,
			wantData: marshallObj(t, attendance.Policy{OrganizationID: orgA, AdjustmentWindowDays: 7, MaxLateMinutes: 60}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, a.do(t, tt))
		})
	}

	// the new cap applies to adjustments
	rec := a.do(t, httpTest{
		method: http.MethodPost, path: "/v1/attendance/adjustments", token: adminToken,
		body: adjustment(t, a.target.ID, "2024-03-14", "LATE", reason, core.IntPtr(90)),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), attendance.KindInvalidLateMinutes.Code())
}
