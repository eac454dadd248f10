package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	. "github.com/attendly/attendly/apps/api/echo"
	"github.com/attendly/attendly/core"
	"github.com/attendly/attendly/core/attendance"
	"github.com/attendly/attendly/core/member"
	"github.com/attendly/attendly/core/role"
	"github.com/attendly/attendly/services/email"
	"github.com/attendly/attendly/storage/database/inmem"
	"github.com/attendly/attendly/tests"
)

const (
	orgA     = "org-a"
	orgB     = "org-b"
	password = "Str0ng!Pass"
)

var (
	ctx = context.Background()
	now = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
)

type app struct {
	*Server
	memberRepo member.Repository
	memberSvc  *member.Service
	mailSvc    *emailsvc.ConsoleServiceMock

	owner, admin, manager, endUser, target, outsider member.Member
}

func setup(t *testing.T) *app {
	testutil.MockNow(t, now)

	// set up DB & repos
	db := inmemdb.Open()
	memberRepo := inmemdb.NewMemberRepository(db)

	// set up services
	conf := core.NewTestConfig()
	logger := testutil.NewLogger()
	validate, translator := testutil.NewValidator()
	mailSvc := emailsvc.NewConsoleServiceMock(testutil.NewEmailTemplates(), logger, conf)
	memberSvc := member.NewService(memberRepo, inmemdb.NewPolicyRepository(db), validate, conf)
	attendanceSvc := attendance.NewService(inmemdb.NewAttendanceRepository(db), memberSvc, memberSvc, nil, mailSvc, logger)

	a := &app{
		Server: NewServer(ServerDeps{
			Conf:           conf,
			Logger:         logger,
			MemberSvc:      memberSvc,
			AttendanceSvc:  attendanceSvc,
			Validate:       validate,
			Translator:     translator,
			DisableReqLogs: true,
		}),
		memberRepo: memberRepo,
		memberSvc:  memberSvc,
		mailSvc:    mailSvc,
	}
	a.owner = testutil.CreateMember(t, memberRepo, "platform", "Olive Owner", "owner@test.cd", password, role.PlatformOwner, true)
	a.admin = testutil.CreateMember(t, memberRepo, orgA, "Ada Admin", "admin@test.cd", password, role.OrgAdmin, true)
	a.manager = testutil.CreateMember(t, memberRepo, orgA, "Max Manager", "manager@test.cd", password, role.Manager, true)
	a.endUser = testutil.CreateMember(t, memberRepo, orgA, "Eve User", "eve@test.cd", password, role.EndUser, true)
	a.target = testutil.CreateMember(t, memberRepo, orgA, "Jane Doe", "jane@test.cd", password, role.EndUser, true)
	a.outsider = testutil.CreateMember(t, memberRepo, orgB, "Otto Outsider", "otto@test.cd", password, role.OrgAdmin, true)
	return a
}

func (a *app) token(t *testing.T, m member.Member) string {
	token, err := a.GenerateToken(m)
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

func (a *app) do(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	a.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func kindErr(err *attendance.Error) httpErr {
	return httpErr{Error: err.Msg, Code: err.Kind.Code()}
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data []byte) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "status code")
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
