package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	authdomain "github.com/trustcove/trustcove/internal/auth/domain"
	authrepo "github.com/trustcove/trustcove/internal/auth/repository"
	authservice "github.com/trustcove/trustcove/internal/auth/service"
	"github.com/trustcove/trustcove/internal/auth/session"
	"github.com/trustcove/trustcove/internal/authorization"
	"github.com/trustcove/trustcove/internal/clock"
	"github.com/trustcove/trustcove/internal/config"
	invitationservice "github.com/trustcove/trustcove/internal/invitation/service"
	orgdomain "github.com/trustcove/trustcove/internal/organization/domain"
	orgrepo "github.com/trustcove/trustcove/internal/organization/repository"
	orgservice "github.com/trustcove/trustcove/internal/organization/service"
	"github.com/trustcove/trustcove/internal/signup"
	dbpkg "github.com/trustcove/trustcove/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testServer struct {
	engine *gin.Engine
	db     *gorm.DB
	clk    *clock.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&authdomain.User{},
		&authdomain.Session{},
		&orgdomain.Organization{},
		&orgdomain.Membership{},
		&orgdomain.Invitation{},
	))

	node, err := snowflake.NewNode(7)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	policy := &config.MembershipPolicyHolder{}
	log := zap.NewNop()

	userRepo, sessionRepo := authrepo.New(conn)
	authsvc := authservice.New(log, userRepo, sessionRepo, node, clk, policy)

	enforcer, err := authorization.NewEnforcer(conn)
	require.NoError(t, err)
	authzSvc := authorization.NewService(authorization.Params{DB: conn, Log: log, Enforcer: enforcer})
	caps := authorization.NewCapabilityChecker(authzSvc)

	repo := orgrepo.NewRepository(conn)
	orgsvc := orgservice.NewService(log, conn, repo, authsvc, caps, nil, node, clk)
	invitesvc := invitationservice.NewService(log, conn, repo, authsvc, caps, nil, node, clk, policy)
	signupsvc := signup.NewService(authsvc, orgsvc)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	NewServer(ServerParams{
		Gin:             engine,
		Cfg:             config.Config{},
		DB:              conn,
		Authsvc:         authsvc,
		Sessions:        session.NewManager(config.Config{}),
		GenID:           node,
		AuthzSvc:        authzSvc,
		AuditSvc:        nil,
		OrganizationSvc: orgsvc,
		InvitationSvc:   invitesvc,
		Signupsvc:       signupsvc,
	})

	return &testServer{engine: engine, db: conn, clk: clk}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, cookie string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: cookie})
	}

	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func sessionCookie(w *httptest.ResponseRecorder) string {
	for _, c := range w.Result().Cookies() {
		if c.Name == session.DefaultCookieName && c.Value != "" {
			return c.Value
		}
	}
	return ""
}

// signupOwner provisions an account with its personal organization and
// returns the session cookie and org id.
func (ts *testServer) signupOwner(t *testing.T, email string) (string, string) {
	t.Helper()

	w := ts.do(t, http.MethodPost, "/auth/signup", gin.H{
		"org_name":     "Acme",
		"display_name": "Owner",
		"email":        email,
		"password":     "a-long-enough-password",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookie := sessionCookie(w)
	require.NotEmpty(t, cookie)

	orgsResp := ts.do(t, http.MethodGet, "/organizations", nil, cookie)
	require.Equal(t, http.StatusOK, orgsResp.Code)
	data := decode(t, orgsResp)["data"].([]any)
	require.Len(t, data, 1)
	orgID := data[0].(map[string]any)["id"].(string)

	return cookie, orgID
}

func (ts *testServer) createInvite(t *testing.T, cookie, orgID, email, role string) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, fmt.Sprintf("/organizations/%s/invitations", orgID), gin.H{
		"email": email,
		"role":  role,
	}, cookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["token"].(string)
}

func TestInvitationSignupFlow(t *testing.T) {
	ts := newTestServer(t)
	ownerCookie, orgID := ts.signupOwner(t, "owner@example.com")

	token := ts.createInvite(t, ownerCookie, orgID, "new.hire@example.com", "MEMBER")

	// Anonymous resolve: nobody owns that email yet.
	w := ts.do(t, http.MethodGet, "/invitations/"+token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	resolved := decode(t, w)
	assert.Equal(t, "signup_required", resolved["outcome"])
	assert.Equal(t, "new.hire@example.com", resolved["email"])

	// A blank name is rejected before any account is created.
	w = ts.do(t, http.MethodPost, "/invitations/"+token+"/accept", gin.H{
		"name":                  "   ",
		"password":              "a-long-enough-password",
		"password_confirmation": "a-long-enough-password",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Accept with credentials creates the account and logs it in.
	w = ts.do(t, http.MethodPost, "/invitations/"+token+"/accept", gin.H{
		"name":                  "New Hire",
		"password":              "a-long-enough-password",
		"password_confirmation": "a-long-enough-password",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	membership := decode(t, w)
	assert.Equal(t, true, membership["created"])
	assert.Equal(t, "MEMBER", membership["role"])

	cookie := sessionCookie(w)
	require.NotEmpty(t, cookie)

	// The session works and the account is verified into the org.
	w = ts.do(t, http.MethodGet, "/auth/me", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode(t, w)["metadata"].(map[string]any)
	assert.Equal(t, "new.hire@example.com", me["email"])
	assert.Equal(t, true, me["email_verified"])
	assert.Contains(t, me["org_ids"], orgID)
}

func TestInvitationAcceptAsSelf(t *testing.T) {
	ts := newTestServer(t)
	ownerCookie, orgID := ts.signupOwner(t, "owner@example.com")

	// The invitee already has an account and a session of their own.
	inviteeCookie, _ := ts.signupOwner(t, "invitee@example.com")

	token := ts.createInvite(t, ownerCookie, orgID, "invitee@example.com", "ADMIN")

	w := ts.do(t, http.MethodGet, "/invitations/"+token, nil, inviteeCookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "accept_as_self", decode(t, w)["outcome"])

	w = ts.do(t, http.MethodPost, "/invitations/"+token+"/accept", nil, inviteeCookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode(t, w)
	assert.Equal(t, true, result["created"])
	assert.Equal(t, "ADMIN", result["role"])

	// Re-accepting converges on the same membership.
	w = ts.do(t, http.MethodPost, "/invitations/"+token+"/accept", nil, inviteeCookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["created"])
}

func TestInvitationLoginRequired(t *testing.T) {
	ts := newTestServer(t)
	ownerCookie, orgID := ts.signupOwner(t, "owner@example.com")
	ts.signupOwner(t, "existing@example.com")

	token := ts.createInvite(t, ownerCookie, orgID, "existing@example.com", "MEMBER")

	w := ts.do(t, http.MethodGet, "/invitations/"+token, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "login_required", decode(t, w)["outcome"])

	// No session and no password: nothing to accept with.
	w = ts.do(t, http.MethodPost, "/invitations/"+token+"/accept", gin.H{}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInvitationUnknownToken(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/invitations/f9a8b7c6", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode(t, w)["error"].(map[string]any)["type"])
}

func TestInvitationExpiredIsGone(t *testing.T) {
	ts := newTestServer(t)
	ownerCookie, orgID := ts.signupOwner(t, "owner@example.com")
	token := ts.createInvite(t, ownerCookie, orgID, "late@example.com", "MEMBER")

	ts.clk.Advance(169 * time.Hour)

	w := ts.do(t, http.MethodGet, "/invitations/"+token, nil, "")
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, "gone", decode(t, w)["error"].(map[string]any)["type"])

	w = ts.do(t, http.MethodPost, "/invitations/"+token+"/accept", gin.H{
		"name":                  "Late Hire",
		"password":              "a-long-enough-password",
		"password_confirmation": "a-long-enough-password",
	}, "")
	assert.Equal(t, http.StatusGone, w.Code)
}

func TestInvitationPasswordMismatch(t *testing.T) {
	ts := newTestServer(t)
	ownerCookie, orgID := ts.signupOwner(t, "owner@example.com")
	token := ts.createInvite(t, ownerCookie, orgID, "typo@example.com", "MEMBER")

	w := ts.do(t, http.MethodPost, "/invitations/"+token+"/accept", gin.H{
		"name":                  "Typo Hire",
		"password":              "a-long-enough-password",
		"password_confirmation": "a-different-password",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Omitting the confirmation entirely is not a way around the check.
	w = ts.do(t, http.MethodPost, "/invitations/"+token+"/accept", gin.H{
		"name":     "Typo Hire",
		"password": "a-long-enough-password",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// The invitation survives the failed attempts.
	w = ts.do(t, http.MethodGet, "/invitations/"+token, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMemberCannotInvite(t *testing.T) {
	ts := newTestServer(t)
	ownerCookie, orgID := ts.signupOwner(t, "owner@example.com")
	memberCookie, _ := ts.signupOwner(t, "member@example.com")

	token := ts.createInvite(t, ownerCookie, orgID, "member@example.com", "MEMBER")
	w := ts.do(t, http.MethodPost, "/invitations/"+token+"/accept", nil, memberCookie)
	require.Equal(t, http.StatusOK, w.Code)

	// A plain MEMBER holds no invitation.manage capability.
	w = ts.do(t, http.MethodPost, fmt.Sprintf("/organizations/%s/invitations", orgID), gin.H{
		"email": "friend@example.com",
		"role":  "MEMBER",
	}, memberCookie)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOutsiderCannotSeeOrganization(t *testing.T) {
	ts := newTestServer(t)
	_, orgID := ts.signupOwner(t, "owner@example.com")
	strangerCookie, _ := ts.signupOwner(t, "stranger@example.com")

	w := ts.do(t, http.MethodGet, "/organizations/"+orgID, nil, strangerCookie)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodGet, "/organizations/"+orgID+"/members", nil, strangerCookie)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodGet, "/organizations/"+orgID, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMemberRosterLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ownerCookie, orgID := ts.signupOwner(t, "owner@example.com")
	ts.signupOwner(t, "colleague@example.com")

	// Direct add of an existing account.
	w := ts.do(t, http.MethodPost, fmt.Sprintf("/organizations/%s/members", orgID), gin.H{
		"email": "colleague@example.com",
		"role":  "ADMIN",
	}, ownerCookie)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	membershipID := decode(t, w)["membership_id"].(string)

	// Unknown accounts cannot be attached directly.
	w = ts.do(t, http.MethodPost, fmt.Sprintf("/organizations/%s/members", orgID), gin.H{
		"email": "ghost@example.com",
		"role":  "MEMBER",
	}, ownerCookie)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPut, fmt.Sprintf("/organizations/%s/members/%s", orgID, membershipID), gin.H{
		"role": "MEMBER",
	}, ownerCookie)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodDelete, fmt.Sprintf("/organizations/%s/members/%s", orgID, membershipID), nil, ownerCookie)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/organizations/%s/members", orgID), nil, ownerCookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"].([]any), 1)
}

func TestLastOwnerGuardOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ownerCookie, orgID := ts.signupOwner(t, "owner@example.com")

	w := ts.do(t, http.MethodGet, fmt.Sprintf("/organizations/%s/members", orgID), nil, ownerCookie)
	require.Equal(t, http.StatusOK, w.Code)
	roster := decode(t, w)["data"].([]any)
	require.Len(t, roster, 1)
	membershipID := roster[0].(map[string]any)["membership_id"].(string)

	w = ts.do(t, http.MethodDelete, fmt.Sprintf("/organizations/%s/members/%s", orgID, membershipID), nil, ownerCookie)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", decode(t, w)["error"].(map[string]any)["type"])
}
