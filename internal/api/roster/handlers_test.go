package roster

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chravel/chravel-backend/internal/authz"
	"github.com/chravel/chravel-backend/internal/middleware"
)

const (
	tripID  = "11111111-0000-0000-0000-000000000001"
	roleID  = "22222222-0000-0000-0000-000000000001"
	aliceID = "user-alice"
)

func newRouter(t *testing.T, userID string, opts authz.Options) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := NewRoleHandlers(authz.New(sqlx.NewDb(db, "sqlmock"), opts))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	})
	r.POST("/trips/:trip_id/assignments", h.AssignRole)
	r.GET("/trips/:trip_id/users/:user_id/primary-role", h.GetPrimaryRole)
	r.PUT("/trips/:trip_id/admins", h.GrantAdmin)
	r.POST("/trips/:trip_id/roster/sync", h.Sync)
	return r, mock
}

func postJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestAssignRole_NonMemberIs422(t *testing.T) {
	r, mock := newRouter(t, "user-creator", authz.Options{})

	mock.ExpectQuery("SELECT creator_id FROM trips").
		WithArgs(tripID).
		WillReturnRows(sqlmock.NewRows([]string{"creator_id"}).AddRow("user-creator"))
	mock.ExpectQuery("SELECT EXISTS.*FROM trip_members").
		WithArgs(tripID, aliceID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	w := postJSON(r, http.MethodPost, "/trips/"+tripID+"/assignments",
		`{"user_id":"`+aliceID+`","role_id":"`+roleID+`"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAssignRole_UnauthorizedActorIs403(t *testing.T) {
	r, mock := newRouter(t, aliceID, authz.Options{})

	mock.ExpectQuery("SELECT creator_id FROM trips").
		WithArgs(tripID).
		WillReturnRows(sqlmock.NewRows([]string{"creator_id"}).AddRow("user-creator"))
	mock.ExpectQuery("SELECT EXISTS.*FROM admin_grants").
		WithArgs(tripID, aliceID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	w := postJSON(r, http.MethodPost, "/trips/"+tripID+"/assignments",
		`{"user_id":"user-bob","role_id":"`+roleID+`"}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetPrimaryRole_NoneIsNullNot404(t *testing.T) {
	r, mock := newRouter(t, aliceID, authz.Options{})

	mock.ExpectQuery("SELECT.*FROM role_assignments ra.*JOIN roles").
		WithArgs(tripID, aliceID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "trip_id", "name", "slug", "created_at", "updated_at"}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/trips/"+tripID+"/users/"+aliceID+"/primary-role", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Nil(t, body["role"])
}

func TestGrantAdmin_EmptyingCreatorIs403(t *testing.T) {
	r, mock := newRouter(t, "user-root", authz.Options{SuperAdmins: []string{"user-root"}})

	mock.ExpectQuery("SELECT creator_id FROM trips").
		WithArgs(tripID).
		WillReturnRows(sqlmock.NewRows([]string{"creator_id"}).AddRow("user-creator"))

	w := postJSON(r, http.MethodPut, "/trips/"+tripID+"/admins",
		`{"user_id":"user-creator"}`)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSync_UnknownTripIs404(t *testing.T) {
	r, mock := newRouter(t, "", authz.Options{})

	mock.ExpectQuery("SELECT.*FROM trips").
		WithArgs(tripID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "creator_id", "created_at", "updated_at"}))

	w := postJSON(r, http.MethodPost, "/trips/"+tripID+"/roster/sync",
		`{"entries":[{"user_id":"`+aliceID+`","role_name":"Coach"}]}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSync_ReportsPerEntryOutcome(t *testing.T) {
	r, mock := newRouter(t, "", authz.Options{})

	mock.ExpectQuery("SELECT.*FROM trips").
		WithArgs(tripID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "creator_id", "created_at", "updated_at"}).
			AddRow(tripID, "Ski Week", "user-creator", time.Now(), time.Now()))

	// Role creation with auto-channel, then the assignment transaction with
	// membership auto-provisioning.
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO roles").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(roleID, time.Now(), time.Now()))
	mock.ExpectQuery("INSERT INTO channels").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("33333333-0000-0000-0000-000000000001"))
	mock.ExpectExec("INSERT INTO channel_role_grants").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT user_id FROM role_assignments").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectCommit()

	// Secondary entry not yet held, so the assignment transaction runs.
	mock.ExpectQuery("SELECT EXISTS.*FROM role_assignments").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO trip_members").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT 1 FROM trip_members").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("INSERT INTO role_assignments").
		WillReturnRows(sqlmock.NewRows([]string{"is_primary", "created_at"}).AddRow(true, time.Now()))
	mock.ExpectExec("INSERT INTO channel_members").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM channel_members").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	w := postJSON(r, http.MethodPost, "/trips/"+tripID+"/roster/sync",
		`{"entries":[{"user_id":"`+aliceID+`","role_name":"Coach"}]}`)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body["roles_created"])
	assert.Equal(t, 1, body["applied"])
	assert.Equal(t, 0, body["failed"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
