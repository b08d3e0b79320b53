package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

var errDB = errors.New("db error")

const (
	testTripID    = "11111111-0000-0000-0000-000000000001"
	testUserID    = "user-alice"
	testActorID   = "user-admin"
	testRoleID    = "22222222-0000-0000-0000-000000000001"
	testChannelID = "33333333-0000-0000-0000-000000000001"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTripRepo(t *testing.T) (*TripRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewTripRepository(sqlx.NewDb(db, "sqlmock")), mock
}

var tripCols = []string{"id", "name", "creator_id", "created_at", "updated_at"}

func sampleTripRow() *sqlmock.Rows {
	return sqlmock.NewRows(tripCols).
		AddRow(testTripID, "Ski Week", "user-creator", time.Now(), time.Now())
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestTripCreate_BootstrapsMembershipAndAdminGrant(t *testing.T) {
	repo, mock := newTripRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO trips").
		WithArgs("Ski Week", "user-creator").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(testTripID, time.Now(), time.Now()))
	mock.ExpectExec("INSERT INTO trip_members").
		WithArgs(testTripID, "user-creator").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO admin_grants").
		WithArgs(testTripID, "user-creator").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	trip, err := repo.Create(context.Background(), "Ski Week", "user-creator")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trip.ID != testTripID {
		t.Errorf("expected trip ID %s, got %s", testTripID, trip.ID)
	}
	if trip.CreatorID != "user-creator" {
		t.Errorf("expected creator user-creator, got %s", trip.CreatorID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTripCreate_RollsBackWhenGrantInsertFails(t *testing.T) {
	repo, mock := newTripRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO trips").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(testTripID, time.Now(), time.Now()))
	mock.ExpectExec("INSERT INTO trip_members").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO admin_grants").
		WillReturnError(errDB)
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), "Ski Week", "user-creator")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// ---------------------------------------------------------------------------
// GetByID / GetCreator
// ---------------------------------------------------------------------------

func TestTripGetByID_Found(t *testing.T) {
	repo, mock := newTripRepo(t)
	mock.ExpectQuery("SELECT.*FROM trips").
		WithArgs(testTripID).
		WillReturnRows(sampleTripRow())

	trip, err := repo.GetByID(context.Background(), testTripID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trip == nil {
		t.Fatal("expected trip, got nil")
	}
}

func TestTripGetByID_NotFound(t *testing.T) {
	repo, mock := newTripRepo(t)
	mock.ExpectQuery("SELECT.*FROM trips").
		WillReturnRows(sqlmock.NewRows(tripCols))

	trip, err := repo.GetByID(context.Background(), testTripID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trip != nil {
		t.Errorf("expected nil, got %v", trip)
	}
}

func TestTripGetCreator_NotFoundIsEmpty(t *testing.T) {
	repo, mock := newTripRepo(t)
	mock.ExpectQuery("SELECT creator_id FROM trips").
		WillReturnRows(sqlmock.NewRows([]string{"creator_id"}))

	creator, err := repo.GetCreator(context.Background(), testTripID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creator != "" {
		t.Errorf("expected empty creator, got %q", creator)
	}
}

func TestTripGetCreator_Error(t *testing.T) {
	repo, mock := newTripRepo(t)
	mock.ExpectQuery("SELECT creator_id FROM trips").
		WillReturnError(errDB)

	_, err := repo.GetCreator(context.Background(), testTripID)
	if err == nil {
		t.Error("expected error, got nil")
	}
}
