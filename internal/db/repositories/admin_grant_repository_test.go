package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/chravel/chravel-backend/internal/db/models"
)

func newAdminGrantRepo(t *testing.T) (*AdminGrantRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewAdminGrantRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestAdminUpsert(t *testing.T) {
	repo, mock := newAdminGrantRepo(t)
	mock.ExpectExec("INSERT INTO admin_grants").
		WithArgs(testTripID, testUserID, true, false, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	caps := models.AdminCapabilities{ManageRoles: true}
	if err := repo.Upsert(context.Background(), testTripID, testUserID, caps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAdminGet_Found(t *testing.T) {
	repo, mock := newAdminGrantRepo(t)
	mock.ExpectQuery("SELECT.*FROM admin_grants").
		WithArgs(testTripID, testUserID).
		WillReturnRows(sqlmock.NewRows(
			[]string{"manage_roles", "manage_channels", "designate_admins", "created_at", "updated_at"}).
			AddRow(true, true, false, time.Now(), time.Now()))

	grant, err := repo.Get(context.Background(), testTripID, testUserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if grant == nil {
		t.Fatal("expected grant, got nil")
	}
	if !grant.Capabilities.ManageChannels || grant.Capabilities.DesignateAdmins {
		t.Errorf("capabilities scanned wrong: %+v", grant.Capabilities)
	}
}

func TestAdminGet_NotFound(t *testing.T) {
	repo, mock := newAdminGrantRepo(t)
	mock.ExpectQuery("SELECT.*FROM admin_grants").
		WillReturnRows(sqlmock.NewRows(
			[]string{"manage_roles", "manage_channels", "designate_admins", "created_at", "updated_at"}))

	grant, err := repo.Get(context.Background(), testTripID, testUserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if grant != nil {
		t.Errorf("expected nil, got %v", grant)
	}
}

func TestHasCapability_ChecksNamedColumn(t *testing.T) {
	repo, mock := newAdminGrantRepo(t)
	mock.ExpectQuery("SELECT EXISTS.*manage_channels").
		WithArgs(testTripID, testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	held, err := repo.HasCapability(context.Background(), testTripID, testUserID, "manage_channels")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !held {
		t.Error("expected capability to be held")
	}
}

func TestIsAdmin_False(t *testing.T) {
	repo, mock := newAdminGrantRepo(t)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(testTripID, testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	held, err := repo.IsAdmin(context.Background(), testTripID, testUserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if held {
		t.Error("expected false")
	}
}
