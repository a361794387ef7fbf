package lifecycle

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/platinummonkey/flowdeck/pkg/access"
	"github.com/platinummonkey/flowdeck/pkg/grants"
	"github.com/platinummonkey/flowdeck/pkg/storage"
)

// A failed owner-grant insert must roll the whole creation back: the
// project row and the grant row land together or not at all.
func TestCreateProject_GrantInsertFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open sqlmock: %v", err)
	}
	defer db.Close()

	users := storage.NewUserStore(db)
	grantStore := grants.NewStore(db)
	resolver := access.NewResolver(users, grantStore)
	coordinator := NewCoordinator(db, resolver, nil)

	userRows := sqlmock.NewRows([]string{
		"id", "group_id", "name", "email", "password_hash", "projects_creatable", "created_at",
	}).AddRow(int64(7), nil, "alice", "alice@example.com", "", true, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs(int64(7)).
		WillReturnRows(userRows)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO projects")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	grantErr := errors.New("connection reset")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_project_grants")).
		WillReturnError(grantErr)
	mock.ExpectRollback()

	_, err = coordinator.CreateProject(context.Background(), 7, "alpha")
	if !errors.Is(err, grantErr) {
		t.Fatalf("Expected the grant insert error to surface, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

// Same shape for flows: a failed flow-grant insert must leave no flow
// row behind.
func TestCreateFlow_GrantInsertFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open sqlmock: %v", err)
	}
	defer db.Close()

	users := storage.NewUserStore(db)
	grantStore := grants.NewStore(db)
	resolver := access.NewResolver(users, grantStore)
	coordinator := NewCoordinator(db, resolver, nil)

	mock.ExpectQuery(regexp.QuoteMeta("FROM projects")).
		WithArgs("pub-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "public_id", "name", "creator_id", "created_at",
		}).AddRow(int64(42), "pub-1", "alpha", int64(7), time.Now()))

	// Resolution: the user grant alone settles it, no group lookup needed.
	mock.ExpectQuery(regexp.QuoteMeta("FROM user_project_grants")).
		WithArgs(int64(7), int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "project_id", "deletable_project", "creatable_flows", "deletable_flows", "readable_flows",
		}).AddRow(int64(7), int64(42), true, true, true, true))

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "group_id", "name", "email", "password_hash", "projects_creatable", "created_at",
		}).AddRow(int64(7), nil, "alice", "alice@example.com", "", true, time.Now()))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO flows")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	grantErr := errors.New("connection reset")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_flow_grants")).
		WillReturnError(grantErr)
	mock.ExpectRollback()

	_, err = coordinator.CreateFlow(context.Background(), 7, "pub-1", "nightly", "")
	if !errors.Is(err, grantErr) {
		t.Fatalf("Expected the grant insert error to surface, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
