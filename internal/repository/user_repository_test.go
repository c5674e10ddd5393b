package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulib/edulib-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "display_name", "role", "trust", "staff", "blocked", "block_reason", "created_at", "updated_at"})
}

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := userRows().
		AddRow("1", "user@example.com", "hash", "User", string(models.RoleStudent), string(models.TrustApproved), false, false, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, display_name, role, trust, staff, blocked, block_reason, created_at, updated_at FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("user@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "User@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	assert.Equal(t, models.TrustApproved, user.Trust)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTrustApplied(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET trust = $3, updated_at = $4 WHERE id = $1 AND trust = $2")).
		WithArgs("u1", string(models.TrustPending), string(models.TrustApproved), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.UpdateTrust(context.Background(), "u1", models.TrustPending, models.TrustApproved)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTrustAlreadyDecided(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	// The second of two concurrent decisions observes zero affected rows.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET trust = $3, updated_at = $4 WHERE id = $1 AND trust = $2")).
		WithArgs("u1", string(models.TrustPending), string(models.TrustRejected), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := repo.UpdateTrust(context.Background(), "u1", models.TrustPending, models.TrustRejected)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetBlocked(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	reason := "spam uploads"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET blocked = $2, block_reason = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("u1", true, "spam uploads", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetBlocked(context.Background(), "u1", true, &reason)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPendingTeachers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := userRows().
		AddRow("t1", "t1@example.com", "hash", "Teacher One", string(models.RoleTeacher), string(models.TrustPending), false, false, nil, now.Add(-time.Hour), now).
		AddRow("t2", "t2@example.com", "hash", "Teacher Two", string(models.RoleTeacher), string(models.TrustPending), false, false, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE role = $1 AND trust = $2 ORDER BY created_at ASC")).
		WithArgs(string(models.RoleTeacher), string(models.TrustPending)).
		WillReturnRows(rows)

	users, err := repo.ListPendingTeachers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "t1", users[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "1", UserID: "u1", Token: "token", ExpiresAt: time.Now(), CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
