package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulib/edulib-api/internal/models"
)

func TestUpsertRating(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	mock.ExpectExec("INSERT INTO ratings").WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertRating(context.Background(), &models.Rating{ResourceID: "r1", UserID: "u1", Value: 4})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRatingValues(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	rows := sqlmock.NewRows([]string{"value"}).AddRow(4).AddRow(5)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM ratings WHERE resource_id = $1")).
		WithArgs("r1").
		WillReturnRows(rows)

	values, err := repo.ListRatingValues(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, values)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleSaveRemoves(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM saves WHERE user_id = $1 AND resource_id = $2")).
		WithArgs("u1", "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	saved, err := repo.ToggleSave(context.Background(), "u1", "r1")
	require.NoError(t, err)
	assert.False(t, saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleSaveAdds(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM saves WHERE user_id = $1 AND resource_id = $2")).
		WithArgs("u1", "r1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO saves (user_id, resource_id, created_at) VALUES ($1, $2, $3) ON CONFLICT (user_id, resource_id) DO NOTHING")).
		WithArgs("u1", "r1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	saved, err := repo.ToggleSave(context.Background(), "u1", "r1")
	require.NoError(t, err)
	assert.True(t, saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListComments(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "resource_id", "author_id", "author_name", "text", "created_at"}).
		AddRow("c2", "r1", "u2", "Second", "newer", now).
		AddRow("c1", "r1", "u1", "First", "older", now.Add(-time.Hour))
	mock.ExpectQuery("FROM comments c JOIN users u ON u.id = c.author_id").
		WithArgs("r1").
		WillReturnRows(rows)

	comments, err := repo.ListComments(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "c2", comments[0].ID)
	assert.Equal(t, "Second", comments[0].AuthorName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsSaved(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEngagementRepository(db)

	rows := sqlmock.NewRows([]string{"exists"}).AddRow(true)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("u1", "r1").
		WillReturnRows(rows)

	saved, err := repo.IsSaved(context.Background(), "u1", "r1")
	require.NoError(t, err)
	assert.True(t, saved)
	assert.NoError(t, mock.ExpectationsWereMet())
}
