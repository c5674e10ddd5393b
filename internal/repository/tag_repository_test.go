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

func TestFindTagByNameIsCaseInsensitive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTagRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "created_at"}).AddRow("t1", "Algebra", now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, created_at FROM tags WHERE LOWER(name) = $1 LIMIT 1")).
		WithArgs("algebra").
		WillReturnRows(rows)

	tag, err := repo.FindByName(context.Background(), "ALGEBRA")
	require.NoError(t, err)
	assert.Equal(t, "Algebra", tag.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTopTagsOrdering(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTagRepository(db)

	// Ties on count are broken by name ascending.
	rows := sqlmock.NewRows([]string{"id", "name", "count"}).
		AddRow("t1", "algebra", 5).
		AddRow("t2", "biology", 5).
		AddRow("t3", "chemistry", 2)
	mock.ExpectQuery("ORDER BY count DESC, t.name ASC").
		WithArgs(string(models.ResourceApproved), 10).
		WillReturnRows(rows)

	counts, err := repo.TopTags(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, counts, 3)
	assert.Equal(t, "algebra", counts[0].Name)
	assert.Equal(t, "biology", counts[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
