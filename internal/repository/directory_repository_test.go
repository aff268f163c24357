package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuxtbe/core-api/internal/models"
)

func newDirectoryMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func itemRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "description", "content", "url", "image_url", "thumbnail_url",
		"featured", "status", "user_id", "views_count", "likes_count", "metadata",
		"created_at", "updated_at", "published_at",
	})
}

func TestDirectoryRepositoryListItems(t *testing.T) {
	db, mock, cleanup := newDirectoryMock(t)
	defer cleanup()
	repo := NewDirectoryRepository(db)

	now := time.Now()
	rows := itemRows().
		AddRow("item-1", "First", "desc", nil, nil, nil, nil, true, "published", nil, 3, 1, []byte("{}"), now, now, &now)

	mock.ExpectQuery(`(?s)SELECT i\.id,.+FROM directory_items i WHERE 1=1 AND i\.status = \$1 AND i\.featured = \$2 ORDER BY i\.likes_count DESC LIMIT 10 OFFSET 0`).
		WithArgs("published", true).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM directory_items i WHERE 1=1 AND i\.status = \$1 AND i\.featured = \$2`).
		WithArgs("published", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	featured := true
	items, total, err := repo.ListItems(context.Background(), ItemQuery{
		Status:      "published",
		Featured:    &featured,
		OrderColumn: "likes_count",
		Limit:       10,
	})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 7, total)
	assert.Equal(t, "item-1", items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectoryRepositoryListItemsRejectsUnknownSort(t *testing.T) {
	db, mock, cleanup := newDirectoryMock(t)
	defer cleanup()
	repo := NewDirectoryRepository(db)

	mock.ExpectQuery(`(?s)SELECT i\.id,.+FROM directory_items i WHERE 1=1 ORDER BY i\.created_at DESC`).
		WillReturnRows(itemRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM directory_items i WHERE 1=1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.ListItems(context.Background(), ItemQuery{OrderColumn: "id; DROP TABLE directory_items"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectoryRepositorySearchItems(t *testing.T) {
	db, mock, cleanup := newDirectoryMock(t)
	defer cleanup()
	repo := NewDirectoryRepository(db)

	now := time.Now()
	rows := itemRows().
		AddRow("item-2", "Match", "desc", nil, nil, nil, nil, false, "published", nil, 0, 0, []byte("{}"), now, now, nil)

	mock.ExpectQuery(`(?s)SELECT i\.id,.+FROM directory_partial_search\(\$1\) i`).
		WithArgs("widgets").
		WillReturnRows(rows)

	items, err := repo.SearchItems(context.Background(), "widgets")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Match", items[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectoryRepositoryGroupJoinsEmptyInput(t *testing.T) {
	db, _, cleanup := newDirectoryMock(t)
	defer cleanup()
	repo := NewDirectoryRepository(db)

	rows, err := repo.GroupJoins(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestDirectoryRepositoryGroupJoins(t *testing.T) {
	db, mock, cleanup := newDirectoryMock(t)
	defer cleanup()
	repo := NewDirectoryRepository(db)

	name := "Tools"
	id := "grp-1"
	mock.ExpectQuery(`SELECT ig\.item_id, ig\.group_id, g\.id AS ref_id, g\.name AS ref_name`).
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "group_id", "ref_id", "ref_name"}).
			AddRow("item-1", "grp-1", &id, &name).
			AddRow("item-1", "grp-missing", nil, nil))

	rows, err := repo.GroupJoins(context.Background(), []string{"item-1"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Tools", *rows[0].RefName)
	assert.Nil(t, rows[1].RefID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectoryRepositoryFindByIDMissing(t *testing.T) {
	db, mock, cleanup := newDirectoryMock(t)
	defer cleanup()
	repo := NewDirectoryRepository(db)

	mock.ExpectQuery(`(?s)SELECT i\.id,.+FROM directory_items i WHERE i\.id = \$1`).
		WithArgs("nope").
		WillReturnRows(itemRows())

	item, err := repo.FindByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectoryRepositoryCreateItem(t *testing.T) {
	db, mock, cleanup := newDirectoryMock(t)
	defer cleanup()
	repo := NewDirectoryRepository(db)

	mock.ExpectQuery(`SELECT create_directory_item\(\$1, \$2, \$3\)`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"create_directory_item"}).AddRow("new-id"))

	id, err := repo.CreateItem(context.Background(), json.RawMessage(`{"title":"x"}`), []string{"g1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "new-id", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectoryRepositoryDeleteItemMissing(t *testing.T) {
	db, mock, cleanup := newDirectoryMock(t)
	defer cleanup()
	repo := NewDirectoryRepository(db)

	mock.ExpectExec(`DELETE FROM directory_items WHERE id = \$1`).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteItem(context.Background(), "gone")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectoryRepositoryListGroups(t *testing.T) {
	db, mock, cleanup := newDirectoryMock(t)
	defer cleanup()
	repo := NewDirectoryRepository(db)

	mock.ExpectQuery(`SELECT id, name FROM directory_groups ORDER BY name`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("g1", "AI").AddRow("g2", "Tools"))

	groups, err := repo.ListGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, models.DirectoryGroup{ID: "g1", Name: "AI"}, groups[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}
