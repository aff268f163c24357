package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteractionRepositoryToggleLikeOn(t *testing.T) {
	db, mock, cleanup := newDirectoryMock(t)
	defer cleanup()
	repo := NewInteractionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM directory_user_interactions`).
		WithArgs("user-1", "item-1", "like").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO directory_user_interactions`).
		WithArgs("user-1", "item-1", "like").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`SELECT increment_likes_count\(\$1\)`).
		WithArgs("item-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	liked, err := repo.ToggleLike(context.Background(), "user-1", "item-1")
	require.NoError(t, err)
	assert.True(t, liked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionRepositoryToggleLikeOff(t *testing.T) {
	db, mock, cleanup := newDirectoryMock(t)
	defer cleanup()
	repo := NewInteractionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM directory_user_interactions`).
		WithArgs("user-1", "item-1", "like").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("like-row"))
	mock.ExpectExec(`DELETE FROM directory_user_interactions WHERE id = \$1`).
		WithArgs("like-row").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SELECT decrement_likes_count\(\$1\)`).
		WithArgs("item-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	liked, err := repo.ToggleLike(context.Background(), "user-1", "item-1")
	require.NoError(t, err)
	assert.False(t, liked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionRepositoryToggleLikeCounterFailureRollsBack(t *testing.T) {
	db, mock, cleanup := newDirectoryMock(t)
	defer cleanup()
	repo := NewInteractionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM directory_user_interactions`).
		WithArgs("user-1", "item-1", "like").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO directory_user_interactions`).
		WithArgs("user-1", "item-1", "like").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`SELECT increment_likes_count\(\$1\)`).
		WithArgs("item-1").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.ToggleLike(context.Background(), "user-1", "item-1")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionRepositoryRecordViewDeduped(t *testing.T) {
	db, mock, cleanup := newDirectoryMock(t)
	defer cleanup()
	repo := NewInteractionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM directory_user_interactions`).
		WithArgs("user-1", "item-1", "view", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.RecordView(context.Background(), "user-1", "item-1", 24*time.Hour)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionRepositoryRecordViewAnonymous(t *testing.T) {
	db, mock, cleanup := newDirectoryMock(t)
	defer cleanup()
	repo := NewInteractionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT increment_views_count\(\$1\)`).
		WithArgs("item-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.RecordView(context.Background(), "", "item-1", 24*time.Hour)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractionRepositoryUserItemStates(t *testing.T) {
	db, mock, cleanup := newDirectoryMock(t)
	defer cleanup()
	repo := NewInteractionRepository(db)

	mock.ExpectQuery(`SELECT item_id, interaction_type FROM directory_user_interactions`).
		WithArgs("user-1", "item-1", "item-2").
		WillReturnRows(sqlmock.NewRows([]string{"item_id", "interaction_type"}).
			AddRow("item-1", "like").
			AddRow("item-1", "save"))

	states, err := repo.UserItemStates(context.Background(), "user-1", []string{"item-1", "item-2"})
	require.NoError(t, err)
	assert.Len(t, states["item-1"], 2)
	assert.Empty(t, states["item-2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
