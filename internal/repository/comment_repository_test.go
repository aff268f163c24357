package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var commentRows = []string{
	"id", "item_id", "content", "created_at",
	"author_id", "author_email", "author_full_name", "author_avatar_url",
}

func TestCommentRepositoryListByItem(t *testing.T) {
	db, mock, cleanup := newDirectoryMock(t)
	defer cleanup()
	repo := NewCommentRepository(db)

	// The author join must address profiles by its primary key column.
	mock.ExpectQuery(`SELECT c\.id, c\.item_id, c\.content, c\.created_at,\s+p\.profile_id AS author_id, p\.email AS author_email, p\.full_name AS author_full_name, p\.avatar_url AS author_avatar_url\s+FROM directory_comments c\s+JOIN profiles p ON p\.profile_id = c\.user_id\s+WHERE c\.item_id = \$1`).
		WithArgs("item-1").
		WillReturnRows(sqlmock.NewRows(commentRows).
			AddRow("comment-1", "item-1", "great resource", time.Now(), "user-1", "user-1@example.com", nil, nil))

	comments, err := repo.ListByItem(context.Background(), "item-1")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "comment-1", comments[0].ID)
	assert.Equal(t, "user-1", comments[0].CommentAuthor.ID)
	assert.Equal(t, "user-1@example.com", comments[0].CommentAuthor.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepositoryAdd(t *testing.T) {
	db, mock, cleanup := newDirectoryMock(t)
	defer cleanup()
	repo := NewCommentRepository(db)

	mock.ExpectQuery(`INSERT INTO directory_comments \(item_id, user_id, content\)`).
		WithArgs("item-1", "user-1", "nice find").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("comment-2"))
	mock.ExpectQuery(`JOIN profiles p ON p\.profile_id = c\.user_id\s+WHERE c\.id = \$1`).
		WithArgs("comment-2").
		WillReturnRows(sqlmock.NewRows(commentRows).
			AddRow("comment-2", "item-1", "nice find", time.Now(), "user-1", "user-1@example.com", nil, nil))

	comment, err := repo.Add(context.Background(), "item-1", "user-1", "nice find")
	require.NoError(t, err)
	assert.Equal(t, "comment-2", comment.ID)
	assert.Equal(t, "user-1", comment.CommentAuthor.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommentRepositoryDeleteOwnership(t *testing.T) {
	db, mock, cleanup := newDirectoryMock(t)
	defer cleanup()
	repo := NewCommentRepository(db)

	mock.ExpectExec(`DELETE FROM directory_comments WHERE id = \$1 AND user_id = \$2`).
		WithArgs("comment-1", "user-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := repo.Delete(context.Background(), "comment-1", "user-2")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
