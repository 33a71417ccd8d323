package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesargomez89/adfreecast/internal/domain"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return Wrap(sqlx.NewDb(mockDB, "sqlmock")), mock
}

func TestEnqueue_RollsBackWhenQueueInsertFails(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM episodes WHERE id = ?`)).
		WithArgs("ep").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO processing_records`)).
		WithArgs("ep", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO queue`)).
		WithArgs("ep", 3, sqlmock.AnyArg()).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := db.Enqueue(context.Background(), "ep", 3, false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert queue row for ep")
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueue_RetryResetRunsFirst(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM episodes WHERE id = ?`)).
		WithArgs("ep").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`UPDATE processing_records\s+SET status = 'queued', error = NULL`).
		WithArgs(sqlmock.AnyArg(), "ep").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO processing_records`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO queue`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, db.Enqueue(context.Background(), "ep", 0, true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnqueue_UnknownEpisodeWritesNothing(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM episodes WHERE id = ?`)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	err := db.Enqueue(context.Background(), "ghost", 0, true)

	assert.ErrorIs(t, err, ErrEpisodeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDequeueBatch_WrapsQueryError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`FROM queue q`).
		WithArgs(2).
		WillReturnError(errors.New("database is locked"))

	entries, err := db.DequeueBatch(context.Background(), 2)

	assert.Nil(t, entries)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dequeue batch")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetStuckProcessing_ReturnsRowsAffected(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE processing_records SET status = 'queued', started_at = NULL WHERE status = 'processing'`)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := db.ResetStuckProcessing(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetStatus_ValidationFailsBeforeTouchingDB(t *testing.T) {
	db, mock := newMockDB(t)

	err := db.SetStatus(context.Background(), "ep", domain.MarkFailed("  "))

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
