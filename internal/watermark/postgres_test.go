package watermark

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return newPostgresStoreFromDB(db, nil), mock
}

var (
	selectCursor = regexp.QuoteMeta("SELECT cursor_ns FROM poller_cursors WHERE poller_id = $1")
	upsertCursor = `INSERT INTO poller_cursors .* ON CONFLICT \(poller_id\) DO UPDATE SET\s+cursor_ns\s+= GREATEST\(poller_cursors.cursor_ns, EXCLUDED.cursor_ns\)`
)

func TestPostgresStore_GetAbsent(t *testing.T) {
	t.Parallel()
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery(selectCursor).WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"cursor_ns"}))

	_, ok, err := store.Get(context.Background(), "orders")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresStore_GetCommitted(t *testing.T) {
	t.Parallel()
	store, mock := newMockPostgresStore(t)

	cursor := time.Date(2024, 1, 1, 0, 15, 0, 123456789, time.UTC)
	mock.ExpectQuery(selectCursor).WithArgs("orders").
		WillReturnRows(sqlmock.NewRows([]string{"cursor_ns"}).AddRow(cursor.UnixNano()))

	got, ok, err := store.Get(context.Background(), "orders")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Equal(cursor))
	assert.Equal(t, time.UTC, got.Location())
}

func TestPostgresStore_SetUsesMonotonicUpsert(t *testing.T) {
	t.Parallel()
	store, mock := newMockPostgresStore(t)

	loc := time.FixedZone("UTC+2", 2*60*60)
	cursor := time.Date(2024, 1, 1, 2, 15, 0, 0, loc)
	mock.ExpectExec(upsertCursor).WithArgs("orders", cursor.UnixNano()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Set(context.Background(), "orders", cursor))
}

func TestPostgresStore_WrapsErrors(t *testing.T) {
	t.Parallel()
	store, mock := newMockPostgresStore(t)
	ctx := context.Background()
	cause := errors.New("connection reset by peer")

	mock.ExpectQuery(selectCursor).WithArgs("orders").WillReturnError(cause)
	_, _, err := store.Get(ctx, "orders")
	require.ErrorIs(t, err, ErrStoreFailure)
	require.ErrorIs(t, err, cause)

	mock.ExpectExec(upsertCursor).WillReturnError(cause)
	err = store.Set(ctx, "orders", time.Now())
	require.ErrorIs(t, err, ErrStoreFailure)
	require.ErrorIs(t, err, cause)
}

func TestPostgresStore_EmptyPollerID(t *testing.T) {
	t.Parallel()
	store, _ := newMockPostgresStore(t)

	require.ErrorIs(t, store.Set(context.Background(), "", time.Now()), ErrEmptyPollerID)
	_, _, err := store.Get(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyPollerID)
}
