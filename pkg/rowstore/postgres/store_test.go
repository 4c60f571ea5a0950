package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/record-versions/pkg/rowstore"
)

const testTable = "tl_news"

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func TestGet_Row(t *testing.T) {
	store, mock := newTestStore(t)
	uuid := []byte{0x9e, 0x47, 0x4c, 0x15, 0x19, 0x5e, 0x11, 0xe6, 0x88, 0x2f, 0x3c, 0x97, 0x0e, 0x02, 0x41, 0x38}

	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("INT8", int64(0)),
		sqlmock.NewColumn("headline").OfType("TEXT", ""),
		sqlmock.NewColumn("singleSRC").OfType("BYTEA", []byte{}),
	).AddRow(int64(4), []byte("Hello"), uuid)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "tl_news" WHERE id = $1`)).
		WithArgs(int64(4)).
		WillReturnRows(rows)

	row, err := store.Get(context.Background(), testTable, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), row["id"])
	assert.Equal(t, "Hello", row["headline"])
	assert.Equal(t, uuid, row["singleSRC"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NoRow(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT \* FROM "tl_news"`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	row, err := store.Get(context.Background(), testTable, 9)
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_MissingTable(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT \* FROM "tl_gone"`).
		WillReturnError(&pq.Error{Code: pgUndefinedTable})

	_, err := store.Get(context.Background(), "tl_gone", 1)
	assert.ErrorIs(t, err, rowstore.ErrTableNotFound)
}

func TestGet_InvalidIdentifier(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), `tl_news"; DROP TABLE x; --`, 1)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestSet(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "tl_news" SET "headline" = $1, "tags" = $2, "tstamp" = $3 WHERE id = $4`)).
		WithArgs("B", `["a","b"]`, 200, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Set(context.Background(), testTable, 4, map[string]any{
		"id":       int64(77),
		"tstamp":   200,
		"headline": "B",
		"tags":     []any{"a", "b"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSet_NothingToWrite(t *testing.T) {
	store, mock := newTestStore(t)

	require.NoError(t, store.Set(context.Background(), testTable, 4, map[string]any{"id": 4}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSet_InvalidColumn(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.Set(context.Background(), testTable, 4, map[string]any{"bad column": 1})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestSet_DBError(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`UPDATE "tl_news"`).WillReturnError(errors.New("db error"))

	err := store.Set(context.Background(), testTable, 4, map[string]any{"headline": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "updating row tl_news.4")
}

func TestColumns(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT column_name, data_type, is_nullable FROM information_schema.columns`)).
		WithArgs(testTable).
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"}).
			AddRow("id", "bigint", "NO").
			AddRow("hits", "integer", "NO").
			AddRow("headline", "character varying", "NO").
			AddRow("teaser", "text", "YES"))

	cols, err := store.Columns(context.Background(), testTable)
	require.NoError(t, err)
	assert.Equal(t, []rowstore.Column{
		{Name: "id", DataType: "bigint"},
		{Name: "hits", DataType: "integer"},
		{Name: "headline", DataType: "character varying"},
		{Name: "teaser", DataType: "text", Nullable: true},
	}, cols)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestColumns_MissingTable(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT column_name, data_type, is_nullable FROM information_schema.columns`)).
		WithArgs("tl_gone").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable"}))

	_, err := store.Columns(context.Background(), "tl_gone")
	assert.ErrorIs(t, err, rowstore.ErrTableNotFound)
}

func TestExists(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  bool
	}{
		{"present", 1, true},
		{"absent", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newTestStore(t)
			mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "tl_news" WHERE id = $1`)).
				WithArgs(int64(4)).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(tt.count))

			got, err := store.Exists(context.Background(), testTable, 4)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExists_MissingTable(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "tl_gone"`).
		WillReturnError(&pq.Error{Code: pgUndefinedTable})

	_, err := store.Exists(context.Background(), "tl_gone", 1)
	assert.ErrorIs(t, err, rowstore.ErrTableNotFound)
}

func TestValidIdent(t *testing.T) {
	for _, name := range []string{"tl_news", "_x", "Field1"} {
		assert.True(t, validIdent(name), name)
	}
	for _, name := range []string{"", "1abc", "a-b", "a b", `a"b`} {
		assert.False(t, validIdent(name), name)
	}
}
