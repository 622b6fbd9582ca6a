package migrate

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	src := `
-- leading comment; with a semicolon
create table t (v text default 'a;b');
insert into t values ('it''s; fine');
create function f() returns trigger as $$
begin
    raise exception 'nope; really';
end;
$$ language plpgsql;
create function g() returns int as $body$ select 1; $body$ language sql;
select $1::int;
;
`
	stmts := splitStatements(src)
	require.Len(t, stmts, 5)
	assert.Equal(t, "create table t (v text default 'a;b')", stmts[0])
	assert.Equal(t, "insert into t values ('it''s; fine')", stmts[1])
	assert.Contains(t, stmts[2], "raise exception 'nope; really';\nend;\n$$ language plpgsql")
	assert.Equal(t, "create function g() returns int as $body$ select 1; $body$ language sql", stmts[3])
	assert.Equal(t, "select $1::int", stmts[4])
}

func TestSplitStatementsNoTrailingSemicolon(t *testing.T) {
	assert.Equal(t, []string{"select 1", "select 2"}, splitStatements("select 1;\nselect 2 -- tail"))
	assert.Empty(t, splitStatements("  -- only a comment"))
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"sql/0001_init.up.sql":    {Data: []byte("create table a (id int);\ncreate table b (id int);")},
		"sql/0001_init.down.sql":  {Data: []byte("drop table b;\ndrop table a;")},
		"sql/0002_more.up.sql":    {Data: []byte("alter table a add column v text;")},
		"sql/0002_more.down.sql":  {Data: []byte("alter table a drop column v;")},
		"seeds/0001_profiles.sql": {Data: []byte("insert into a values (1);")},
		"seeds/README.md":         {Data: []byte("not sql")},
	}
}

func expectEnsureTables(mock sqlmock.Sqlmock) {
	mock.ExpectExec("create table if not exists schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table if not exists schema_seeds").WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestUpAppliesPendingInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectEnsureTables(mock)
	mock.ExpectQuery("select name from schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_init.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("alter table a add column v text").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec("insert into schema_migrations").
		WithArgs("0002_more.up.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	applied, err := NewManager(db, testFS()).Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_more.up.sql"}, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpRollsBackFailedFile(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectEnsureTables(mock)
	mock.ExpectQuery("select name from schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectBegin()
	mock.ExpectExec("create table a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table b").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	applied, err := NewManager(db, testFS()).Up(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001_init.up.sql")
	assert.Empty(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDownRevertsLatest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectEnsureTables(mock)
	mock.ExpectQuery("select name from schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_init.up.sql").AddRow("0002_more.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("alter table a drop column v").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(`delete from schema_migrations where name = \$1`).
		WithArgs("0002_more.up.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))

	name, err := NewManager(db, testFS()).Down(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0002_more.up.sql", name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDownWithoutHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectEnsureTables(mock)
	mock.ExpectQuery("select name from schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"name"}))

	_, err = NewManager(db, testFS()).Down(context.Background())
	assert.EqualError(t, err, "no migrations applied")
}

func TestSeedSkipsNonSQLAndApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectEnsureTables(mock)
	mock.ExpectQuery("select name from schema_seeds").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_profiles.sql"))

	applied, err := NewManager(db, testFS()).Seed(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCollectSQLMissingDir(t *testing.T) {
	files, err := collectSQL(fstest.MapFS{}, "sql", ".up.sql")
	require.NoError(t, err)
	assert.Empty(t, files)

	files, err = collectSQL(testFS(), "sql", ".up.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.up.sql", "0002_more.up.sql"}, files)
}
