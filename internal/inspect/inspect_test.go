package inspect

import (
	"context"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestTestConnection(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(err)
	defer mock.Close()

	mock.ExpectQuery("SELECT version").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow("PostgreSQL 16.1 on x86_64"))
	mock.ExpectQuery("FROM information_schema.tables").
		WillReturnRows(pgxmock.NewRows([]string{"table_name", "table_schema", "row_count", "size"}).
			AddRow("users", "public", int64(42), int64(8192)).
			AddRow("orders", "public", int64(7), int64(4096)))
	mock.ExpectQuery("SELECT pg_database_size").
		WithArgs("appdb").
		WillReturnRows(pgxmock.NewRows([]string{"pg_database_size"}).AddRow(int64(123456)))

	info, err := TestConnection(ctx, mock, "appdb")
	require.NoError(err)
	require.Equal("PostgreSQL 16.1 on x86_64", info.Version)
	require.Len(info.Tables, 2)
	require.Equal("users", info.Tables[0].Name)
	require.EqualValues(42, info.Tables[0].RowCount)
	require.EqualValues(123456, info.TotalSize)
	require.NoError(mock.ExpectationsWereMet())
}

func TestStructure(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(err)
	defer mock.Close()

	mock.ExpectQuery("FROM pg_namespace").
		WillReturnRows(pgxmock.NewRows([]string{"schema_name", "table_count"}).
			AddRow("public", 5).
			AddRow("reporting", 2))
	mock.ExpectQuery("FROM information_schema.tables").
		WillReturnRows(pgxmock.NewRows([]string{"table_name", "table_schema", "row_count", "size"}).
			AddRow("users", "public", int64(42), int64(8192)))

	st, err := Structure(ctx, mock)
	require.NoError(err)
	require.Len(st.Schemas, 2)
	require.Equal("reporting", st.Schemas[1].Name)
	require.Equal(2, st.Schemas[1].TableCount)
	require.Len(st.Tables, 1)
	require.NoError(mock.ExpectationsWereMet())
}

func TestPrettyBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512 bytes"},
		{2048, "2.00 kB"},
		{3 * 1024 * 1024, "3.00 MB"},
	}
	for _, c := range cases {
		if got := PrettyBytes(c.in); got != c.want {
			t.Fatalf("PrettyBytes(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}
