package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestUniqueViolation(t *testing.T) {
	name, ok := uniqueViolation(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	require.True(t, ok)
	require.Equal(t, "users_email_key", name)

	_, ok = uniqueViolation(&pgconn.PgError{Code: "23503"})
	require.False(t, ok)

	_, ok = uniqueViolation(errors.New("boom"))
	require.False(t, ok)

	_, ok = uniqueViolation(nil)
	require.False(t, ok)
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `50\% off\_now\\`, escapeLike(`50% off_now\`))
	require.Equal(t, "plain", escapeLike("plain"))
}
