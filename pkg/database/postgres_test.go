package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agro-trader/pkg/logging"
	"agro-trader/pkg/metrics"
)

func newMockDB(t *testing.T) (*PostgresDB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)

	db := NewPostgresDBFromConn(
		sqlx.NewDb(conn, "postgres"),
		&Config{Database: "agro_test"},
		logging.NewNop(),
		metrics.NewCollector("agro_test", prometheus.NewRegistry()),
	)
	return db, mock
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{Host: "db", Port: 5432, User: "agro", Password: "secret", Database: "agro", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=agro password=secret dbname=agro sslmode=disable", cfg.DSN())
}

func TestMigrate_Up(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS location_cache")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.Migrate(context.Background(), "up"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_Down(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS route_cache")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.Migrate(context.Background(), "down"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_UnknownDirection(t *testing.T) {
	db, _ := newMockDB(t)
	assert.Error(t, db.Migrate(context.Background(), "sideways"))
}

func TestMigrate_ExecFailure(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))

	err := db.Migrate(context.Background(), "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestClose_Idempotent(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectClose()

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
