package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewDatabaseInstance(sqlx.NewDb(conn, "postgres"), logger), mock
}

func TestGetTx_JoinsOpenTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	ctx, owner, err := db.GetTx(context.Background(), nil)
	require.NoError(t, err)

	innerCtx, inner, err := db.GetTx(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, ctx, innerCtx)

	// the joined handle must not end the owner's transaction
	require.NoError(t, inner.Rollback(innerCtx))
	assert.True(t, owner.IsOpen())

	require.NoError(t, owner.Commit(ctx))
	assert.False(t, owner.IsOpen())
	require.NoError(t, owner.Rollback(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConn_UsesTransactionFromContext(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.IsType(t, &sqlx.DB{}, db.Conn(context.Background()))

	ctx, tx, err := db.GetTx(context.Background(), nil)
	require.NoError(t, err)
	assert.IsType(t, &Transaction{}, db.Conn(ctx))

	require.NoError(t, tx.Rollback(ctx))
	assert.IsType(t, &sqlx.DB{}, db.Conn(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}
