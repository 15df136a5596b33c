package database

import (
	"context"
	"database/sql"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
)

// Querier is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx that repositories rely on.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
}

type DB interface {
	Querier
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	PingContext(ctx context.Context) error
	Close() error
	// GetTx returns the transaction carried by ctx, or begins a new one and stores it on the returned ctx.
	GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, Tx, error)
	// Conn returns the open transaction on ctx when there is one, the pool otherwise.
	Conn(ctx context.Context) Querier
}

type DatabaseInstance struct {
	*sqlx.DB
	logger ectologger.Logger
}

func NewDatabaseInstance(db *sqlx.DB, logger ectologger.Logger) DB {
	return &DatabaseInstance{
		DB:     db,
		logger: logger,
	}
}

func (db *DatabaseInstance) GetTx(ctx context.Context, opts *sql.TxOptions) (context.Context, Tx, error) {
	return GetTx(ctx, db.logger, db.DB, opts)
}

func (db *DatabaseInstance) Conn(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey).(*Transaction); ok && tx.IsOpen() {
		return tx
	}
	return db.DB
}

// Open connects to postgres and verifies the connection.
func Open(ctx context.Context, dsn string, logger ectologger.Logger) (DB, *sqlx.DB, error) {
	conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		logger.WithContext(ctx).WithError(err).Error("failed to connect to database")
		return nil, nil, err
	}
	return NewDatabaseInstance(conn, logger), conn, nil
}
