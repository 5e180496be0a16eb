package repositories

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/turtacn/ChemSight/pkg/errors"
)

// queryExecutor abstracts sql.DB and sql.Tx
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner abstracts sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func toJSONB(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode jsonb column")
	}
	return b, nil
}

func fromJSONB(b []byte, dest interface{}) error {
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode jsonb column")
	}
	return nil
}
