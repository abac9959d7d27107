package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"log/slog"

	"github.com/garnizeh/resource/internal/db"
	"github.com/garnizeh/resource/pkg/repository"
)

// Repo implements the repository interfaces using the internal DB wrapper.
type Repo struct {
	conn   *db.DB
	logger *slog.Logger
}

// Ensure Repo implements the public interfaces.
var _ repository.EngineerRepo = (*Repo)(nil)
var _ repository.ProjectRepo = (*Repo)(nil)
var _ repository.AssignmentRepo = (*Repo)(nil)
var _ repository.TxRunner = (*Repo)(nil)

func New(conn *db.DB, logger *slog.Logger) *Repo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repo{conn: conn, logger: logger}
}

// dbtx is the querying surface shared by *sql.DB and *sql.Tx, so every query
// in this package runs the same whether or not it is inside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// txView exposes the tx-scoped store operations over one open transaction.
type txView struct {
	tx *sql.Tx
}

var _ repository.Tx = (*txView)(nil)

// InTx runs fn inside a single SQLite transaction. fn returning nil commits;
// any error (or a failed commit) leaves the database untouched.
func (r *Repo) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&txView{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}

func marshalStrings(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

func unmarshalStrings(s string) []string {
	if s == "" {
		return []string{}
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return []string{}
	}
	return out
}
