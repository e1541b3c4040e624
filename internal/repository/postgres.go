// Package repository implements the domain repositories on PostgreSQL.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/takeaway/db"
)

// NewPool creates a pgxpool.Pool configured with shopspring/decimal support
// for NUMERIC columns.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the embedded DDL schema against the pool.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, db.Schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

const codeUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// predicates accumulates WHERE conditions with positional arguments.
type predicates struct {
	conds []string
	args  []any
}

// add appends a condition. Each "?" in cond is replaced with the next
// positional placeholder.
func (p *predicates) add(cond string, args ...any) {
	for _, a := range args {
		p.args = append(p.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(p.args)), 1)
	}
	p.conds = append(p.conds, cond)
}

func (p *predicates) where() string {
	if len(p.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(p.conds, " AND ")
}

// assignments accumulates SET clauses for partial updates.
type assignments struct {
	sets []string
	args []any
}

func (a *assignments) set(column string, v any) {
	a.args = append(a.args, v)
	a.sets = append(a.sets, fmt.Sprintf("%s = $%d", column, len(a.args)))
}

// arg registers an argument that is not a SET column and returns its placeholder.
func (a *assignments) arg(v any) string {
	a.args = append(a.args, v)
	return fmt.Sprintf("$%d", len(a.args))
}

func (a *assignments) empty() bool { return len(a.sets) == 0 }

func (a *assignments) clause() string { return strings.Join(a.sets, ", ") }
