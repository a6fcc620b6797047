package store

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound replaces pgx.ErrNoRows so callers never depend on the
	// driver.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when an insert or update trips a unique
	// constraint, including the slot-exclusivity index on appointments.
	ErrDuplicate = errors.New("duplicate record")
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// wrap maps driver errors onto the store sentinels.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
