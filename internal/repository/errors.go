package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	apperrors "github.com/welldanyogia/webrana-mailcore/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Common repository errors
var (
	ErrNotFound       = apperrors.ErrNotFound
	ErrDuplicateEntry = apperrors.ErrDuplicateEntry
	ErrInvalidInput   = apperrors.ErrInvalidInput
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const pgUniqueViolation = "23505"

// isDuplicateKeyError checks if the error is a duplicate key violation.
// Connections opened with TranslateError report gorm.ErrDuplicatedKey.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// forUpdate adds a row lock on dialects that support SELECT ... FOR UPDATE.
// SQLite serializes writers on its own.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

// chunk splits ids into slices of at most size elements
func chunk(ids []uint, size int) [][]uint {
	if len(ids) == 0 {
		return nil
	}
	var out [][]uint
	for len(ids) > size {
		out = append(out, ids[:size])
		ids = ids[size:]
	}
	return append(out, ids)
}

// maxInParams keeps IN lists below the SQLite bound variable limit
const maxInParams = 500
