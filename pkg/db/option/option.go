package option

import (
	"fmt"
	"strings"
	"time"

	"rez-rewards-core/pkg/db/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates a gorm query before execution.
type QueryOption func(tx *gorm.DB) *gorm.DB

type Operator string

const (
	EQ  Operator = "="
	NE  Operator = "<>"
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

type Condition struct {
	Field    string
	Operator Operator
	Value    interface{}
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

// WithSortBy orders the result set. SortBy falls back to created_at and is
// checked against the Allow list so callers cannot inject arbitrary columns.
func WithSortBy(sort QuerySortBy) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		column := sort.SortBy
		if column == "" {
			column = "created_at"
		}

		if sort.Allow != nil && !sort.Allow[column] {
			column = "created_at"
		}

		direction := "ASC"
		if strings.EqualFold(sort.OrderBy, "desc") {
			direction = "DESC"
		}

		return tx.Order(fmt.Sprintf("%s %s", column, direction))
	}
}

// ApplyOperator adds a comparison predicate, e.g. remaining > 0.
func ApplyOperator(cond Condition) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Where(fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), cond.Value)
	}
}

// ApplyPagination applies cursor pagination over the named sort column. One
// extra row is fetched so the caller can detect whether more pages exist.
// Timestamp cursors are bound as time values so the comparison follows the
// driver's own encoding.
func ApplyPagination(p pagination.Pagination, column string) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		limit := p.Limit
		if limit <= 0 {
			limit = 10
		}
		tx = tx.Limit(limit + 1)

		if p.Cursor == "" {
			return tx
		}

		cursor, err := pagination.DecodeCursor(p.Cursor)
		if err != nil || cursor == nil || cursor.SortValue == "" {
			return tx
		}

		var boundary interface{} = cursor.SortValue
		if ts, perr := time.Parse(time.RFC3339Nano, cursor.SortValue); perr == nil {
			boundary = ts
		}

		cond := fmt.Sprintf("(%s < ? OR (%s = ? AND id < ?))", column, column)
		return tx.Where(cond, boundary, boundary, cursor.ID)
	}
}

// WithLockingUpdate applies LockingUpdate as a per-query option.
func WithLockingUpdate() QueryOption {
	return LockingUpdate
}

// LockingUpdate adds SELECT ... FOR UPDATE. SQLite has no row locks and
// serialises writers anyway, so the clause is skipped there.
func LockingUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector != nil && tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
