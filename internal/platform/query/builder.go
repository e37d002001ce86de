// Package query builds parameterized SQL for filtered, sorted, paginated
// reads over large tables. It produces matching COUNT and data queries from
// one set of WHERE fragments, and keyset predicates for cursor pagination.
package query

import (
	"fmt"
	"strings"
)

// Builder accumulates WHERE clause fragments with numbered placeholder
// arguments and renders count/data SQL that share the same filter.
type Builder struct {
	table   string
	cols    string
	where   string
	args    []interface{}
	idx     int
	orderBy string
}

// NewBuilder creates a Builder for the given table and column list.
func NewBuilder(table, cols string) *Builder {
	return &Builder{
		table: table,
		cols:  cols,
		idx:   1,
	}
}

// Idx returns the next available placeholder index. Clauses passed to Add
// must number their placeholders starting from this value.
func (b *Builder) Idx() int { return b.idx }

// Add appends a WHERE clause fragment (without leading "AND").
func (b *Builder) Add(clause string, args ...interface{}) {
	b.where += " AND " + clause
	b.args = append(b.args, args...)
	b.idx += len(args)
}

// OrderBy sets the ORDER BY clause (without the "ORDER BY" keyword).
func (b *Builder) OrderBy(orderBy string) {
	b.orderBy = orderBy
}

// CountSQL returns the count query SQL under the accumulated filter.
func (b *Builder) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", b.table, b.where)
}

// CountArgs returns the arguments for the count query.
func (b *Builder) CountArgs() []interface{} {
	return b.args
}

// PageSQL returns the data query with ORDER BY and LIMIT/OFFSET placeholders.
func (b *Builder) PageSQL() string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", b.cols, b.table, b.where)
	if b.orderBy != "" {
		sql += " ORDER BY " + b.orderBy
	}
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", b.idx, b.idx+1)
	return sql
}

// PageArgs returns the arguments for PageSQL (filter args + limit + offset).
func (b *Builder) PageArgs(limit, offset int) []interface{} {
	result := make([]interface{}, len(b.args)+2)
	copy(result, b.args)
	result[len(b.args)] = limit
	result[len(b.args)+1] = offset
	return result
}

// LimitSQL returns the data query with ORDER BY and a LIMIT placeholder only,
// for keyset (cursor) pagination.
func (b *Builder) LimitSQL() string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", b.cols, b.table, b.where)
	if b.orderBy != "" {
		sql += " ORDER BY " + b.orderBy
	}
	sql += fmt.Sprintf(" LIMIT $%d", b.idx)
	return sql
}

// LimitArgs returns the arguments for LimitSQL (filter args + limit).
func (b *Builder) LimitArgs(limit int) []interface{} {
	result := make([]interface{}, len(b.args)+1)
	copy(result, b.args)
	result[len(b.args)] = limit
	return result
}

// KeysetPredicate renders the row-value comparison that resumes a keyset walk
// after the cursor position. For a descending (dateCol, idCol) order it is
//
//	(dateCol, idCol) < ($i, $i+1)
//
// and the symmetric > for ascending, so every page boundary is a value
// actually seen rather than a drifting numeric offset. The caller binds the
// cursor's date and id as the two arguments.
func KeysetPredicate(dateCol, idCol string, descending bool, startIdx int) string {
	op := ">"
	if descending {
		op = "<"
	}
	return fmt.Sprintf("(%s, %s) %s ($%d, $%d)", dateCol, idCol, op, startIdx, startIdx+1)
}

// KeysetOrder renders the ORDER BY for a keyset walk over (dateCol, idCol).
func KeysetOrder(dateCol, idCol string, descending bool) string {
	dir := "ASC"
	if descending {
		dir = "DESC"
	}
	return fmt.Sprintf("%s %s, %s %s", dateCol, dir, idCol, dir)
}

// FullTextClause renders a Postgres full-text predicate over the given text
// column. The caller binds the raw user query as the single argument;
// plainto_tsquery performs its own tokenization, so no escaping is needed.
func FullTextClause(column string, startIdx int) string {
	return fmt.Sprintf("to_tsvector('english', %s) @@ plainto_tsquery('english', $%d)", column, startIdx)
}

// ArrayOverlapClause renders an ANY-of-codes predicate across two array
// columns: true when the bound string slice shares at least one element with
// either column.
func ArrayOverlapClause(colA, colB string, startIdx int) string {
	return fmt.Sprintf("(%s && $%d OR %s && $%d)", colA, startIdx, colB, startIdx)
}

// SanitizeOrderColumn returns the column unchanged when it consists solely of
// identifier characters, and the fallback otherwise. Defense in depth: sort
// columns must come from a whitelist before reaching SQL text.
func SanitizeOrderColumn(col, fallback string) string {
	if col == "" {
		return fallback
	}
	for _, r := range col {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return fallback
		}
	}
	return col
}

// JoinOrder combines column/direction pairs into an ORDER BY expression.
func JoinOrder(parts ...string) string {
	return strings.Join(parts, ", ")
}
