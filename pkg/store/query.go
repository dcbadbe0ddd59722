package store

import (
	sq "github.com/Masterminds/squirrel"
)

// psql is the squirrel statement builder configured for Postgres'
// dollar-sign placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Select starts a new SELECT query.
func Select(columns ...string) sq.SelectBuilder {
	return psql.Select(columns...)
}

// Insert starts a new INSERT query.
func Insert(table string) sq.InsertBuilder {
	return psql.Insert(table)
}

// Update starts a new UPDATE query.
func Update(table string) sq.UpdateBuilder {
	return psql.Update(table)
}

// Delete starts a new DELETE query.
func Delete(table string) sq.DeleteBuilder {
	return psql.Delete(table)
}
