package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConditionsNumberPlaceholders(t *testing.T) {
	var conds conditions
	assert.Equal(t, "", conds.where())

	conds.add("status = $%d", "Active")
	conds.addSearch("Salsa", "name", "style")
	conds.add("level = $%d", "Beginner")

	assert.Equal(t, " WHERE status = $1 AND (LOWER(name) LIKE $2 OR LOWER(style) LIKE $2) AND level = $3", conds.where())
	assert.Equal(t, []interface{}{"Active", "%salsa%", "Beginner"}, conds.args)
}

func TestPageWindow(t *testing.T) {
	limit, offset := pageWindow(0, 0)
	assert.Equal(t, defaultPageSize, limit)
	assert.Equal(t, 0, offset)

	limit, offset = pageWindow(3, 15)
	assert.Equal(t, 15, limit)
	assert.Equal(t, 30, offset)

	limit, _ = pageWindow(1, maxPageSize+1)
	assert.Equal(t, defaultPageSize, limit)
}

func TestSortClauseFallsBack(t *testing.T) {
	allowed := map[string]string{"name": "c.name", "created_at": "c.created_at"}
	assert.Equal(t, "c.name ASC", sortClause(allowed, "name", "created_at", "asc", "DESC"))
	assert.Equal(t, "c.created_at DESC", sortClause(allowed, "drop table", "created_at", "sideways", "DESC"))
}
