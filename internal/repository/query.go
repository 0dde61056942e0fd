package repository

import (
	"fmt"
	"strings"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// conditions accumulates positional WHERE predicates.
type conditions struct {
	parts []string
	args  []interface{}
}

// add appends a predicate whose single placeholder is written as %d.
func (c *conditions) add(format string, arg interface{}) {
	c.args = append(c.args, arg)
	c.parts = append(c.parts, fmt.Sprintf(format, len(c.args)))
}

// addSearch appends a predicate that reuses one placeholder for several columns.
func (c *conditions) addSearch(term string, columns ...string) {
	c.args = append(c.args, "%"+strings.ToLower(term)+"%")
	idx := len(c.args)
	ors := make([]string, 0, len(columns))
	for _, col := range columns {
		ors = append(ors, fmt.Sprintf("LOWER(%s) LIKE $%d", col, idx))
	}
	c.parts = append(c.parts, "("+strings.Join(ors, " OR ")+")")
}

func (c *conditions) where() string {
	if len(c.parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.parts, " AND ")
}

func pageWindow(page, pageSize int) (limit, offset int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return pageSize, (page - 1) * pageSize
}

func sortClause(allowed map[string]string, sortBy, fallback, order, fallbackOrder string) string {
	column, ok := allowed[sortBy]
	if !ok {
		column = allowed[fallback]
	}
	order = strings.ToUpper(order)
	if order != "ASC" && order != "DESC" {
		order = fallbackOrder
	}
	return column + " " + order
}
