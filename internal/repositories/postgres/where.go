package postgres

import (
	"fmt"
	"strings"
)

// where accumulates AND-ed predicates with numbered placeholders.
type where struct {
	clauses []string
	args    []any
}

// bind appends value to the argument list and returns its placeholder.
func (w *where) bind(value any) string {
	w.args = append(w.args, value)
	return fmt.Sprintf("$%d", len(w.args))
}

// add formats clause with one placeholder per value.
func (w *where) add(clause string, values ...any) {
	placeholders := make([]any, 0, len(values))
	for _, v := range values {
		placeholders = append(placeholders, w.bind(v))
	}
	w.clauses = append(w.clauses, fmt.Sprintf(clause, placeholders...))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}
