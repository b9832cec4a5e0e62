package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/desertthunder/catalogd/internal/shared"
)

// Column is one expected column as PRAGMA table_info reports it.
type Column struct {
	Name    string
	Type    string
	NotNull bool
}

// Table is the expected column list of one table, in declaration order.
type Table struct {
	Name    string
	Columns []Column
}

type rowsQueryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Validate compares the live tables of db with layout.
//
// Column count, names, declared types (case-insensitive) and NOT NULL must match. Tables missing from layout are
// not inspected. The first mismatch is returned as a [shared.SchemaDriftError] tagged with version.
func Validate(ctx context.Context, db rowsQueryer, version int, layout []Table) error {
	for _, table := range layout {
		live, err := tableColumns(ctx, db, table.Name)
		if err != nil {
			return shared.Storage("inspect "+table.Name, err)
		}
		if reason := compareColumns(table.Columns, live); reason != "" {
			return &shared.SchemaDriftError{Version: version, Table: table.Name, Reason: reason}
		}
	}
	return nil
}

func compareColumns(want, got []Column) string {
	if len(got) == 0 {
		return "table is missing"
	}
	if len(got) != len(want) {
		return fmt.Sprintf("has %d columns, want %d", len(got), len(want))
	}
	for i, w := range want {
		g := got[i]
		switch {
		case g.Name != w.Name:
			return fmt.Sprintf("column %d is %s, want %s", i, g.Name, w.Name)
		case !strings.EqualFold(g.Type, w.Type):
			return fmt.Sprintf("column %s has type %q, want %q", w.Name, g.Type, w.Type)
		case g.NotNull != w.NotNull:
			return fmt.Sprintf("column %s not null is %t, want %t", w.Name, g.NotNull, w.NotNull)
		}
	}
	return ""
}

// tableColumns lists the columns of table in declaration order. A missing table has none.
func tableColumns(ctx context.Context, db rowsQueryer, table string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, "SELECT name, type, \"notnull\" FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var (
			c       Column
			notNull int
		)
		if err := rows.Scan(&c.Name, &c.Type, &notNull); err != nil {
			return nil, err
		}
		c.NotNull = notNull != 0
		columns = append(columns, c)
	}
	return columns, rows.Err()
}
