package repository

import (
	"fmt"
	"strings"

	"github.com/jmehdipour/billing-sandbox/internal/db"
)

type Kind int

const (
	String Kind = iota
	Int
	BigInt
	Bool
)

type Column struct {
	Name     string
	Kind     Kind
	Nullable bool // only enforced where the engine distinguishes, i.e. ClickHouse
}

// Table describes a replicated target table. Key is the conflict column;
// Mutable lists the columns a re-sync may overwrite. Every table also
// carries a synced_at timestamp maintained by the store.
type Table struct {
	Name    string
	Key     string
	Columns []Column
	Mutable []string
}

func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (k Kind) sqlType(d db.Dialect) string {
	switch d {
	case db.ClickHouse:
		switch k {
		case Int, BigInt:
			return "Int64"
		case Bool:
			return "Bool"
		default:
			return "String"
		}
	case db.SQLite:
		switch k {
		case Int, BigInt:
			return "INTEGER"
		case Bool:
			return "BOOLEAN"
		default:
			return "TEXT"
		}
	default:
		switch k {
		case Int:
			return "INTEGER"
		case BigInt:
			return "BIGINT"
		case Bool:
			return "BOOLEAN"
		default:
			return "VARCHAR(255)"
		}
	}
}

// CreateSQL renders CREATE TABLE IF NOT EXISTS for the dialect. ClickHouse
// tables use ReplacingMergeTree keyed on synced_at so the newest copy of a
// row survives merges.
func (t Table) CreateSQL(d db.Dialect, schema string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE IF NOT EXISTS %s (\n", d.Qualify(schema, t.Name))
	for _, c := range t.Columns {
		typ := c.Kind.sqlType(d)
		switch {
		case d == db.ClickHouse && c.Nullable:
			typ = "Nullable(" + typ + ")"
		case d != db.ClickHouse && c.Name == t.Key:
			typ += " PRIMARY KEY"
		}
		fmt.Fprintf(&sb, "    %s %s,\n", c.Name, typ)
	}
	if d == db.ClickHouse {
		sb.WriteString("    synced_at DateTime64(3) DEFAULT now64(3)\n")
		fmt.Fprintf(&sb, ") ENGINE = ReplacingMergeTree(synced_at) ORDER BY %s", t.Key)
		return sb.String()
	}
	sb.WriteString("    synced_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP\n)")
	return sb.String()
}
