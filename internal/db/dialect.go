package db

import "fmt"

// Dialect names a supported SQL backend and carries the few syntax
// differences the repositories care about.
type Dialect string

const (
	Postgres   Dialect = "postgres"
	MySQL      Dialect = "mysql"
	SQLite     Dialect = "sqlite"
	ClickHouse Dialect = "clickhouse"
)

func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(name); d {
	case Postgres, MySQL, SQLite, ClickHouse:
		return d, nil
	default:
		return "", fmt.Errorf("unsupported %s type", name)
	}
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == Postgres {
		return "pgx"
	}
	return string(d)
}

// Qualify returns the physical table name for a logical table in schema.
// Postgres gets a real schema; the others fold it into a "schema__" prefix.
// The double underscore keeps stripe.charges apart from the analytics
// table stripe_charges.
func (d Dialect) Qualify(schema, table string) string {
	switch {
	case schema == "":
		return table
	case d == Postgres || d == ClickHouse:
		return schema + "." + table
	default:
		return schema + "__" + table
	}
}
