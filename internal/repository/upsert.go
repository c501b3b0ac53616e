package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmehdipour/billing-sandbox/internal/db"
	"github.com/jmoiron/sqlx"
)

const DefaultChunkSize = 500

// Upserter writes rows with a multi-row insert-or-update. Conflicting rows
// get only the table's Mutable columns plus synced_at refreshed.
type Upserter struct {
	Dialect   db.Dialect
	Schema    string
	ChunkSize int
}

// Upsert writes rows in chunks inside tx. Each row holds one value per
// table column, in column order. It does not commit or roll back.
func (u Upserter) Upsert(ctx context.Context, tx *sqlx.Tx, t Table, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	size := u.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	rows = latestByKey(t, rows)

	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		chunk := rows[start:end]

		args := make([]any, 0, len(chunk)*len(t.Columns))
		for _, rw := range chunk {
			if len(rw) != len(t.Columns) {
				return fmt.Errorf("upsert %s: row has %d values, want %d", t.Name, len(rw), len(t.Columns))
			}
			args = append(args, rw...)
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(u.statement(t, len(chunk))), args...); err != nil {
			return fmt.Errorf("upsert %s rows %d-%d: %w", t.Name, start, end, err)
		}
	}
	return nil
}

// latestByKey collapses rows sharing a key into the last one, at the
// position of the first. Postgres rejects a statement that touches the same
// row twice.
func latestByKey(t Table, rows [][]any) [][]any {
	key := -1
	for i, c := range t.Columns {
		if c.Name == t.Key {
			key = i
			break
		}
	}
	if key < 0 {
		return rows
	}

	pos := make(map[any]int, len(rows))
	out := make([][]any, 0, len(rows))
	for _, rw := range rows {
		if len(rw) <= key {
			out = append(out, rw)
			continue
		}
		if i, ok := pos[rw[key]]; ok {
			out[i] = rw
			continue
		}
		pos[rw[key]] = len(out)
		out = append(out, rw)
	}
	return out
}

func (u Upserter) statement(t Table, n int) string {
	var sb strings.Builder

	sb.WriteString("INSERT INTO ")
	sb.WriteString(u.Dialect.Qualify(u.Schema, t.Name))
	sb.WriteString(" (")
	sb.WriteString(strings.Join(t.ColumnNames(), ", "))
	sb.WriteString(") VALUES ")

	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ") + ")"
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(tuple)
	}

	sets := make([]string, 0, len(t.Mutable)+1)
	if u.Dialect == db.MySQL {
		sb.WriteString(" ON DUPLICATE KEY UPDATE ")
		for _, c := range t.Mutable {
			sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", c, c))
		}
	} else {
		fmt.Fprintf(&sb, " ON CONFLICT (%s) DO UPDATE SET ", t.Key)
		for _, c := range t.Mutable {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}
	sets = append(sets, "synced_at = CURRENT_TIMESTAMP")
	sb.WriteString(strings.Join(sets, ", "))

	return sb.String()
}
