package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// CodeMinter mints resource codes from a Postgres sequence. Sequence values
// are monotonic and survive rollbacks, so a code handed out is never issued
// again even when its owning upload fails.
type CodeMinter struct {
	db *sql.DB
}

func NewCodeMinter(db *sql.DB) *CodeMinter {
	return &CodeMinter{db: db}
}

func (m *CodeMinter) Mint(ctx context.Context, count int) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("mint count must be positive, got %d", count)
	}

	rows, err := m.db.QueryContext(ctx,
		`SELECT nextval('resource_code_seq') FROM generate_series(1, $1)`, count)
	if err != nil {
		return nil, fmt.Errorf("query sequence: %w", err)
	}
	defer rows.Close()

	codes := make([]string, 0, count)
	for rows.Next() {
		var value int64
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan sequence value: %w", err)
		}
		codes = append(codes, fmt.Sprintf("RC-%06d", value))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sequence values: %w", err)
	}
	if len(codes) != count {
		return nil, fmt.Errorf("expected %d codes, got %d", count, len(codes))
	}
	return codes, nil
}
