package rag

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bestbox-ai/orchestrator/pkg/apperr"
	"github.com/bestbox-ai/orchestrator/pkg/model"
	"github.com/bestbox-ai/orchestrator/pkg/store"
)

// StructuredFilter is the parameter set a structured query can be run with
// (spec.md §4.3 step 4: "counts, filters by part/material/severity").
type StructuredFilter struct {
	Domain   string
	Part     string
	Material string
	Severity string
}

// StructuredCatalog runs a small, fixed set of parameterized queries against
// a defect-record table rather than building SQL from the query string
// (spec.md §4.3 step 4: "a deterministic SQL is produced from a templated
// catalog", never string-built SQL).
type StructuredCatalog struct {
	db     *sql.DB
	rebind func(string) string
}

// NewStructuredCatalog creates a StructuredCatalog against st's connection.
func NewStructuredCatalog(st *store.Store) *StructuredCatalog {
	return &StructuredCatalog{db: st.DB(), rebind: st.Rebind}
}

// Bootstrap creates the structured-record table this catalog queries.
func (c *StructuredCatalog) Bootstrap(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS kb_structured_records (
		id INTEGER,
		domain TEXT NOT NULL,
		part TEXT,
		material TEXT,
		severity TEXT,
		status TEXT,
		summary TEXT NOT NULL
	)`)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "bootstrap structured records table")
	}
	return nil
}

// Count returns the number of records matching filter.
func (c *StructuredCatalog) Count(ctx context.Context, filter StructuredFilter) (int, error) {
	query := `SELECT COUNT(*) FROM kb_structured_records WHERE domain = ?`
	args := []any{filter.Domain}
	query, args = appendOptionalFilters(query, args, filter)

	var n int
	row := c.db.QueryRowContext(ctx, c.rebind(query), args...)
	if err := row.Scan(&n); err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, err, "count structured records")
	}
	return n, nil
}

// Filter returns records matching filter as RetrievedPassage summaries,
// merged into the fused vector result set by the caller.
func (c *StructuredCatalog) Filter(ctx context.Context, filter StructuredFilter, limit int) ([]model.RetrievedPassage, error) {
	query := `SELECT id, summary FROM kb_structured_records WHERE domain = ?`
	args := []any{filter.Domain}
	query, args = appendOptionalFilters(query, args, filter)
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := c.db.QueryContext(ctx, c.rebind(query), args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "filter structured records")
	}
	defer rows.Close()

	var out []model.RetrievedPassage
	for rows.Next() {
		var id int64
		var summary string
		if err := rows.Scan(&id, &summary); err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, err, "scan structured record")
		}
		out = append(out, model.RetrievedPassage{
			DocID:   fmt.Sprintf("structured-%d", id),
			ChunkID: "0",
			Text:    summary,
			Source:  "structured",
			Domain:  filter.Domain,
		})
	}
	return out, rows.Err()
}

func appendOptionalFilters(query string, args []any, filter StructuredFilter) (string, []any) {
	if filter.Part != "" {
		query += " AND part = ?"
		args = append(args, filter.Part)
	}
	if filter.Material != "" {
		query += " AND material = ?"
		args = append(args, filter.Material)
	}
	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, filter.Severity)
	}
	return query, args
}
