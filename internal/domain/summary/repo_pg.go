package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// summaryID is the fixed key of the singleton row.
const summaryID = "claims"

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type storePG struct{ db queryable }

// NewStorePG creates the Postgres-backed aggregate store.
func NewStorePG(pool *pgxpool.Pool) Store { return &storePG{db: pool} }

func (r *storePG) Get(ctx context.Context) (*StoredSummary, error) {
	var (
		s          StoredSummary
		statusJSON []byte
		legacy     []byte
	)
	err := r.db.QueryRow(ctx, `
		SELECT total_claims, total_amount, status_counts, generated_at, duration_ms, source, legacy_data
		FROM claim_summary WHERE id = $1`, summaryID).
		Scan(&s.Totals.TotalClaims, &s.Totals.TotalAmount, &statusJSON,
			&s.GeneratedAt, &s.DurationMs, &s.Source, &legacy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}

	if len(statusJSON) > 0 {
		if err := json.Unmarshal(statusJSON, &s.StatusCounts); err != nil {
			return nil, fmt.Errorf("decode status counts: %w", err)
		}
	}
	s.Legacy = legacy
	return &s, nil
}

func (r *storePG) UpsertFull(ctx context.Context, s *AggregateSummary) error {
	statusJSON, err := json.Marshal(s.StatusCounts)
	if err != nil {
		return fmt.Errorf("encode status counts: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO claim_summary (id, total_claims, total_amount, status_counts, generated_at, duration_ms, source, legacy_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL)
		ON CONFLICT (id) DO UPDATE SET
			total_claims = EXCLUDED.total_claims,
			total_amount = EXCLUDED.total_amount,
			status_counts = EXCLUDED.status_counts,
			generated_at = EXCLUDED.generated_at,
			duration_ms = EXCLUDED.duration_ms,
			source = EXCLUDED.source,
			legacy_data = NULL`,
		summaryID, s.Totals.TotalClaims, s.Totals.TotalAmount, statusJSON,
		s.GeneratedAt, s.DurationMs, s.Source)
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

// ApplyDelta is a single statement so the increment is atomic under
// concurrent inserts; there is no read-modify-write window.
func (r *storePG) ApplyDelta(ctx context.Context, amount float64, status string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO claim_summary (id, total_claims, total_amount, status_counts, generated_at, duration_ms, source)
		VALUES ($1, 1, $2, jsonb_build_object($3::text, 1), NOW(), 0, $4)
		ON CONFLICT (id) DO UPDATE SET
			total_claims = claim_summary.total_claims + 1,
			total_amount = claim_summary.total_amount + EXCLUDED.total_amount,
			status_counts = jsonb_set(
				COALESCE(claim_summary.status_counts, '{}'::jsonb),
				ARRAY[$3::text],
				to_jsonb(COALESCE((claim_summary.status_counts ->> $3)::bigint, 0) + 1)),
			generated_at = NOW(),
			source = $4`,
		summaryID, amount, status, SourceChangeStream)
	if err != nil {
		return fmt.Errorf("apply delta: %w", err)
	}
	return nil
}

func (r *storePG) FacetIncrement(ctx context.Context, code string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO procedure_facet (code, count) VALUES ($1, 1)
		ON CONFLICT (code) DO UPDATE SET count = procedure_facet.count + 1`, code)
	if err != nil {
		return fmt.Errorf("increment facet %s: %w", code, err)
	}
	return nil
}

func (r *storePG) TopProcedures(ctx context.Context, n int) ([]FacetCount, error) {
	rows, err := r.db.Query(ctx, `
		SELECT code, count FROM procedure_facet ORDER BY count DESC, code ASC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("top procedures: %w", err)
	}
	defer rows.Close()

	var out []FacetCount
	for rows.Next() {
		var f FacetCount
		if err := rows.Scan(&f.Code, &f.Count); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *storePG) FacetsEmpty(ctx context.Context) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM procedure_facet)`).Scan(&exists); err != nil {
		return false, fmt.Errorf("check facets: %w", err)
	}
	return !exists, nil
}

func (r *storePG) ClearFacets(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM procedure_facet`)
	return err
}

func (r *storePG) InsertFacets(ctx context.Context, facets []FacetCount) error {
	codes := make([]string, len(facets))
	counts := make([]int64, len(facets))
	for i, f := range facets {
		codes[i] = f.Code
		counts[i] = f.Count
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO procedure_facet (code, count)
		SELECT * FROM unnest($1::text[], $2::bigint[])
		ON CONFLICT (code) DO UPDATE SET count = EXCLUDED.count`,
		codes, counts)
	if err != nil {
		return fmt.Errorf("insert facets: %w", err)
	}
	return nil
}

func (r *storePG) MigrateLegacy(ctx context.Context) (bool, error) {
	stored, err := r.Get(ctx)
	if err != nil {
		return false, err
	}
	if stored == nil || len(stored.Legacy) == 0 {
		return false, nil
	}

	migrated := Normalize(stored)
	migrated.Source = SourceLegacyMigration
	if migrated.GeneratedAt.IsZero() {
		migrated.GeneratedAt = time.Now()
	}
	// UpsertFull nulls legacy_data, so a rerun finds nothing to do.
	if err := r.UpsertFull(ctx, migrated); err != nil {
		return false, err
	}
	return true, nil
}

func (r *storePG) Aggregate(ctx context.Context) (*AggregateSummary, []FacetCount, error) {
	agg := &AggregateSummary{StatusCounts: map[string]int64{}}

	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_amount), 0) FROM claim`).
		Scan(&agg.Totals.TotalClaims, &agg.Totals.TotalAmount)
	if err != nil {
		return nil, nil, fmt.Errorf("aggregate totals: %w", err)
	}

	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM claim GROUP BY status`)
	if err != nil {
		return nil, nil, fmt.Errorf("aggregate statuses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, nil, err
		}
		agg.StatusCounts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	facetRows, err := r.db.Query(ctx, `
		SELECT code, COUNT(*) FROM claim, unnest(procedure_codes) AS code
		GROUP BY code ORDER BY COUNT(*) DESC, code ASC`)
	if err != nil {
		return nil, nil, fmt.Errorf("aggregate facets: %w", err)
	}
	defer facetRows.Close()

	var facets []FacetCount
	for facetRows.Next() {
		var f FacetCount
		if err := facetRows.Scan(&f.Code, &f.Count); err != nil {
			return nil, nil, err
		}
		facets = append(facets, f)
	}
	return agg, facets, facetRows.Err()
}
