package summary

import "context"

// Store is the aggregate summary's persistence contract. All mutation is
// expressed as single-row atomic upserts or a full replace, so concurrent
// writers never need an in-process lock.
type Store interface {
	// Get returns the stored singleton, or (nil, nil) when absent.
	Get(ctx context.Context) (*StoredSummary, error)

	// UpsertFull replaces the whole summary (bootstrap and migration path).
	// It clears any legacy payload. Idempotent given identical input.
	UpsertFull(ctx context.Context, s *AggregateSummary) error

	// ApplyDelta atomically folds one inserted claim into the summary,
	// creating it if absent. Deltas commute: any interleaving of N calls
	// produces the same totals.
	ApplyDelta(ctx context.Context, amount float64, status string) error

	// FacetIncrement atomically bumps one procedure-code counter,
	// creating it if absent.
	FacetIncrement(ctx context.Context, code string) error

	// TopProcedures returns the n highest facet counters, count descending.
	TopProcedures(ctx context.Context, n int) ([]FacetCount, error)

	// FacetsEmpty reports whether no facet counters exist at all.
	FacetsEmpty(ctx context.Context) (bool, error)

	// ClearFacets and InsertFacets repopulate the counters during bootstrap.
	ClearFacets(ctx context.Context) error
	InsertFacets(ctx context.Context, facets []FacetCount) error

	// MigrateLegacy rewrites a legacy-shape summary into the current shape.
	// Returns true when a migration actually ran; a no-op once migrated.
	MigrateLegacy(ctx context.Context) (bool, error)

	// Aggregate runs the full O(n) scan over the claim table: count, sum,
	// group-by-status and group-by-procedure-code.
	Aggregate(ctx context.Context) (*AggregateSummary, []FacetCount, error)
}
