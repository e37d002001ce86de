package summary

import (
	"encoding/json"
	"sort"
	"time"
)

// Source tags record which path last produced the stored summary.
const (
	SourceBootstrap       = "bootstrap"
	SourceChangeStream    = "change-stream"
	SourceLegacyMigration = "legacy-migration"
)

// Totals are the headline aggregate numbers.
type Totals struct {
	TotalClaims int64   `json:"totalClaims"`
	TotalAmount float64 `json:"totalAmount"`
}

// AggregateSummary is the current-shape singleton summary.
type AggregateSummary struct {
	Totals       Totals
	StatusCounts map[string]int64
	GeneratedAt  time.Time
	DurationMs   int64
	Source       string
}

// StatusCount is one row of the status breakdown.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// FacetCount is one per-procedure-code tally.
type FacetCount struct {
	Code  string `json:"code"`
	Count int64  `json:"count"`
}

// StoredSummary is what the store actually holds: either current-shape typed
// columns, or a raw legacy payload that predates them. The two cases form a
// tagged union resolved by Normalize; the legacy side disappears for good
// once MigrateLegacy has run.
type StoredSummary struct {
	Totals       Totals
	StatusCounts map[string]int64
	GeneratedAt  time.Time
	DurationMs   int64
	Source       string
	Legacy       json.RawMessage
}

// legacyShape is the pre-migration layout: one flat object where the totals
// sit beside per-status counts.
type legacyShape struct {
	TotalClaims  int64            `json:"totalClaims"`
	TotalAmount  float64          `json:"totalAmount"`
	StatusCounts map[string]int64 `json:"statusCounts"`
	GeneratedAt  *time.Time       `json:"generatedAt"`
}

// Normalize resolves a StoredSummary into the current shape. A non-empty
// legacy payload wins, since typed columns are zero until migration runs.
// Returns nil for a nil input (summary absent).
func Normalize(s *StoredSummary) *AggregateSummary {
	if s == nil {
		return nil
	}

	if len(s.Legacy) > 0 {
		var legacy legacyShape
		if err := json.Unmarshal(s.Legacy, &legacy); err == nil {
			out := &AggregateSummary{
				Totals:       Totals{TotalClaims: legacy.TotalClaims, TotalAmount: legacy.TotalAmount},
				StatusCounts: legacy.StatusCounts,
				Source:       SourceLegacyMigration,
			}
			if legacy.GeneratedAt != nil {
				out.GeneratedAt = *legacy.GeneratedAt
			}
			if out.StatusCounts == nil {
				out.StatusCounts = map[string]int64{}
			}
			return out
		}
		// An unparseable legacy payload falls through to the typed columns.
	}

	counts := s.StatusCounts
	if counts == nil {
		counts = map[string]int64{}
	}
	return &AggregateSummary{
		Totals:       s.Totals,
		StatusCounts: counts,
		GeneratedAt:  s.GeneratedAt,
		DurationMs:   s.DurationMs,
		Source:       s.Source,
	}
}

// Payload is the wire shape shared by GET /api/summary and the
// summary-updated push event.
type Payload struct {
	Data   PayloadData `json:"data"`
	Meta   PayloadMeta `json:"meta"`
	Cached bool        `json:"cached"`
}

type PayloadData struct {
	Totals          Totals        `json:"totals"`
	StatusBreakdown []StatusCount `json:"statusBreakdown"`
	TopProcedures   []FacetCount  `json:"topProcedures"`
}

type PayloadMeta struct {
	GeneratedAt time.Time `json:"generatedAt"`
	DurationMs  int64     `json:"durationMs"`
	Source      string    `json:"source"`
}

// BuildPayload assembles the wire shape from a normalized summary and its
// facet counts. The status breakdown is ordered by count descending, status
// ascending on ties, so the wire order is deterministic.
func BuildPayload(s *AggregateSummary, facets []FacetCount) *Payload {
	breakdown := make([]StatusCount, 0, len(s.StatusCounts))
	for status, count := range s.StatusCounts {
		breakdown = append(breakdown, StatusCount{Status: status, Count: count})
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Count != breakdown[j].Count {
			return breakdown[i].Count > breakdown[j].Count
		}
		return breakdown[i].Status < breakdown[j].Status
	})

	if facets == nil {
		facets = []FacetCount{}
	}

	return &Payload{
		Data: PayloadData{
			Totals:          s.Totals,
			StatusBreakdown: breakdown,
			TopProcedures:   facets,
		},
		Meta: PayloadMeta{
			GeneratedAt: s.GeneratedAt,
			DurationMs:  s.DurationMs,
			Source:      s.Source,
		},
		Cached: true,
	}
}
