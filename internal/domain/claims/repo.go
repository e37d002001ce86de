package claims

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned for point lookups that match no claim.
var ErrNotFound = errors.New("claim not found")

// Repository reads claims. There are no writes: ingestion happens outside
// this service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)

	// ListOffset returns one page under the filter's sort order. total is
	// nil unless includeTotal is set.
	ListOffset(ctx context.Context, f *CompiledFilter, page, pageSize int, includeTotal bool) (items []*Claim, total *int, err error)

	// ListKeyset returns up to limit rows in (service_date, id) order in the
	// filter's direction, resuming after the cursor key when present. The
	// caller over-fetches by one row to detect whether more pages exist.
	ListKeyset(ctx context.Context, f *CompiledFilter, after *CursorKey, limit int) ([]*Claim, error)
}
