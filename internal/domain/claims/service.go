package claims

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/claimsight/claimsight/internal/platform/profiler"
)

// Service executes listings and point lookups over the claim store.
type Service struct {
	repo            Repository
	prof            *profiler.Profiler
	logger          zerolog.Logger
	defaultPageSize int
	maxPageSize     int
}

func NewService(repo Repository, prof *profiler.Profiler, logger zerolog.Logger, defaultPageSize, maxPageSize int) *Service {
	return &Service{
		repo:            repo,
		prof:            prof,
		logger:          logger.With().Str("component", "claims").Logger(),
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// List runs one query in offset or cursor mode, selected by the presence of
// a cursor token. Out-of-range paging parameters are clamped, never rejected.
func (s *Service) List(ctx context.Context, spec QuerySpec) (*ListResult, error) {
	f := Compile(spec)

	page := spec.Page
	if page < 1 {
		page = 1
	}
	pageSize := spec.PageSize
	if pageSize < 1 {
		pageSize = s.defaultPageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}

	start := time.Now()
	var res *ListResult
	var err error
	if spec.Cursor != "" || spec.UseCursor {
		res, err = s.listCursor(ctx, f, spec.Cursor, pageSize)
	} else {
		res, err = s.listOffset(ctx, f, page, pageSize, spec.IncludeTotal)
	}
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}

	elapsed := time.Since(start)
	res.QueryTimeMs = elapsed.Milliseconds()
	res.SortBy = f.SortField
	res.SortDir = f.SortDirString()
	s.prof.Record("listClaims", fmt.Sprintf("sort=%s dir=%s pageSize=%d", f.SortField, res.SortDir, pageSize), elapsed)

	return res, nil
}

func (s *Service) listOffset(ctx context.Context, f *CompiledFilter, page, pageSize int, includeTotal bool) (*ListResult, error) {
	items, total, err := s.repo.ListOffset(ctx, f, page, pageSize, includeTotal)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*Claim{}
	}
	return &ListResult{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

func (s *Service) listCursor(ctx context.Context, f *CompiledFilter, token string, pageSize int) (*ListResult, error) {
	// A malformed token means "start from the beginning", never a 500.
	var after *CursorKey
	if token != "" {
		if key, ok := DecodeCursor(token); ok {
			after = &key
		} else {
			s.logger.Debug().Str("cursor", token).Msg("ignoring malformed cursor")
		}
	}

	// Cursor pagination is only well-defined over the (service_date, id)
	// total order, so the compiled sort column is overridden here.
	items, err := s.repo.ListKeyset(ctx, f, after, pageSize+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > pageSize
	if hasMore {
		items = items[:pageSize]
	}
	if items == nil {
		items = []*Claim{}
	}

	res := &ListResult{
		Items:    items,
		PageSize: pageSize,
		HasMore:  &hasMore,
	}
	if hasMore {
		last := items[len(items)-1]
		cursor := EncodeCursor(last.ServiceDate, last.ID)
		res.NextCursor = &cursor
	}
	return res, nil
}

// Get looks up one claim. A malformed id is "not found", not an error.
func (s *Service) Get(ctx context.Context, rawID string) (*Claim, error) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}
