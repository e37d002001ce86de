package claims

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/claimsight/claimsight/internal/platform/query"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ db queryable }

// NewRepoPG creates the Postgres-backed claim repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{db: pool} }

const claimCols = `id, member_name, provider_name, status, member_region,
	provider_specialty, total_amount, service_date,
	procedure_codes, diagnosis_codes, search_text, created_at`

func scanClaim(row pgx.Row) (*Claim, error) {
	var c Claim
	err := row.Scan(&c.ID, &c.MemberName, &c.ProviderName, &c.Status, &c.MemberRegion,
		&c.ProviderSpecialty, &c.TotalAmount, &c.ServiceDate,
		&c.ProcedureCodes, &c.DiagnosisCodes, &c.SearchText, &c.CreatedAt)
	return &c, err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Claim, error) {
	c, err := scanClaim(r.db.QueryRow(ctx, `SELECT `+claimCols+` FROM claim WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *repoPG) ListOffset(ctx context.Context, f *CompiledFilter, page, pageSize int, includeTotal bool) ([]*Claim, *int, error) {
	b := query.NewBuilder("claim", claimCols)
	f.Apply(b)

	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	// Secondary id order keeps pages stable when the sort column has ties.
	col := query.SanitizeOrderColumn(f.SortColumn, "service_date")
	b.OrderBy(query.JoinOrder(col+" "+dir, "id "+dir))

	var total *int
	if includeTotal {
		var n int
		if err := r.db.QueryRow(ctx, b.CountSQL(), b.CountArgs()...).Scan(&n); err != nil {
			return nil, nil, err
		}
		total = &n
	}

	offset := (page - 1) * pageSize
	rows, err := r.db.Query(ctx, b.PageSQL(), b.PageArgs(pageSize, offset)...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	items, err := collectClaims(rows)
	if err != nil {
		return nil, nil, err
	}
	return items, total, nil
}

func (r *repoPG) ListKeyset(ctx context.Context, f *CompiledFilter, after *CursorKey, limit int) ([]*Claim, error) {
	b := query.NewBuilder("claim", claimCols)
	f.Apply(b)

	if after != nil {
		b.Add(query.KeysetPredicate("service_date", "id", f.SortDesc, b.Idx()), after.ServiceDate, after.ID)
	}
	b.OrderBy(query.KeysetOrder("service_date", "id", f.SortDesc))

	rows, err := r.db.Query(ctx, b.LimitSQL(), b.LimitArgs(limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectClaims(rows)
}

func collectClaims(rows pgx.Rows) ([]*Claim, error) {
	var items []*Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
