package claims

import (
	"fmt"
	"strings"
	"time"

	"github.com/claimsight/claimsight/internal/platform/query"
)

// sortColumns whitelists client-facing sort fields. Anything else falls back
// to serviceDate; client input never reaches SQL text directly.
var sortColumns = map[string]string{
	"serviceDate":       "service_date",
	"totalAmount":       "total_amount",
	"status":            "status",
	"memberRegion":      "member_region",
	"providerSpecialty": "provider_specialty",
}

const defaultSortField = "serviceDate"

// CompiledFilter is the normalized predicate derived from a QuerySpec:
// trimmed code lists, a whitelisted sort column, and validated bounds.
// Compiling is pure; applying it to a query builder is where SQL happens.
type CompiledFilter struct {
	Keyword   string
	Status    string
	Region    string
	Specialty string
	MinAmount *float64
	MaxAmount *float64
	DateFrom  *time.Time
	DateTo    *time.Time
	Codes     []string

	SortField  string // client-facing name after whitelist fallback
	SortColumn string // corresponding db column
	SortDesc   bool
}

// Compile normalizes a QuerySpec into a CompiledFilter. It never fails:
// unknown sort fields fall back to serviceDate and malformed code entries
// are dropped.
func Compile(spec QuerySpec) *CompiledFilter {
	f := &CompiledFilter{
		Keyword:   strings.TrimSpace(spec.Keyword),
		Status:    spec.Status,
		Region:    spec.Region,
		Specialty: spec.Specialty,
		MinAmount: spec.MinAmount,
		MaxAmount: spec.MaxAmount,
		DateFrom:  spec.DateFrom,
		DateTo:    spec.DateTo,
	}

	for _, c := range strings.Split(spec.Codes, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			f.Codes = append(f.Codes, c)
		}
	}

	f.SortField = spec.SortBy
	col, ok := sortColumns[spec.SortBy]
	if !ok {
		f.SortField = defaultSortField
		col = sortColumns[defaultSortField]
	}
	f.SortColumn = col

	// Descending is the default; only an explicit "asc" flips it.
	f.SortDesc = !strings.EqualFold(spec.SortDir, "asc")

	return f
}

// SortDirString returns the client-facing direction label.
func (f *CompiledFilter) SortDirString() string {
	if f.SortDesc {
		return "desc"
	}
	return "asc"
}

// Apply adds the filter's WHERE fragments to the builder. Range bounds are
// inclusive; filter groups AND together; the code list is a single OR group
// across both code columns.
func (f *CompiledFilter) Apply(b *query.Builder) {
	if f.Status != "" {
		b.Add(fmt.Sprintf("status = $%d", b.Idx()), f.Status)
	}
	if f.Region != "" {
		b.Add(fmt.Sprintf("member_region = $%d", b.Idx()), f.Region)
	}
	if f.Specialty != "" {
		b.Add(fmt.Sprintf("provider_specialty = $%d", b.Idx()), f.Specialty)
	}
	if f.MinAmount != nil {
		b.Add(fmt.Sprintf("total_amount >= $%d", b.Idx()), *f.MinAmount)
	}
	if f.MaxAmount != nil {
		b.Add(fmt.Sprintf("total_amount <= $%d", b.Idx()), *f.MaxAmount)
	}
	if f.DateFrom != nil {
		b.Add(fmt.Sprintf("service_date >= $%d", b.Idx()), *f.DateFrom)
	}
	if f.DateTo != nil {
		b.Add(fmt.Sprintf("service_date <= $%d", b.Idx()), *f.DateTo)
	}
	if len(f.Codes) > 0 {
		b.Add(query.ArrayOverlapClause("procedure_codes", "diagnosis_codes", b.Idx()), f.Codes)
	}
	if f.Keyword != "" {
		b.Add(query.FullTextClause("search_text", b.Idx()), f.Keyword)
	}
}
