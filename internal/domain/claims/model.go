package claims

import (
	"time"

	"github.com/google/uuid"
)

// Claim maps to the claim table. Claims are written by an external ingestion
// path and are immutable after insert; this service only reads them.
type Claim struct {
	ID                uuid.UUID `db:"id" json:"id"`
	MemberName        string    `db:"member_name" json:"memberName"`
	ProviderName      string    `db:"provider_name" json:"providerName"`
	Status            string    `db:"status" json:"status"`
	MemberRegion      string    `db:"member_region" json:"memberRegion"`
	ProviderSpecialty string    `db:"provider_specialty" json:"providerSpecialty"`
	TotalAmount       float64   `db:"total_amount" json:"totalAmount"`
	ServiceDate       time.Time `db:"service_date" json:"serviceDate"`
	ProcedureCodes    []string  `db:"procedure_codes" json:"procedureCodes"`
	DiagnosisCodes    []string  `db:"diagnosis_codes" json:"diagnosisCodes"`
	SearchText        string    `db:"search_text" json:"-"`
	CreatedAt         time.Time `db:"created_at" json:"createdAt"`
}

// QuerySpec carries one listing request's raw parameters. Zero values mean
// "not filtered". Page/PageSize and Cursor are mutually exclusive modes;
// a non-empty Cursor wins.
type QuerySpec struct {
	Keyword   string
	Status    string
	Region    string
	Specialty string
	MinAmount *float64
	MaxAmount *float64
	DateFrom  *time.Time
	DateTo    *time.Time
	// Codes is a comma-separated list matched against both procedure and
	// diagnosis codes.
	Codes string

	SortBy  string
	SortDir string

	Page     int
	PageSize int
	// Cursor selects cursor mode when non-empty. UseCursor selects cursor
	// mode with no token, i.e. the start of a cursor walk.
	Cursor       string
	UseCursor    bool
	IncludeTotal bool
}

// ListResult is the wire shape of a listing response. Total is only present
// in offset mode with includeTotal; HasMore/NextCursor only in cursor mode.
type ListResult struct {
	Items       []*Claim `json:"items"`
	Page        int      `json:"page,omitempty"`
	PageSize    int      `json:"pageSize"`
	Total       *int     `json:"total,omitempty"`
	SortBy      string   `json:"sortBy"`
	SortDir     string   `json:"sortDir"`
	HasMore     *bool    `json:"hasMore,omitempty"`
	NextCursor  *string  `json:"nextCursor,omitempty"`
	QueryTimeMs int64    `json:"queryTimeMs"`
}
