package claims

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CursorKey is the (sort key, tie-break id) pair of the last row of a page.
type CursorKey struct {
	ServiceDate time.Time
	ID          uuid.UUID
}

// EncodeCursor renders a CursorKey as an opaque token. Microsecond precision
// matches Postgres timestamptz resolution, so the token round-trips
// losslessly and the keyset predicate resumes exactly at the boundary row.
func EncodeCursor(serviceDate time.Time, id uuid.UUID) string {
	raw := fmt.Sprintf("%d:%s", serviceDate.UnixMicro(), id.String())
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor token. It fails closed: any malformed input
// (bad base64, bad integer, bad uuid) returns ok=false, which callers treat
// as "start from the beginning" rather than an error.
func DecodeCursor(token string) (CursorKey, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return CursorKey{}, false
	}

	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return CursorKey{}, false
	}

	micros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return CursorKey{}, false
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		return CursorKey{}, false
	}

	return CursorKey{ServiceDate: time.UnixMicro(micros).UTC(), ID: id}, true
}
