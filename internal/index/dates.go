package index

import (
	"fmt"
	"strings"
	"time"
)

// queryDateLayouts are the formats accepted for search date bounds: the
// DD/MM/YYYY form the tabular store uses and plain ISO dates.
var queryDateLayouts = []string{"02/01/2006", "2006-01-02"}

// ParseQueryDate parses a user-supplied date bound.
func ParseQueryDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range queryDateLayouts {
		if dt, err := time.Parse(layout, raw); err == nil {
			return dt, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want DD/MM/YYYY or YYYY-MM-DD)", raw)
}
