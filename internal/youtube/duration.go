package youtube

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseISODuration parses an ISO-8601 duration such as "PT1H4M13S" (as found in
// itemprop="duration" meta tags) into whole seconds. A leading day component
// ("P1DT2H") is accepted.
func ParseISODuration(duration string) (int, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(duration), "P")
	if !ok {
		return 0, fmt.Errorf("invalid duration format: %s", duration)
	}

	var total int
	datePart, timePart, _ := strings.Cut(rest, "T")

	if datePart != "" {
		d, err := takeUnit(&datePart, 'D')
		if err != nil {
			return 0, err
		}
		if datePart != "" {
			return 0, fmt.Errorf("invalid duration format: %s", duration)
		}
		total += d * 86400
	}

	for _, unit := range []struct {
		sym  byte
		secs int
	}{{'H', 3600}, {'M', 60}, {'S', 1}} {
		v, err := takeUnit(&timePart, unit.sym)
		if err != nil {
			return 0, err
		}
		total += v * unit.secs
	}

	if timePart != "" {
		return 0, fmt.Errorf("invalid duration format: %s", duration)
	}

	return total, nil
}

// takeUnit consumes "<n><sym>" from the front of s when present.
func takeUnit(s *string, sym byte) (int, error) {
	idx := strings.IndexByte(*s, sym)
	if idx == -1 {
		return 0, nil
	}

	raw := (*s)[:idx]
	// Fractional seconds are truncated.
	if whole, _, found := strings.Cut(raw, "."); found {
		raw = whole
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration component %q: %w", (*s)[:idx+1], err)
	}
	*s = (*s)[idx+1:]
	return v, nil
}
