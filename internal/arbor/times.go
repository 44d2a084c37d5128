package arbor

import "time"

// Arbor serializes timestamps as RFC3339 strings; the raw fields stay
// strings so records survive JSON round-trips through the byte cache
// unchanged. These helpers parse on demand for display.

// ParsedCreatedAt returns the parsed CreatedAt timestamp.
func (e Entity) ParsedCreatedAt() time.Time {
	return parseTime(e.CreatedAt)
}

// ParsedUpdatedAt returns the parsed UpdatedAt timestamp.
func (e Entity) ParsedUpdatedAt() time.Time {
	return parseTime(e.UpdatedAt)
}

// ParsedUpdatedAt returns the parsed UpdatedAt timestamp.
func (f FacetValue) ParsedUpdatedAt() time.Time {
	return parseTime(f.UpdatedAt)
}

// ParsedUpdatedAt returns the parsed UpdatedAt timestamp.
func (s Summary) ParsedUpdatedAt() time.Time {
	return parseTime(s.UpdatedAt)
}

// ParsedLastCrawlAt returns the parsed LastCrawlAt timestamp.
func (s Source) ParsedLastCrawlAt() time.Time {
	return parseTime(s.LastCrawlAt)
}

// ParsedUpdatedAt returns the parsed UpdatedAt timestamp.
func (s Source) ParsedUpdatedAt() time.Time {
	return parseTime(s.UpdatedAt)
}

// ParsedCreatedAt returns the parsed CreatedAt timestamp.
func (n Notification) ParsedCreatedAt() time.Time {
	return parseTime(n.CreatedAt)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
