package rowstore

import (
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the cell encoding for instants.
const TimeLayout = time.RFC3339Nano

// Int parses a numeric cell, yielding 0 for blank or malformed values.
func (r Row) Int(key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(r[key]))
	if err != nil {
		return 0
	}
	return v
}

// StrictInt parses a numeric cell and reports malformed values.
func (r Row) StrictInt(key string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(r[key]))
}

// Time parses an instant cell, yielding the zero time for blank or malformed values.
func (r Row) Time(key string) time.Time {
	raw := strings.TrimSpace(r[key])
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(TimeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// FormatInt encodes a numeric cell.
func FormatInt(v int) string {
	return strconv.Itoa(v)
}

// FormatTime encodes an instant cell in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
