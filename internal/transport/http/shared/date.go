package shared

import "time"

// ParseDate accepts RFC3339 or YYYY-MM-DD. Empty input is the zero time.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	return time.Parse("2006-01-02", value)
}

// ParseDateEnd is ParseDate, but a bare YYYY-MM-DD covers the whole day.
func ParseDateEnd(value string) (time.Time, error) {
	if len(value) == len("2006-01-02") {
		t, err := time.Parse("2006-01-02", value)
		if err != nil {
			return time.Time{}, err
		}
		return t.Add(24*time.Hour - time.Nanosecond), nil
	}
	return ParseDate(value)
}
