package config

import "fmt"

// Accepted ranges for command arguments
const (
	MinYear = 2000
	MaxYear = 2030
	MinWeek = 1
	MaxWeek = 18
)

// ValidateYear checks a season year
func ValidateYear(year int) error {
	if year < MinYear || year > MaxYear {
		return fmt.Errorf("invalid year %d: must be between %d and %d", year, MinYear, MaxYear)
	}
	return nil
}

// ValidateWeek checks a regular-season week
func ValidateWeek(week int) error {
	if week < MinWeek || week > MaxWeek {
		return fmt.Errorf("invalid week %d: must be between %d and %d", week, MinWeek, MaxWeek)
	}
	return nil
}
