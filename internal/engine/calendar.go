package engine

import "time"

// ECYearOf converts a Gregorian instant to the Ethiopian calendar year.
// Enkutatash (Ethiopian new year) falls on 11 September, or 12 September when
// the following Gregorian year is a leap year. Before new year the offset is
// 8 years, after it 7.
func ECYearOf(t time.Time) int {
	t = t.UTC()
	newYearDay := 11
	if isGregorianLeap(t.Year() + 1) {
		newYearDay = 12
	}
	newYear := time.Date(t.Year(), time.September, newYearDay, 0, 0, 0, 0, time.UTC)
	if t.Before(newYear) {
		return t.Year() - 8
	}
	return t.Year() - 7
}

func isGregorianLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
