package core

import "fmt"

// CategoryTotal is one row of /expenses/summary_by_category.
type CategoryTotal struct {
	Category string
	Total    Money
	// Percent of the summary total, 0..100.
	Percent float64
}

// Summary is the category breakdown for an optional year and month.
type Summary struct {
	Year  string
	Month string
	Rows  []CategoryTotal
	Total Money
}

// NewSummary sums rows and fills in each row's share of the total.
func NewSummary(year, month string, rows []CategoryTotal) Summary {
	s := Summary{Year: year, Month: month, Rows: rows}
	for _, r := range rows {
		s.Total = s.Total.Add(r.Total)
	}
	for i := range s.Rows {
		if s.Total.Cents > 0 {
			s.Rows[i].Percent = float64(s.Rows[i].Total.Cents) * 100 / float64(s.Total.Cents)
		} else {
			s.Rows[i].Percent = 0
		}
	}
	return s
}

// Empty reports whether there is nothing to chart.
func (s Summary) Empty() bool {
	return len(s.Rows) == 0
}

// Label is the heading above the legend, e.g. "2025 /06 Spending Summary".
func (s Summary) Label() string {
	year := s.Year
	if year == "" {
		year = "All Years"
	}
	if s.Month != "" {
		return fmt.Sprintf("%s /%s Spending Summary", year, s.Month)
	}
	return year + " Spending Summary"
}
