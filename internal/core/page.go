package core

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DefaultPerPage matches the page size the expense list has always used.
const DefaultPerPage = 5

const maxPerPage = 100

// ListQuery is the pagination and filter state of the expense list.
// Year and Month are kept as strings so that "" means "All".
type ListQuery struct {
	Page    int
	PerPage int
	Year    string
	Month   string
}

// NormalizeYear validates a 4-digit year filter. Empty means no filter.
func NormalizeYear(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	y, err := strconv.Atoi(s)
	if err != nil || len(s) != 4 || y < 1900 || y > 9999 {
		return "", ErrInvalidYear
	}
	return s, nil
}

// NormalizeMonth validates a month filter and zero-pads it ("6" -> "06").
// Empty means no filter.
func NormalizeMonth(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	m, err := strconv.Atoi(s)
	if err != nil || m < 1 || m > 12 {
		return "", ErrInvalidMonth
	}
	return fmt.Sprintf("%02d", m), nil
}

// Normalize clamps paging values and drops invalid filters.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > maxPerPage {
		q.PerPage = maxPerPage
	}
	if y, err := NormalizeYear(q.Year); err == nil {
		q.Year = y
	} else {
		q.Year = ""
	}
	if m, err := NormalizeMonth(q.Month); err == nil {
		q.Month = m
	} else {
		q.Month = ""
	}
	return q
}

// Values encodes the query for the API. Empty filters are omitted.
func (q ListQuery) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("per_page", strconv.Itoa(q.PerPage))
	if q.Year != "" {
		v.Set("year", q.Year)
	}
	if q.Month != "" {
		v.Set("month", q.Month)
	}
	return v
}

// WithPage returns a copy of q pointing at page p.
func (q ListQuery) WithPage(p int) ListQuery {
	q.Page = p
	return q
}

// Filtered reports whether a year or month filter is active.
func (q ListQuery) Filtered() bool {
	return q.Year != "" || q.Month != ""
}

// PageResult is one page of expenses as returned by the API.
type PageResult struct {
	Expenses   []Expense
	Page       int
	TotalPages int
}

// NewPageResult fixes up missing paging metadata. An API that omits
// total_pages is treated as having a single page.
func NewPageResult(expenses []Expense, page, totalPages int) PageResult {
	if page < 1 {
		page = 1
	}
	if totalPages < 1 {
		totalPages = 1
	}
	if expenses == nil {
		expenses = []Expense{}
	}
	return PageResult{Expenses: expenses, Page: page, TotalPages: totalPages}
}

func (p PageResult) HasPrev() bool { return p.Page > 1 }
func (p PageResult) HasNext() bool { return p.Page < p.TotalPages }

// Pages returns up to width page numbers centred on the current page. A
// single page needs no pager and yields nil.
func (p PageResult) Pages(width int) []int {
	if width < 1 || p.TotalPages <= 1 {
		return nil
	}
	start := p.Page - width/2
	if start < 1 {
		start = 1
	}
	end := start + width - 1
	if end > p.TotalPages {
		end = p.TotalPages
		start = end - width + 1
		if start < 1 {
			start = 1
		}
	}
	out := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, i)
	}
	return out
}

// YearOptions returns the default filter years: the current year and the
// three before it, oldest first.
func YearOptions(current int) []string {
	years := make([]string, 0, 4)
	for y := current - 3; y <= current; y++ {
		years = append(years, strconv.Itoa(y))
	}
	return years
}

// MonthOptions returns "01".."12".
func MonthOptions() []string {
	out := make([]string, 12)
	for i := range out {
		out[i] = fmt.Sprintf("%02d", i+1)
	}
	return out
}
