package http

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"expenses/internal/chart"
	"expenses/internal/core"
)

// pageData is shared by every full page.
type pageData struct {
	Title string
	User  *core.User
	Path  string
}

func (s *Server) pageData(r *http.Request, title string) pageData {
	pd := pageData{Title: title, Path: r.URL.Path}
	if sess, ok := sessionFrom(r.Context()); ok {
		u := sess.User
		pd.User = &u
	}
	return pd
}

type errorView struct {
	pageData
	Status  int
	Message string
}

type authView struct {
	pageData
	Username string
	Errors   []string
}

type listView struct {
	pageData
	Query    core.ListQuery
	Result   core.PageResult
	Pages    []int
	Years    []string
	Months   []string
	Filtered bool // unpaginated /expenses/filter result
	Summary  *core.Summary
}

type formView struct {
	pageData
	ID         int64
	Input      expenseInput
	Errors     []string
	Categories []core.Category
}

type summaryView struct {
	pageData
	Summary core.Summary
	Pie     chart.Pie
	Years   []string
	Months  []string
}

const pagerWidth = 5

func (s *Server) newListView(r *http.Request, q core.ListQuery, res core.PageResult) listView {
	return listView{
		pageData: s.pageData(r, "Expense Records"),
		Query:    q,
		Result:   res,
		Pages:    res.Pages(pagerWidth),
		Years:    s.opts.FilterYears,
		Months:   core.MonthOptions(),
	}
}

func (s *Server) newFormView(r *http.Request, title string, id int64, in expenseInput, errs []string) formView {
	return formView{
		pageData:   s.pageData(r, title),
		ID:         id,
		Input:      in,
		Errors:     errs,
		Categories: core.Categories(),
	}
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(m core.Money) string { return m.String() },
		"percent": func(f float64) string {
			return strconv.FormatFloat(f, 'f', 1, 64) + "%"
		},
		"color":   chart.Color,
		"listURL": listURL,
		"previewAmount": func(s string) string {
			if cents, err := core.ParseDecimalToCents(s); err == nil {
				return core.Money{Cents: cents}.String()
			}
			return "$" + s
		},
		"previewDate": func(s string) string {
			if d, err := core.ParseDate(s); err == nil {
				return d.Display()
			}
			return "No date"
		},
		"expensePath": func(id int64) string { return fmt.Sprintf("/expenses/%d", id) },
		"add":         func(a, b int) int { return a + b },
		"filter": func(years, months []string, year, month string) periodFilter {
			return periodFilter{Years: years, Months: months, Year: year, Month: month}
		},
	}
}

// periodFilter feeds the shared year/month selects.
type periodFilter struct {
	Years  []string
	Months []string
	Year   string
	Month  string
}

// listURL links to a page of the list keeping the active filters.
func listURL(q core.ListQuery, page int) string {
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	if q.Year != "" {
		v.Set("year", q.Year)
	}
	if q.Month != "" {
		v.Set("month", q.Month)
	}
	return "/?" + v.Encode()
}
