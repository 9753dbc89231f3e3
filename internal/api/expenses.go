package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"expenses/internal/core"
)

// ListExpenses fetches one page of the user's expenses.
func (c *Client) ListExpenses(ctx context.Context, token string, q core.ListQuery) (core.PageResult, error) {
	q = q.Normalize()
	var out pageDTO
	if err := c.do(ctx, http.MethodGet, "/expenses", q.Values(), token, nil, &out); err != nil {
		return core.PageResult{}, err
	}
	page := out.Page
	if page == 0 {
		page = q.Page
	}
	return core.NewPageResult(toExpenses(out.Expenses), page, out.TotalPages), nil
}

// FilterExpenses fetches every expense matching year/month without paging.
func (c *Client) FilterExpenses(ctx context.Context, token, year, month string) ([]core.Expense, error) {
	var out filterDTO
	if err := c.do(ctx, http.MethodGet, "/expenses/filter", filterQuery(year, month), token, nil, &out); err != nil {
		return nil, err
	}
	return toExpenses(out.Expenses), nil
}

// GetExpense fetches a single expense.
func (c *Client) GetExpense(ctx context.Context, token string, id int64) (core.Expense, error) {
	var out expenseDTO
	if err := c.do(ctx, http.MethodGet, expensePath(id), nil, token, nil, &out); err != nil {
		return core.Expense{}, err
	}
	return out.toExpense(), nil
}

// CreateExpense stores a new expense and returns the service's copy.
func (c *Client) CreateExpense(ctx context.Context, token string, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	var out expenseDTO
	if err := c.do(ctx, http.MethodPost, "/expenses", nil, token, toExpenseDTO(e), &out); err != nil {
		return core.Expense{}, err
	}
	if out.ID == 0 && out.PurchaseItem == "" {
		return e, nil
	}
	return out.toExpense(), nil
}

// UpdateExpense patches an expense and returns the updated record.
func (c *Client) UpdateExpense(ctx context.Context, token string, e core.Expense) (core.Expense, error) {
	if e.ID <= 0 {
		return core.Expense{}, fmt.Errorf("update expense: missing id")
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	var out expenseDTO
	if err := c.do(ctx, http.MethodPatch, expensePath(e.ID), nil, token, toExpenseDTO(e), &out); err != nil {
		return core.Expense{}, err
	}
	if out.ID == 0 {
		return e, nil
	}
	return out.toExpense(), nil
}

// DeleteExpense removes an expense.
func (c *Client) DeleteExpense(ctx context.Context, token string, id int64) error {
	return c.do(ctx, http.MethodDelete, expensePath(id), nil, token, nil, nil)
}

// SummaryByCategory fetches per-category totals for an optional year/month.
func (c *Client) SummaryByCategory(ctx context.Context, token, year, month string) (core.Summary, error) {
	var out []categoryTotalDTO
	if err := c.do(ctx, http.MethodGet, "/expenses/summary_by_category", filterQuery(year, month), token, nil, &out); err != nil {
		return core.Summary{}, err
	}
	rows := make([]core.CategoryTotal, 0, len(out))
	for _, r := range out {
		rows = append(rows, core.CategoryTotal{Category: r.Category, Total: core.MoneyFromFloat(r.Total)})
	}
	return core.NewSummary(year, month, rows), nil
}

func expensePath(id int64) string {
	return "/expenses/" + strconv.FormatInt(id, 10)
}

func filterQuery(year, month string) url.Values {
	v := url.Values{}
	if year != "" {
		v.Set("year", year)
	}
	if month != "" {
		v.Set("month", month)
	}
	return v
}
