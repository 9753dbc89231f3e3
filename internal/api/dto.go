package api

import (
	"expenses/internal/core"
)

// expenseDTO is the JSON shape of an expense on the wire.
type expenseDTO struct {
	ID           int64   `json:"id,omitempty"`
	PurchaseItem string  `json:"purchase_item"`
	Category     string  `json:"category"`
	Amount       float64 `json:"amount"`
	Date         string  `json:"date"`
}

type userDTO struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type credentialsDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// authDTO is the login/signup response. Some deployments name the token
// access_token, so both are accepted.
type authDTO struct {
	Token       string   `json:"token"`
	AccessToken string   `json:"access_token"`
	User        *userDTO `json:"user"`
}

type pageDTO struct {
	Expenses   []expenseDTO `json:"expenses"`
	Page       int          `json:"page"`
	TotalPages int          `json:"total_pages"`
}

type filterDTO struct {
	Expenses []expenseDTO `json:"expenses"`
}

type categoryTotalDTO struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

func toExpenseDTO(e core.Expense) expenseDTO {
	return expenseDTO{
		PurchaseItem: e.PurchaseItem,
		Category:     e.Category.String(),
		Amount:       e.Amount.Float(),
		Date:         e.Date.String(),
	}
}

// toExpense converts a wire record. Unknown categories are kept verbatim so
// the list shows what the service stored; a bad date renders as "No date".
func (d expenseDTO) toExpense() core.Expense {
	date, _ := core.ParseDate(d.Date)
	return core.Expense{
		ID:           d.ID,
		PurchaseItem: d.PurchaseItem,
		Category:     core.Category(d.Category),
		Amount:       core.MoneyFromFloat(d.Amount),
		Date:         date,
	}
}

func toExpenses(in []expenseDTO) []core.Expense {
	out := make([]core.Expense, 0, len(in))
	for _, d := range in {
		out = append(out, d.toExpense())
	}
	return out
}

func (u userDTO) toUser() core.User {
	return core.User{ID: u.ID, Username: u.Username}
}
