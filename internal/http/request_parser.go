// This file holds request decoding and form validation. Forms arrive either
// url-encoded (plain forms and htmx) or as JSON (htmx json-enc); both decode
// into the same url.Values before validation.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"expenses/internal/core"
)

const maxFormBytes = 64 << 10

// FieldErrors maps a form field name to the message shown next to it.
type FieldErrors map[string]string

// Messages flattens the errors in a stable field order.
func (fe FieldErrors) Messages(order ...string) []string {
	out := make([]string, 0, len(fe))
	seen := make(map[string]bool, len(fe))
	for _, f := range order {
		if msg, ok := fe[f]; ok {
			out = append(out, msg)
			seen[f] = true
		}
	}
	for f, msg := range fe {
		if !seen[f] {
			out = append(out, msg)
		}
	}
	return out
}

// expenseInput is the raw expense form. Field names match the API's JSON.
type expenseInput struct {
	PurchaseItem string `form:"purchase_item" validate:"required,max=200"`
	Category     string `form:"category" validate:"required,category"`
	Amount       string `form:"amount" validate:"required,amount"`
	Date         string `form:"date" validate:"required,datetime=2006-01-02"`
}

var expenseFieldOrder = []string{"purchase_item", "category", "amount", "date"}

type loginInput struct {
	Username string `form:"username" validate:"required,max=80"`
	Password string `form:"password" validate:"required,max=200"`
}

type signupInput struct {
	Username             string `form:"username" validate:"required,min=3,max=80"`
	Password             string `form:"password" validate:"required,min=6,max=200"`
	PasswordConfirmation string `form:"password_confirmation" validate:"required,eqfield=Password"`
}

var credentialFieldOrder = []string{"username", "password", "password_confirmation"}

// newValidator registers the domain rules used by the form structs and
// reports field names by their form tag.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		_, err := core.ParseCategory(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if _, frac, ok := strings.Cut(strings.ReplaceAll(s, ",", "."), "."); ok && len(frac) > 2 {
			return false
		}
		cents, err := core.ParseDecimalToCents(s)
		return err == nil && cents > 0
	})
	return v
}

// validate runs v over input and converts failures to FieldErrors.
func validate(v *validator.Validate, input any) FieldErrors {
	err := v.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"": err.Error()}
	}
	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		if _, dup := out[fe.Field()]; !dup {
			out[fe.Field()] = fieldMessage(fe)
		}
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	label := fieldLabels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "category":
		return "Please select a valid category"
	case "amount":
		return "Amount must be a positive number with at most 2 decimals"
	case "datetime":
		return "Date must be a valid date"
	case "eqfield":
		return "Passwords do not match"
	}
	return label + " is invalid"
}

var fieldLabels = map[string]string{
	"purchase_item":         "Purchase item",
	"category":              "Category",
	"amount":                "Amount",
	"date":                  "Date",
	"username":              "Username",
	"password":              "Password",
	"password_confirmation": "Password confirmation",
}

// readForm decodes a url-encoded or JSON request body. Query parameters are
// not included.
func readForm(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		return r.PostForm, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxFormBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxFormBytes {
		return nil, errors.New("request body too large")
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode json body: %w", err)
	}
	out := make(url.Values, len(raw))
	for k, v := range raw {
		out.Set(k, stringValue(v))
	}
	return out, nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

func expenseInputFrom(form url.Values) expenseInput {
	return expenseInput{
		PurchaseItem: sanitizeInput(form.Get("purchase_item")),
		Category:     sanitizeInput(form.Get("category")),
		Amount:       strings.TrimSpace(form.Get("amount")),
		Date:         strings.TrimSpace(form.Get("date")),
	}
}

// toExpense converts validated input. It still runs the domain checks so a
// rule added to core cannot be skipped by the form layer.
func (in expenseInput) toExpense(id int64) (core.Expense, error) {
	cat, err := core.ParseCategory(in.Category)
	if err != nil {
		return core.Expense{}, err
	}
	cents, err := core.ParseDecimalToCents(in.Amount)
	if err != nil {
		return core.Expense{}, core.ErrInvalidAmount
	}
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.Expense{}, err
	}
	e := core.Expense{
		ID:           id,
		PurchaseItem: in.PurchaseItem,
		Category:     cat,
		Amount:       core.Money{Cents: cents},
		Date:         date,
	}
	return e, e.Validate()
}

// inputFromExpense fills a form with an existing record.
func inputFromExpense(e core.Expense) expenseInput {
	return expenseInput{
		PurchaseItem: e.PurchaseItem,
		Category:     e.Category.String(),
		Amount:       e.Amount.Decimal(),
		Date:         e.Date.String(),
	}
}

// parseListQuery reads page and filters from the query string. Invalid
// filters are dropped rather than rejected.
func parseListQuery(r *http.Request, perPage int) core.ListQuery {
	q := r.URL.Query()
	page, _ := strconv.Atoi(strings.TrimSpace(q.Get("page")))
	year, err := core.NormalizeYear(q.Get("year"))
	if err != nil {
		year = ""
	}
	month, err := core.NormalizeMonth(q.Get("month"))
	if err != nil {
		month = ""
	}
	return core.ListQuery{Page: page, PerPage: perPage, Year: year, Month: month}.Normalize()
}

// parseSummaryFilter applies defaults only when the parameter is absent;
// an explicit empty value means "All".
func parseSummaryFilter(r *http.Request, defYear, defMonth string) (year, month string) {
	q := r.URL.Query()
	year, month = defYear, defMonth
	if q.Has("year") {
		if y, err := core.NormalizeYear(q.Get("year")); err == nil {
			year = y
		}
	}
	if q.Has("month") {
		if m, err := core.NormalizeMonth(q.Get("month")); err == nil {
			month = m
		}
	}
	return year, month
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid expense id %q", r.PathValue("id"))
	}
	return id, nil
}

// sanitizeInput trims and strips control characters except tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
