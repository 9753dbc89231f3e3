package http

import (
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/internal/api"
	"expenses/internal/core"
	"expenses/internal/events"
	applog "expenses/internal/log"
	"expenses/internal/session"
)

// handleList renders one page of expenses with the spending total for the
// same filter. Both are fetched concurrently; a failed total only hides it.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request, sess session.Session) {
	q := parseListQuery(r, s.opts.PerPage)
	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentExpense)

	var (
		page    core.PageResult
		summary *core.Summary
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		page, err = s.api.ListExpenses(ctx, sess.Token, q)
		return err
	})
	g.Go(func() error {
		sum, err := s.summary(ctx, sess, q.Year, q.Month)
		if err != nil {
			if api.IsUnauthorized(err) {
				return err
			}
			logger.WarnContext(ctx, "Spending total unavailable", applog.FieldError, err.Error())
			return nil
		}
		summary = &sum
		return nil
	})
	if err := g.Wait(); err != nil {
		s.apiFailure(w, r, sess, err, applog.OpList, "Failed to load expenses.")
		return
	}

	logger.DebugContext(r.Context(), "Expenses listed",
		applog.FieldPage, page.Page, "total_pages", page.TotalPages, "count", len(page.Expenses))

	view := s.newListView(r, q, page)
	view.Summary = summary
	s.renderList(w, r, view)
}

// handleFilter is the Filter button: every expense matching the filter,
// without paging.
func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request, sess session.Session) {
	q := parseListQuery(r, s.opts.PerPage)
	expenses, err := s.api.FilterExpenses(r.Context(), sess.Token, q.Year, q.Month)
	if err != nil {
		s.apiFailure(w, r, sess, err, applog.OpFilter, "Failed to filter expenses.")
		return
	}
	view := s.newListView(r, q, core.NewPageResult(expenses, 1, 1))
	view.Filtered = true
	view.Pages = nil
	s.renderList(w, r, view)
}

func (s *Server) renderList(w http.ResponseWriter, r *http.Request, view listView) {
	if wantsPartial(r) {
		s.renderPartial(w, r, http.StatusOK, "expense_list", view)
		return
	}
	s.renderPage(w, r, http.StatusOK, "list", view)
}

func (s *Server) handleNewExpense(w http.ResponseWriter, r *http.Request, sess session.Session) {
	in := expenseInput{Date: time.Now().Format("2006-01-02")}
	s.renderPage(w, r, http.StatusOK, "new", s.newFormView(r, "New Expense", 0, in, nil))
}

// handlePreview renders the card preview next to the new expense form as
// the user types. Nothing is validated or sent to the service.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, sess session.Session) {
	form, err := readForm(w, r)
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid request.")
		return
	}
	s.renderPartial(w, r, http.StatusOK, "preview", expenseInputFrom(form))
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request, sess session.Session) {
	form, err := readForm(w, r)
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid request.")
		return
	}
	in := expenseInputFrom(form)
	if fe := validate(s.validate, in); fe != nil {
		s.renderExpenseForm(w, r, http.StatusUnprocessableEntity, 0, in, fe.Messages(expenseFieldOrder...))
		return
	}
	e, err := in.toExpense(0)
	if err != nil {
		s.renderExpenseForm(w, r, http.StatusUnprocessableEntity, 0, in, []string{err.Error()})
		return
	}

	created, err := s.api.CreateExpense(r.Context(), sess.Token, e)
	if err != nil {
		if msgs, ok := rejectionMessages(err, "Submission failed."); ok {
			s.renderExpenseForm(w, r, http.StatusUnprocessableEntity, 0, in, msgs)
			return
		}
		s.apiFailure(w, r, sess, err, applog.OpCreate, "Submission failed.")
		return
	}
	if created.ID == 0 {
		created = e
	}
	s.afterMutation(r.Context(), sess, events.ActionCreated, created)

	if isHTMX(r) {
		NewHTMXResponse().
			TriggerExpenseCreated(created.ID).
			TriggerSuccessNotification("Expense added").
			Redirect("/").
			Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleExpenseCard(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id, err := parseID(r)
	if err != nil {
		s.renderError(w, r, http.StatusNotFound, "Expense not found.")
		return
	}
	if !wantsPartial(r) {
		redirect(w, r, "/")
		return
	}
	e, err := s.api.GetExpense(r.Context(), sess.Token, id)
	if err != nil {
		s.apiFailure(w, r, sess, err, applog.OpRead, "Failed to load expense.")
		return
	}
	s.renderPartial(w, r, http.StatusOK, "expense_card", e)
}

func (s *Server) handleEditExpense(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id, err := parseID(r)
	if err != nil {
		s.renderError(w, r, http.StatusNotFound, "Expense not found.")
		return
	}
	e, err := s.api.GetExpense(r.Context(), sess.Token, id)
	if err != nil {
		s.apiFailure(w, r, sess, err, applog.OpRead, "Failed to load expense.")
		return
	}
	s.renderExpenseForm(w, r, http.StatusOK, id, inputFromExpense(e), nil)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id, err := parseID(r)
	if err != nil {
		s.renderError(w, r, http.StatusNotFound, "Expense not found.")
		return
	}
	form, err := readForm(w, r)
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid request.")
		return
	}
	in := expenseInputFrom(form)
	if fe := validate(s.validate, in); fe != nil {
		s.renderExpenseForm(w, r, http.StatusUnprocessableEntity, id, in, fe.Messages(expenseFieldOrder...))
		return
	}
	e, err := in.toExpense(id)
	if err != nil {
		s.renderExpenseForm(w, r, http.StatusUnprocessableEntity, id, in, []string{err.Error()})
		return
	}

	updated, err := s.api.UpdateExpense(r.Context(), sess.Token, e)
	if err != nil {
		if msgs, ok := rejectionMessages(err, "Update failed."); ok {
			s.renderExpenseForm(w, r, http.StatusUnprocessableEntity, id, in, msgs)
			return
		}
		s.apiFailure(w, r, sess, err, applog.OpUpdate, "Update failed.")
		return
	}
	if updated.ID == 0 {
		updated = e
	}
	s.afterMutation(r.Context(), sess, events.ActionUpdated, updated)

	if !wantsPartial(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	html, err := s.renderToBytes("expense_card", updated)
	if err != nil {
		s.renderFailure(w, r, err)
		return
	}
	NewHTMXResponse().
		TriggerExpenseUpdated(updated.ID).
		TriggerSuccessNotification("Expense updated").
		BodyHTML(html).
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id, err := parseID(r)
	if err != nil {
		s.renderError(w, r, http.StatusNotFound, "Expense not found.")
		return
	}
	if err := s.api.DeleteExpense(r.Context(), sess.Token, id); err != nil {
		s.apiFailure(w, r, sess, err, applog.OpDelete, "Delete failed.")
		return
	}
	s.afterMutation(r.Context(), sess, events.ActionDeleted, core.Expense{ID: id})

	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	// Empty body: the card swaps itself out of the list.
	NewHTMXResponse().
		TriggerExpenseDeleted(id).
		TriggerSuccessNotification("Expense deleted").
		Write(w)
}

// renderExpenseForm shows the inline edit form (htmx) or the new/edit page.
func (s *Server) renderExpenseForm(w http.ResponseWriter, r *http.Request, status int, id int64, in expenseInput, errs []string) {
	title, page := "New Expense", "new"
	if id != 0 {
		title, page = "Edit Expense", "edit"
	}
	view := s.newFormView(r, title, id, in, errs)
	if id != 0 && wantsPartial(r) {
		s.renderPartial(w, r, status, "expense_edit", view)
		return
	}
	if id == 0 && wantsPartial(r) {
		s.renderPartial(w, r, status, "expense_form", view)
		return
	}
	s.renderPage(w, r, status, page, view)
}

// rejectionMessages reports whether the service refused the input itself
// (400 or 422) and returns what it said.
func rejectionMessages(err error, fallback string) ([]string, bool) {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		return nil, false
	}
	switch apiErr.Status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apiErr.UserMessages(fallback), true
	}
	return nil, false
}
