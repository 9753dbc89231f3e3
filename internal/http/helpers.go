package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"expenses/internal/api"
	"expenses/internal/core"
	"expenses/internal/events"
	applog "expenses/internal/log"
	"expenses/internal/session"
)

type sessionContextKey struct{}

func withSession(ctx context.Context, s session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

func sessionFrom(ctx context.Context) (session.Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(session.Session)
	return s, ok
}

// sessionHandler is a handler that runs with a verified session.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess session.Session)

// requireSession loads the session, re-checking the token with /me when it
// is due. Without a usable session the user is sent to the login page.
func (s *Server) requireSession(next sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Bootstrap(w, r, s.api, api.IsUnauthorized)
		if errors.Is(err, session.ErrNotFound) {
			redirect(w, r, "/login")
			return
		}
		if err != nil {
			applog.LogError(r.Context(), "Session bootstrap failed", err, applog.ComponentSession, applog.OpVerify, nil)
			s.renderError(w, r, http.StatusBadGateway, "The expense service is unavailable. Please try again.")
			return
		}
		ctx := withSession(r.Context(), sess)
		ctx = applog.NewContext(ctx, applog.FromContext(ctx).With(applog.FieldUserID, sess.User.ID))
		next(w, r.WithContext(ctx), sess)
	})
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsPartial reports whether htmx asked for a fragment rather than a
// boosted full page.
func wantsPartial(r *http.Request) bool {
	return isHTMX(r) && r.Header.Get("HX-Boosted") != "true"
}

// redirect navigates the browser. htmx requests get HX-Redirect because a
// 3xx would be followed inside the XHR and swapped into the page.
func redirect(w http.ResponseWriter, r *http.Request, to string) {
	if isHTMX(r) {
		NewHTMXResponse().Redirect(to).Write(w)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// apiFailure turns an error from the expense service into a response. A
// rejected token ends the session.
func (s *Server) apiFailure(w http.ResponseWriter, r *http.Request, sess session.Session, err error, op, fallback string) {
	ctx := r.Context()
	switch {
	case api.IsUnauthorized(err):
		applog.FromContext(ctx).WithComponent(applog.ComponentAuth).
			InfoContext(ctx, "Token rejected by expense service", applog.FieldOperation, op)
		s.sessions.End(ctx, w, r)
		s.summaries.DeletePrefix(summaryKeyPrefix(sess.ID))
		redirect(w, r, "/login")
	case errors.Is(err, api.ErrNotFound):
		s.renderError(w, r, http.StatusNotFound, "Expense not found.")
	case errors.Is(err, context.Canceled):
		// Client went away.
	default:
		applog.LogError(ctx, "Expense service call failed", err, applog.ComponentAPI, op, nil)
		msgs := api.Messages(err, fallback)
		s.renderError(w, r, http.StatusBadGateway, msgs[0])
	}
}

// afterMutation drops cached summaries for the session and announces the
// change. Publishing never fails the request.
func (s *Server) afterMutation(ctx context.Context, sess session.Session, action events.Action, e core.Expense) {
	s.summaries.DeletePrefix(summaryKeyPrefix(sess.ID))

	logger := applog.FromContext(ctx).WithComponent(applog.ComponentExpense)
	logger.InfoContext(ctx, "Expense "+string(action),
		applog.NewFields().WithExpense(e.ID, e.Category.String(), e.Amount.Cents).ToSlice()...)

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, events.NewExpenseEvent(action, e.ID, sess.User.ID)); err != nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentEvents).
			WarnContext(ctx, "Failed to publish expense event", applog.FieldExpenseID, e.ID, applog.FieldError, err.Error())
	}
}
