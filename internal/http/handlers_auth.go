package http

import (
	"errors"
	"net/http"

	"expenses/internal/api"
	applog "expenses/internal/log"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sessions.Load(r); err == nil {
		redirect(w, r, "/")
		return
	}
	s.renderPage(w, r, http.StatusOK, "login", authView{pageData: s.pageData(r, "Login")})
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sessions.Load(r); err == nil {
		redirect(w, r, "/")
		return
	}
	s.renderPage(w, r, http.StatusOK, "signup", authView{pageData: s.pageData(r, "Sign Up")})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	form, err := readForm(w, r)
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid request.")
		return
	}
	in := loginInput{
		Username: sanitizeInput(form.Get("username")),
		Password: form.Get("password"),
	}
	view := authView{pageData: s.pageData(r, "Login"), Username: in.Username}
	if fe := validate(s.validate, in); fe != nil {
		view.Errors = fe.Messages(credentialFieldOrder...)
		s.renderPage(w, r, http.StatusUnprocessableEntity, "login", view)
		return
	}

	res, err := s.api.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		status, msgs := s.authFailure(r, err, applog.OpLogin, "Invalid username or password.")
		view.Errors = msgs
		s.renderPage(w, r, status, "login", view)
		return
	}
	s.startSession(w, r, res, "login", view)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	form, err := readForm(w, r)
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid request.")
		return
	}
	in := signupInput{
		Username:             sanitizeInput(form.Get("username")),
		Password:             form.Get("password"),
		PasswordConfirmation: form.Get("password_confirmation"),
	}
	view := authView{pageData: s.pageData(r, "Sign Up"), Username: in.Username}
	if fe := validate(s.validate, in); fe != nil {
		view.Errors = fe.Messages(credentialFieldOrder...)
		s.renderPage(w, r, http.StatusUnprocessableEntity, "signup", view)
		return
	}

	res, err := s.api.Signup(r.Context(), in.Username, in.Password)
	if err != nil {
		status, msgs := s.authFailure(r, err, applog.OpSignup, "Sign up failed.")
		view.Errors = msgs
		s.renderPage(w, r, status, "signup", view)
		return
	}
	s.startSession(w, r, res, "signup", view)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, res api.AuthResult, page string, view authView) {
	if _, err := s.sessions.Start(r.Context(), w, res.Token, res.User); err != nil {
		applog.LogError(r.Context(), "Failed to start session", err, applog.ComponentSession, applog.OpCreate, nil)
		view.Errors = []string{"Could not sign you in. Please try again."}
		s.renderPage(w, r, http.StatusInternalServerError, page, view)
		return
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).
		InfoContext(r.Context(), "User signed in", applog.FieldUserID, res.User.ID)
	redirect(w, r, "/")
}

// authFailure picks the status and messages for a failed login or signup.
// Rejections by the service show its own messages.
func (s *Server) authFailure(r *http.Request, err error, op, fallback string) (int, []string) {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
		status := http.StatusUnprocessableEntity
		if api.IsUnauthorized(err) {
			status = http.StatusUnauthorized
		}
		return status, apiErr.UserMessages(fallback)
	}
	applog.LogError(r.Context(), "Authentication request failed", err, applog.ComponentAuth, op, nil)
	return http.StatusBadGateway, []string{"The expense service is unavailable. Please try again."}
}

// handleLogout ends the local session first so the user is logged out even
// when the service cannot be reached.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := s.sessions.End(ctx, w, r)
	if ok {
		s.summaries.DeletePrefix(summaryKeyPrefix(sess.ID))
		if err := s.api.Logout(ctx, sess.Token); err != nil {
			applog.FromContext(ctx).WithComponent(applog.ComponentAuth).
				DebugContext(ctx, "Service logout failed", applog.FieldError, err.Error())
		}
	}
	redirect(w, r, "/login")
}
