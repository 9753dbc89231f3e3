// Package http serves the expense tracker's pages and htmx partials. Every
// page is rendered on the server from data fetched from the remote expense
// service with the bearer token held in the user's session.
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"expenses/internal/api"
	"expenses/internal/cache"
	"expenses/internal/core"
	"expenses/internal/events"
	applog "expenses/internal/log"
	"expenses/internal/middleware/ratelimit"
	"expenses/internal/middleware/security"
	"expenses/internal/middleware/trace"
	"expenses/internal/session"
	appweb "expenses/web"
)

// ExpenseAPI is the part of the remote service the pages use.
type ExpenseAPI interface {
	session.Verifier
	Login(ctx context.Context, username, password string) (api.AuthResult, error)
	Signup(ctx context.Context, username, password string) (api.AuthResult, error)
	Logout(ctx context.Context, token string) error
	ListExpenses(ctx context.Context, token string, q core.ListQuery) (core.PageResult, error)
	FilterExpenses(ctx context.Context, token, year, month string) ([]core.Expense, error)
	GetExpense(ctx context.Context, token string, id int64) (core.Expense, error)
	CreateExpense(ctx context.Context, token string, e core.Expense) (core.Expense, error)
	UpdateExpense(ctx context.Context, token string, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, token string, id int64) error
	SummaryByCategory(ctx context.Context, token, year, month string) (core.Summary, error)
}

// Options are the view and server settings.
type Options struct {
	Addr                string
	PerPage             int
	SummaryDefaultYear  string
	SummaryDefaultMonth string
	FilterYears         []string
	RateLimitPerMinute  int
	SummaryCacheTTL     time.Duration
}

// Deps are the collaborators the server is built from.
type Deps struct {
	API       ExpenseAPI
	Sessions  *session.Manager
	Publisher events.Publisher
	Caches    *cache.Manager
	Logger    *applog.Logger
	Tracer    oteltrace.Tracer
	// ReadyChecks are run by /readyz; any error makes the probe fail.
	ReadyChecks map[string]func(context.Context) error
}

type Server struct {
	http.Server

	opts      Options
	api       ExpenseAPI
	sessions  *session.Manager
	publisher events.Publisher
	logger    *applog.Logger
	validate  *validator.Validate
	ready     map[string]func(context.Context) error

	base  *template.Template
	pages map[string]*template.Template

	summaries *cache.LRUCache[core.Summary]
	limiter   *ratelimit.Limiter

	shutdownOnce sync.Once
}

const previewPath = "/expenses/preview"

var pageNames = []string{"login", "signup", "list", "new", "edit", "summary", "error"}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(opts Options, deps Deps) (*Server, error) {
	if deps.API == nil || deps.Sessions == nil {
		return nil, errors.New("new server: api and sessions are required")
	}
	if opts.PerPage < 1 {
		opts.PerPage = core.DefaultPerPage
	}
	if opts.SummaryCacheTTL <= 0 {
		opts.SummaryCacheTTL = time.Minute
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = applog.FromContext(context.Background())
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("")
	}

	s := &Server{
		opts:      opts,
		api:       deps.API,
		sessions:  deps.Sessions,
		publisher: deps.Publisher,
		logger:    deps.Logger.WithComponent(applog.ComponentHTTP),
		validate:  newValidator(),
		ready:     deps.ReadyChecks,
		summaries: cache.NewLRUCache[core.Summary](500, opts.SummaryCacheTTL),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
	}
	if deps.Caches != nil {
		deps.Caches.Register(s.summaries)
		deps.Caches.Register(s.limiter)
	}

	if err := s.parseTemplates(appweb.TemplatesFS); err != nil {
		return nil, err
	}

	ips, err := security.NewIPResolver()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	if err := s.routes(mux); err != nil {
		return nil, err
	}

	var h http.Handler = mux
	h = s.limiter.Middleware(ips.ClientIP, limited, s.onRateLimited)(h)
	h = security.NoStore(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = trace.NewMiddleware(s.logger, deps.Tracer, ips.ClientIP).Handler(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) error {
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssets(3600)(http.StripPrefix("/static/", http.FileServerFS(static))))

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /signup", s.handleSignupPage)
	mux.HandleFunc("POST /signup", s.handleSignup)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.Handle("GET /{$}", s.requireSession(s.handleList))
	mux.Handle("GET /expenses/filter", s.requireSession(s.handleFilter))
	mux.Handle("GET /expenses/new", s.requireSession(s.handleNewExpense))
	mux.Handle("POST "+previewPath, s.requireSession(s.handlePreview))
	mux.Handle("POST /expenses", s.requireSession(s.handleCreateExpense))
	mux.Handle("GET /expenses/{id}", s.requireSession(s.handleExpenseCard))
	mux.Handle("GET /expenses/{id}/edit", s.requireSession(s.handleEditExpense))
	mux.Handle("PATCH /expenses/{id}", s.requireSession(s.handleUpdateExpense))
	mux.Handle("POST /expenses/{id}", s.requireSession(s.handleUpdateExpense))
	mux.Handle("DELETE /expenses/{id}", s.requireSession(s.handleDeleteExpense))
	mux.Handle("POST /expenses/{id}/delete", s.requireSession(s.handleDeleteExpense))
	mux.Handle("GET /summary", s.requireSession(s.handleSummary))

	mux.HandleFunc("/", s.handleNotFound)
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for name, check := range s.ready {
		if err := check(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", "check", name, applog.FieldError, err.Error())
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready: " + name))
			return
		}
	}
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound, "Page not found.")
}

// limited selects the requests counted against the change budget. The live
// preview posts on every keystroke but changes nothing.
func limited(r *http.Request) bool {
	return ratelimit.Mutating(r) && r.URL.Path != previewPath
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).
		WarnContext(r.Context(), "Rate limit exceeded", applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
	if isHTMX(r) {
		NewHTMXResponse().
			Status(http.StatusTooManyRequests).
			Reswap("none").
			TriggerErrorNotification("Too many changes, please wait a minute.").
			Write(w)
		return
	}
	s.renderError(w, r, http.StatusTooManyRequests, "Too many changes, please wait a minute.")
}

func (s *Server) parseTemplates(fsys fs.FS) error {
	base, err := template.New("").Funcs(templateFuncs()).ParseFS(fsys, "templates/layout.html", "templates/partials.html")
	if err != nil {
		return fmt.Errorf("parse base templates: %w", err)
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.Must(base.Clone()).ParseFS(fsys, "templates/"+name+".html")
		if err != nil {
			return fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = t
	}
	s.base = base
	s.pages = pages
	return nil
}

// renderPage writes a full page wrapped in the layout.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	t, ok := s.pages[page]
	if !ok {
		s.renderFailure(w, r, fmt.Errorf("unknown page %q", page))
		return
	}
	s.write(w, r, status, t, "layout", data)
}

// renderPartial writes one named fragment for htmx to swap in.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	s.write(w, r, status, s.base, name, data)
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, status int, t *template.Template, name string, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		s.renderFailure(w, r, fmt.Errorf("execute template %s: %w", name, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderFailure(w http.ResponseWriter, r *http.Request, err error) {
	applog.LogError(r.Context(), "Template rendering failed", err, applog.ComponentTemplate, applog.OpRender, nil)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// renderError shows a message as a page, or as an error fragment for htmx.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if isHTMX(r) {
		ErrorResponse(status, message).TriggerErrorNotification(message).Write(w)
		return
	}
	data := errorView{pageData: s.pageData(r, "Error"), Status: status, Message: message}
	s.renderPage(w, r, status, "error", data)
}

func (s *Server) renderToBytes(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.base.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
