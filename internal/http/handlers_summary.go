package http

import (
	"context"
	"net/http"

	"expenses/internal/chart"
	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/session"
)

const pieRadius = 120

func summaryKeyPrefix(sessionID string) string {
	return sessionID + "|"
}

// summary fetches the category breakdown, served from a short-lived
// per-session cache that mutations invalidate.
func (s *Server) summary(ctx context.Context, sess session.Session, year, month string) (core.Summary, error) {
	key := summaryKeyPrefix(sess.ID) + year + "|" + month
	if sum, ok := s.summaries.Get(key); ok {
		return sum, nil
	}
	sum, err := s.api.SummaryByCategory(ctx, sess.Token, year, month)
	if err != nil {
		return core.Summary{}, err
	}
	s.summaries.Set(key, sum)
	return sum, nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, sess session.Session) {
	year, month := parseSummaryFilter(r, s.opts.SummaryDefaultYear, s.opts.SummaryDefaultMonth)

	sum, err := s.summary(r.Context(), sess, year, month)
	if err != nil {
		s.apiFailure(w, r, sess, err, applog.OpSummary, "Failed to load summary.")
		return
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentSummary).
		DebugContext(r.Context(), "Summary loaded", "year", year, "month", month, "categories", len(sum.Rows))

	view := summaryView{
		pageData: s.pageData(r, "Summary"),
		Summary:  sum,
		Pie:      chart.NewPie(sum.Rows, pieRadius),
		Years:    s.opts.FilterYears,
		Months:   core.MonthOptions(),
	}
	if wantsPartial(r) {
		s.renderPartial(w, r, http.StatusOK, "summary_panel", view)
		return
	}
	s.renderPage(w, r, http.StatusOK, "summary", view)
}
