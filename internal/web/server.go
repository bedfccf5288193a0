package web

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tkuroda/mail-digest/internal/store"
)

// StatsStore is the read side of the run store the dashboard serves.
type StatsStore interface {
	LatestRun(ctx context.Context) (*store.RunStats, error)
	RunEmails(ctx context.Context, runID int64) ([]store.EmailRow, error)
}

// TriggerFunc starts one background pipeline run. It reports false when
// a run is already in flight; enforcing at most one concurrent run is
// the trigger's job, not the pipeline's.
type TriggerFunc func() bool

// Server exposes run stats, the latest summaries, and a manual trigger
// over HTTP.
type Server struct {
	store    StatsStore
	trigger  TriggerFunc
	server   *http.Server
	tmpl     *template.Template
}

func NewServer(addr string, st StatsStore, trigger TriggerFunc) *Server {
	s := &Server{
		store:    st,
		trigger:  trigger,
		tmpl:     template.Must(template.New("dashboard").Parse(dashboardHTML)),
	}
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router builds the route table. Exposed for handler tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	r.Get("/dashboard", s.handleDashboard)
	r.Get("/api/stats", s.handleStats)
	r.Get("/api/recent-summaries", s.handleRecentSummaries)
	r.Post("/api/trigger-manual", s.handleTrigger)

	return r
}

// Start begins serving HTTP in the background. Call Shutdown to stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("web: failed to listen on %s: %w", s.server.Addr, err)
	}
	go func() {
		log.Printf("web: dashboard listening on %s", s.server.Addr)
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("web: server error: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: encoding response: %v", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.LatestRun(r.Context())
	if err != nil {
		log.Printf("web: stats query failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats failed"})
		return
	}

	if stats == nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "waiting",
			"last_run": "Never",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_emails_today": stats.TotalEmails,
		"emails_processed":   stats.ProcessedEmails,
		"success_rate":       stats.SuccessRate,
		"last_run":           stats.RunDate.Format("2006-01-02 15:04:05"),
		"status":             "active",
	})
}

func (s *Server) handleRecentSummaries(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.LatestRun(r.Context())
	if err != nil {
		log.Printf("web: latest run query failed: %v", err)
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	if stats == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}

	rows, err := s.store.RunEmails(r.Context(), stats.ID)
	if err != nil {
		log.Printf("web: summaries query failed: %v", err)
		writeJSON(w, http.StatusOK, []any{})
		return
	}

	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, map[string]any{
			"number":  row.Number,
			"from":    row.Sender,
			"to":      row.Receiver,
			"subject": row.Subject,
			"summary": row.Summary,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if s.trigger == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "trigger not configured"})
		return
	}
	if !s.trigger() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a run is already in progress"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "running"})
}

const dashboardHTML = `<!DOCTYPE html>
<html>
<head><title>Mail Digest</title></head>
<body>
<h1>Mail Digest</h1>
{{if .Stats}}
<p>Last run: {{.Stats.RunDate.Format "2006-01-02 15:04:05"}} &mdash;
{{.Stats.ProcessedEmails}}/{{.Stats.TotalEmails}} summarized
({{printf "%.0f" .Stats.SuccessRate}}%)</p>
<table border="1" cellpadding="4">
<tr><th>#</th><th>From</th><th>Subject</th><th>Summary</th></tr>
{{range .Rows}}<tr><td>{{.Number}}</td><td>{{.Sender}}</td><td>{{.Subject}}</td><td>{{.Summary}}</td></tr>
{{end}}</table>
{{else}}
<p>No runs yet. POST /api/trigger-manual to start one.</p>
{{end}}
</body>
</html>
`

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	data := struct {
		Stats *store.RunStats
		Rows  []store.EmailRow
	}{}

	stats, err := s.store.LatestRun(r.Context())
	if err != nil {
		log.Printf("web: dashboard query failed: %v", err)
	}
	if stats != nil {
		data.Stats = stats
		rows, err := s.store.RunEmails(r.Context(), stats.ID)
		if err != nil {
			log.Printf("web: dashboard summaries query failed: %v", err)
		}
		data.Rows = rows
	}

	if err := s.tmpl.Execute(w, data); err != nil {
		log.Printf("web: rendering dashboard: %v", err)
	}
}
