// Package web serves a read-only JSON view of the submission history.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/waitroll/waitroll/internal/history"
)

const defaultRecentLimit = 50

type Server struct {
	store      *history.Store
	httpServer *http.Server
}

func NewServer(port int, store *history.Store) *Server {
	s := &Server{store: store}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", port),
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/submissions", s.handleSubmissions)
	})

	return r
}

func (s *Server) Start() error {
	fmt.Printf("Listening on http://%s\n", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type statsResponse struct {
	Total           int `json:"total"`
	Succeeded       int `json:"succeeded"`
	Failed          int `json:"failed"`
	MonthSucceeded  int `json:"month_succeeded"`
	MonthFailed     int `json:"month_failed"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	total, succeeded, failed, err := s.store.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	monthSucceeded, monthFailed, err := s.store.MonthlyStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, statsResponse{
		Total:          total,
		Succeeded:      succeeded,
		Failed:         failed,
		MonthSucceeded: monthSucceeded,
		MonthFailed:    monthFailed,
	})
}

type submissionResponse struct {
	Email       string    `json:"email"`
	Occupation  string    `json:"occupation,omitempty"`
	Success     bool      `json:"success"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func (s *Server) handleSubmissions(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	records, err := s.store.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]submissionResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, submissionResponse{
			Email:       rec.Email,
			Occupation:  rec.Occupation,
			Success:     rec.Success,
			SubmittedAt: rec.SubmittedAt,
		})
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
