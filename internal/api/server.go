package api

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"DHTSpectra/internal/ai"
	"DHTSpectra/internal/config"
	"DHTSpectra/internal/model"
	"DHTSpectra/internal/observability"
	"DHTSpectra/internal/tracker"
)

//go:embed static
var staticFiles embed.FS

// Server is the read-side HTTP surface: JSON endpoints over the metric store
// plus the embedded dashboard. It never writes to the store.
type Server struct {
	store    model.Store
	tracker  *tracker.Tracker
	analyzer *ai.Analyzer
	metrics  *observability.Metrics
	auth     *Auth
	cfg      *config.Config
	interval time.Duration
}

// NewServer creates the API server. tracker, analyzer and metrics are
// optional.
func NewServer(cfg *config.Config, st model.Store, tr *tracker.Tracker,
	analyzer *ai.Analyzer, metrics *observability.Metrics) (*Server, error) {

	interval, err := time.ParseDuration(cfg.Scheduler.Interval)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler interval: %w", err)
	}
	auth, err := NewAuth(cfg.API)
	if err != nil {
		return nil, err
	}
	return &Server{
		store:    st,
		tracker:  tr,
		analyzer: analyzer,
		metrics:  metrics,
		auth:     auth,
		cfg:      cfg,
		interval: interval,
	}, nil
}

// Router builds the route table. The data endpoints under /api/v1 sit behind
// the bearer middleware when auth is enabled; health, config and the
// dashboard itself stay open.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/v1/login", s.loginHandler).Methods("POST")

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	if s.auth != nil {
		apiRouter.Use(s.auth.Middleware)
	}
	apiRouter.HandleFunc("/windows", s.windowsHandler).Methods("GET")
	apiRouter.HandleFunc("/samples", s.samplesHandler).Methods("GET")
	apiRouter.HandleFunc("/summary", s.summaryHandler).Methods("GET")
	apiRouter.HandleFunc("/overview", s.overviewHandler).Methods("GET")
	apiRouter.HandleFunc("/nodes", s.nodesHandler).Methods("GET")
	apiRouter.HandleFunc("/analyze", s.analyzeHandler).Methods("POST")

	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.HandleFunc("/config.json", s.configHandler).Methods("GET")
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	staticContent, _ := fs.Sub(staticFiles, "static")
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(staticContent))))
	r.HandleFunc("/", s.indexHandler).Methods("GET")

	return r
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	data, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "index.html not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
