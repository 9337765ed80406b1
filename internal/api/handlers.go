package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"DHTSpectra/internal/model"
	"DHTSpectra/internal/sysinfo"
)

const (
	defaultLimit = 300
	maxLimit     = 5000
	// overviewPoints matches roughly 24 hours of one-minute windows.
	overviewPoints = 1440
)

func parseLimit(r *http.Request) int {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

// parseRange returns the optional from/to query bounds. Both must be given
// for a range query.
func parseRange(r *http.Request) (from, to time.Time, ok bool, err error) {
	fromRaw := r.URL.Query().Get("from")
	toRaw := r.URL.Query().Get("to")
	if fromRaw == "" && toRaw == "" {
		return time.Time{}, time.Time{}, false, nil
	}
	if fromRaw == "" || toRaw == "" {
		return time.Time{}, time.Time{}, false, fmt.Errorf("from and to must be given together")
	}
	from, err = time.Parse(time.RFC3339, fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("invalid from: %w", err)
	}
	to, err = time.Parse(time.RFC3339, toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("invalid to: %w", err)
	}
	return from, to, true, nil
}

// windowsHandler returns recent traffic windows, or a timestamp range when
// from/to are given. Results are always ascending.
func (s *Server) windowsHandler(w http.ResponseWriter, r *http.Request) {
	from, to, ranged, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if ranged {
		records, err := s.store.QueryRange(model.KindWindow, from, to)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		windows := make([]model.TrafficWindow, 0, len(records))
		for _, rec := range records {
			windows = append(windows, *rec.Window)
		}
		writeJSON(w, http.StatusOK, windows)
		return
	}

	windows, err := s.store.RecentWindows(parseLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if windows == nil {
		windows = []model.TrafficWindow{}
	}
	writeJSON(w, http.StatusOK, windows)
}

// samplesHandler returns recent system samples, or a timestamp range when
// from/to are given.
func (s *Server) samplesHandler(w http.ResponseWriter, r *http.Request) {
	from, to, ranged, err := parseRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if ranged {
		records, err := s.store.QueryRange(model.KindSample, from, to)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		samples := make([]model.Sample, 0, len(records))
		for _, rec := range records {
			samples = append(samples, *rec.Sample)
		}
		writeJSON(w, http.StatusOK, samples)
		return
	}

	samples, err := s.store.RecentSamples(parseLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if samples == nil {
		samples = []model.Sample{}
	}
	writeJSON(w, http.StatusOK, samples)
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.SummaryStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type overviewResponse struct {
	History   []model.TrafficWindow `json:"history"`
	Samples   []model.Sample        `json:"samples"`
	LatestTop []model.TalkerStat    `json:"latest_top"`
	Nodes     []model.NodeCandidate `json:"nodes"`
	Health    *model.Health         `json:"health"`
}

// overviewHandler is the dashboard's single polling endpoint: window history,
// sample history, the newest window's top talkers, node candidates and
// health, in one payload.
func (s *Server) overviewHandler(w http.ResponseWriter, r *http.Request) {
	windows, err := s.store.RecentWindows(overviewPoints)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	samples, err := s.store.RecentSamples(overviewPoints)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := overviewResponse{
		History:   windows,
		Samples:   samples,
		LatestTop: []model.TalkerStat{},
		Nodes:     []model.NodeCandidate{},
	}
	if len(windows) > 0 && windows[len(windows)-1].TopTalkers != nil {
		resp.LatestTop = windows[len(windows)-1].TopTalkers
	}
	if s.tracker != nil {
		resp.Nodes = s.tracker.Candidates()
	}
	if resp.History == nil {
		resp.History = []model.TrafficWindow{}
	}
	if resp.Samples == nil {
		resp.Samples = []model.Sample{}
	}

	health, err := s.computeHealth(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Health = health

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) nodesHandler(w http.ResponseWriter, r *http.Request) {
	candidates := []model.NodeCandidate{}
	if s.tracker != nil {
		candidates = s.tracker.Candidates()
	}
	writeJSON(w, http.StatusOK, candidates)
}

// computeHealth derives the monitor status from the newest window: cold with
// no data, ok while the last window saw packets, idle otherwise.
func (s *Server) computeHealth(r *http.Request) (*model.Health, error) {
	stats, err := s.store.SummaryStats()
	if err != nil {
		return nil, err
	}

	health := &model.Health{
		Status:          "cold",
		Points:          stats.WindowCount,
		IntervalSeconds: int(s.interval.Seconds()),
	}

	windows, err := s.store.RecentWindows(1)
	if err != nil {
		return nil, err
	}
	if len(windows) > 0 {
		last := windows[0]
		health.LastTS = &last.Timestamp
		health.LastPackets = &last.TotalPackets
		health.LastBytes = &last.TotalBytes
		age := time.Since(last.Timestamp).Seconds()
		health.AgeSeconds = &age
		if last.TotalPackets > 0 {
			health.Status = "ok"
		} else {
			health.Status = "idle"
		}
	}

	if name := s.cfg.Process.WatchName; name != "" {
		health.ProcessName = name
		if info, err := sysinfo.ProcessInfo(r.Context(), name); err == nil {
			health.Process = info
		}
	}
	return health, nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health, err := s.computeHealth(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, health)
}

type configResponse struct {
	Hostname        string `json:"hostname"`
	Port            int    `json:"port"`
	Interface       string `json:"iface"`
	IntervalSeconds int    `json:"interval_seconds"`
	ListenAddr      string `json:"listen_addr"`
	AuthEnabled     bool   `json:"auth_enabled"`
}

// configHandler returns the sanitized runtime config consumed by the UI.
// Secrets never appear here.
func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	writeJSON(w, http.StatusOK, configResponse{
		Hostname:        hostname,
		Port:            s.cfg.Capture.Port,
		Interface:       s.cfg.Capture.Interface,
		IntervalSeconds: int(s.interval.Seconds()),
		ListenAddr:      s.cfg.API.ListenAddr,
		AuthEnabled:     s.auth != nil,
	})
}

type analyzeRequest struct {
	Text string `json:"text"`
}

// analyzeHandler streams an AI-written assessment of recent monitoring data.
// With no request text, the prompt is built from the newest windows and
// samples.
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	if s.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "AI analysis is not configured")
		return
	}

	var req analyzeRequest
	if r.Body != nil {
		body, err := io.ReadAll(r.Body)
		if err == nil && len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}
	}

	input := req.Text
	if input == "" {
		built, err := s.buildAnalysisInput()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		input = built
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	err := s.analyzer.AnalyzeStream(r.Context(), input, func(chunk string) error {
		if _, err := io.WriteString(w, chunk); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		// Headers are gone; all we can do is log through the wrapped error.
		fmt.Fprintf(w, "\n[analysis aborted: %v]\n", err)
	}
}

// buildAnalysisInput summarizes the recent store contents as prompt text.
func (s *Server) buildAnalysisInput() (string, error) {
	windows, err := s.store.RecentWindows(30)
	if err != nil {
		return "", err
	}
	samples, err := s.store.RecentSamples(30)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Recent traffic windows (oldest first):\n")
	for _, w := range windows {
		fmt.Fprintf(&b, "%s peers=%d bytes=%d packets=%d in=%d out=%d churn=+%d/-%d\n",
			w.Timestamp.Format(time.RFC3339), w.UniquePeers, w.TotalBytes, w.TotalPackets,
			w.InBytes, w.OutBytes, w.NewPeers, w.ExpiredPeers)
	}
	b.WriteString("\nRecent system samples (oldest first):\n")
	for _, sm := range samples {
		fmt.Fprintf(&b, "%s cpu=%.1f%% mem=%.1f%% disk=%.1f%%\n",
			sm.Timestamp.Format(time.RFC3339), sm.CPUPercent, sm.MemPercent, sm.DiskPercent)
	}
	return b.String(), nil
}
