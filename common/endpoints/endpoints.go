// Package endpoints serves the admin HTTP endpoints of a running node.
package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/stanplayground/jobrunner/common/stats"
	"github.com/stanplayground/jobrunner/runner/jobs"
	"github.com/stanplayground/jobrunner/runner/slots"
)

// JobsSource is what /admin/jobs reports on; satisfied by *manager.Manager.
type JobsSource interface {
	ActiveJobs() []jobs.Info
	Slots() []slots.Slot
	Capacity() []int
}

type StatScope string

func MakeStatsReceiver(scope StatScope) stats.StatsReceiver {
	return stats.NewCustomStatsReceiver(stats.NewFinagleStatsRegistry).
		Precision(time.Millisecond).
		Scope(string(scope))
}

func NewAdminServer(addr string, stats stats.StatsReceiver, src JobsSource) *AdminServer {
	s := &AdminServer{Stats: stats, Jobs: src}
	s.server = &http.Server{Addr: addr, Handler: s.Handler()}
	return s
}

type AdminServer struct {
	Stats  stats.StatsReceiver
	Jobs   JobsSource
	server *http.Server
}

func (s *AdminServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", helpHandler)
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/admin/metrics.json", s.statsHandler)
	mux.HandleFunc("/admin/jobs", s.jobsHandler)
	return mux
}

// Serve blocks until the server fails or is shut down.
func (s *AdminServer) Serve() error {
	log.Infof("Serving admin endpoints on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *AdminServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Common paths: '/health', '/admin/metrics.json', '/admin/jobs'", http.StatusNotImplemented)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "ok")
}

const (
	contentTypeHdr = "Content-Type"
	contentTypeVal = "application/json; charset=utf-8"
)

func (s *AdminServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(contentTypeHdr, contentTypeVal)

	pretty := r.URL.Query().Get("pretty") == "true"
	str := s.Stats.Render(pretty)
	if _, err := io.Copy(w, bytes.NewBuffer(str)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

type slotCapacity struct {
	slots.Slot
	Available int `json:"available"`
}

type jobsResponse struct {
	Active []jobs.Info    `json:"active"`
	Slots  []slotCapacity `json:"slots"`
}

func (s *AdminServer) jobsHandler(w http.ResponseWriter, r *http.Request) {
	resp := jobsResponse{Active: s.Jobs.ActiveJobs()}
	capacity := s.Jobs.Capacity()
	for i, slot := range s.Jobs.Slots() {
		sc := slotCapacity{Slot: slot}
		if i < len(capacity) {
			sc.Available = capacity[i]
		}
		resp.Slots = append(resp.Slots, sc)
	}
	w.Header().Set(contentTypeHdr, contentTypeVal)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.WithError(err).Error("Could not write jobs response")
	}
}
