package server

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/davidgr87/whats-that-sound/internal/domain"
)

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/paths", s.handleGetPaths)
		r.Post("/paths", s.handlePostPaths)
		r.Get("/list", s.handleList)
		r.Get("/ready", s.handleReady)
		r.Get("/folder", s.handleFolder)
		r.Post("/decision", s.handleDecision)
		r.Get("/events", s.handleEvents)
		r.Get("/debug/jobs", s.handleDebugJobs)
	})
}

type readyEntry struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

func readyEntries(jobs []*domain.Job) []readyEntry {
	out := make([]readyEntry, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, readyEntry{Path: j.FolderPath, Name: filepath.Base(j.FolderPath)})
	}
	return out
}

// handleStatus reports the pipeline at a glance: the configured roots, the
// status histogram, session counters and the folders awaiting a decision.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.Store.Counts()
	if err != nil {
		respondStoreError(w, err)
		return
	}
	ready, err := s.Store.ReadyJobs(100)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	source, target := s.Dirs()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"source_dir": source,
		"target_dir": target,
		"counts":     counts,
		"processed":  s.Progress.Stats(),
		"total":      countChildren(source),
		"ready":      readyEntries(ready),
	})
}

// handleList returns the browsable subdirectories of a path, defaulting to
// the source root. Used by the directory picker.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path, _ = s.Dirs()
	}
	entries, err := listDirs(path)
	if err != nil {
		respondError(w, http.StatusBadRequest, "cannot list "+path+": "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"parent":  filepath.Dir(path),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	jobs, err := s.Store.ReadyJobs(limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ready": readyEntries(jobs)})
}

// handleFolder returns everything the review screen needs for one folder:
// the analyze metadata and the pending proposal.
func (s *Server) handleFolder(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	job, err := s.Store.GetResult(path)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if job == nil {
		respondError(w, http.StatusNotFound, "no pending proposal for "+path)
		return
	}

	meta, err := domain.DecodeAnalyzeMetadata(job.MetadataJSON)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	p, err := domain.ParseProposal(job.ResultJSON)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"metadata": meta,
		"proposal": p,
	})
}

// handleDebugJobs dumps recent rows, optionally filtered by status.
func (s *Server) handleDebugJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	var statuses []domain.JobStatus
	if raw := r.URL.Query().Get("statuses"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st := domain.JobStatus(strings.TrimSpace(part))
			if !st.Valid() {
				respondError(w, http.StatusBadRequest, "unknown status: "+string(st))
				return
			}
			statuses = append(statuses, st)
		}
	}

	jobs, err := s.Store.RecentJobs(limit, statuses...)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	counts, err := s.Store.Counts()
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"counts": counts,
		"jobs":   jobs,
	})
}
