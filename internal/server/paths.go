package server

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/davidgr87/whats-that-sound/internal/constants"
	"github.com/davidgr87/whats-that-sound/internal/domain"
)

type pathsRequest struct {
	Action    string `json:"action"`
	SourceDir string `json:"source_dir,omitempty"`
	TargetDir string `json:"target_dir,omitempty"`
}

func (s *Server) handleGetPaths(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]string{
		"source_dir":        s.sourceDir,
		"target_dir":        s.targetDir,
		"staged_source_dir": s.stagedSource,
		"staged_target_dir": s.stagedTarget,
	})
}

// handlePostPaths implements the stage/cancel/confirm dance for switching
// roots at runtime. Nothing takes effect until confirm; confirm of a new
// source also enqueues a scan for it.
func (s *Server) handlePostPaths(w http.ResponseWriter, r *http.Request) {
	var req pathsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Action {
	case "stage":
		s.stagePaths(w, req)
	case "cancel":
		s.mu.Lock()
		s.stagedSource = ""
		s.stagedTarget = ""
		s.mu.Unlock()
		respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
	case "confirm":
		s.confirmPaths(w)
	default:
		respondError(w, http.StatusBadRequest, "unknown action: "+req.Action)
	}
}

func (s *Server) stagePaths(w http.ResponseWriter, req pathsRequest) {
	if req.SourceDir == "" && req.TargetDir == "" {
		respondError(w, http.StatusBadRequest, "nothing to stage")
		return
	}
	if req.SourceDir != "" {
		info, err := os.Stat(req.SourceDir)
		if err != nil || !info.IsDir() {
			respondError(w, http.StatusBadRequest, "source_dir is not a directory: "+req.SourceDir)
			return
		}
	}
	s.mu.Lock()
	if req.SourceDir != "" {
		s.stagedSource = req.SourceDir
	}
	if req.TargetDir != "" {
		s.stagedTarget = req.TargetDir
	}
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) confirmPaths(w http.ResponseWriter) {
	s.mu.Lock()
	if s.stagedSource == "" && s.stagedTarget == "" {
		s.mu.Unlock()
		respondError(w, http.StatusBadRequest, "nothing staged")
		return
	}
	newSource := s.stagedSource != "" && s.stagedSource != s.sourceDir
	if s.stagedSource != "" {
		s.sourceDir = s.stagedSource
	}
	if s.stagedTarget != "" {
		s.targetDir = s.stagedTarget
	}
	source, target := s.sourceDir, s.targetDir
	s.stagedSource = ""
	s.stagedTarget = ""
	s.mu.Unlock()

	if err := os.MkdirAll(target, constants.DirPermissions); err != nil {
		respondError(w, http.StatusInternalServerError, "cannot create target_dir: "+err.Error())
		return
	}

	if newSource {
		pending, err := s.Store.HasAnyForFolder(source, domain.JobStatusQueued, domain.JobStatusAnalyzing)
		if err != nil {
			respondStoreError(w, err)
			return
		}
		if !pending {
			if _, err := s.Store.Enqueue(&domain.Job{FolderPath: source, Type: domain.JobTypeScan}); err != nil {
				respondStoreError(w, err)
				return
			}
			s.Logger.Info("Enqueued scan for new source", "source", source)
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"source_dir": source,
		"target_dir": target,
	})
}
