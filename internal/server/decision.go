package server

import (
	"encoding/json"
	"net/http"
	"path/filepath"

	"github.com/davidgr87/whats-that-sound/internal/domain"
)

type decisionRequest struct {
	Path               string                `json:"path"`
	Action             string                `json:"action"`
	Proposal           *domain.Proposal      `json:"proposal,omitempty"`
	Feedback           string                `json:"feedback,omitempty"`
	UserClassification domain.Classification `json:"user_classification,omitempty"`
}

// handleDecision applies a human verdict to a ready folder: accept it for
// moving, send it back for reconsideration, or skip it.
func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		respondError(w, http.StatusBadRequest, "path is required")
		return
	}

	switch req.Action {
	case "accept":
		s.decideAccept(w, req)
	case "reconsider":
		s.decideReconsider(w, req)
	case "skip":
		s.decideSkip(w, req)
	default:
		respondError(w, http.StatusBadRequest, "unknown action: "+req.Action)
	}
}

func (s *Server) decideAccept(w http.ResponseWriter, req decisionRequest) {
	// An edited proposal replaces the stored one before the transition, so
	// the mover only ever reads result_json.
	if req.Proposal != nil {
		req.Proposal.Normalize()
		if err := req.Proposal.Validate(); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		resultJSON, err := req.Proposal.JSON()
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := s.Store.SetResultForFolder(req.Path, resultJSON); err != nil {
			respondStoreError(w, err)
			return
		}
	}

	if err := s.Store.UpdateLatestStatusForFolder(req.Path,
		[]domain.JobStatus{domain.JobStatusReady}, domain.JobStatusAccepted); err != nil {
		respondStoreError(w, err)
		return
	}
	s.Logger.Info("Decision: accept", "folder", req.Path)
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) decideReconsider(w http.ResponseWriter, req decisionRequest) {
	path := req.Path

	// When the human says the folder is really one disc of a multi-disc
	// album, the decision re-targets the parent so the album is analyzed as
	// a whole.
	if req.UserClassification == domain.ClassMultiDiscAlbum {
		path = filepath.Dir(path)
	}

	meta, err := s.Scanner.BuildMetadata(path, "")
	if err != nil {
		respondError(w, http.StatusBadRequest, "cannot rebuild metadata for "+path+": "+err.Error())
		return
	}
	if req.UserClassification != "" {
		meta.Classification = req.UserClassification
	}
	metaJSON, err := domain.EncodeAnalyzeMetadata(meta)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	err = s.Store.RequeueForReconsideration(path, metaJSON, req.Feedback)
	switch {
	case err == nil:
		s.Logger.Info("Decision: reconsider", "folder", path, "feedback", req.Feedback)

	case path != req.Path && isNotFound(err):
		// A re-targeted parent may never have had a job. Enqueue one instead.
		job := &domain.Job{
			FolderPath:   path,
			Type:         domain.JobTypeAnalyze,
			MetadataJSON: metaJSON,
			UserFeedback: req.Feedback,
		}
		if _, err := s.Store.Enqueue(job); err != nil {
			respondStoreError(w, err)
			return
		}
		s.Logger.Info("Decision: reconsider re-targeted parent", "folder", path)

	default:
		respondStoreError(w, err)
		return
	}

	// The original disc-level row is superseded by the parent job; close it
	// so it leaves the adjudication queue.
	if path != req.Path {
		if err := s.Store.UpdateLatestStatusForFolder(req.Path,
			[]domain.JobStatus{domain.JobStatusReady}, domain.JobStatusSkipped); err != nil {
			s.Logger.Warn("Failed to close superseded job", "folder", req.Path, "error", err)
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "path": path})
}

func (s *Server) decideSkip(w http.ResponseWriter, req decisionRequest) {
	if err := s.Store.UpdateLatestStatusForFolder(req.Path,
		[]domain.JobStatus{domain.JobStatusReady}, domain.JobStatusSkipped); err != nil {
		respondStoreError(w, err)
		return
	}
	s.Progress.RecordSkip()
	s.Logger.Info("Decision: skip", "folder", req.Path)
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
