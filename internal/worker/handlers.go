package worker

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/davidgr87/whats-that-sound/internal/classifier"
	"github.com/davidgr87/whats-that-sound/internal/domain"
	"github.com/davidgr87/whats-that-sound/internal/logger"
	"github.com/davidgr87/whats-that-sound/internal/mover"
	"github.com/davidgr87/whats-that-sound/internal/oracle"
	"github.com/davidgr87/whats-that-sound/internal/progress"
	"github.com/davidgr87/whats-that-sound/internal/proposal"
	"github.com/davidgr87/whats-that-sound/internal/scanner"
	"github.com/davidgr87/whats-that-sound/internal/store"
)

// ScanHandler runs the scanner over a root and completes the scan job.
type ScanHandler struct {
	Store   *store.Store
	Scanner *scanner.Scanner
}

func (h *ScanHandler) Handle(ctx context.Context, job *domain.Job, log *logger.Logger) error {
	enqueued, err := h.Scanner.Scan(ctx, job.FolderPath)
	if err != nil {
		return err
	}
	log.Info("Scan job finished", "enqueued", enqueued)
	return h.Store.Complete(job.ID)
}

// AnalyzeHandler asks the oracle for a proposal and moves the job to ready.
type AnalyzeHandler struct {
	Store     *store.Store
	Oracle    oracle.Oracle
	Generator *proposal.Generator
}

func (h *AnalyzeHandler) Handle(ctx context.Context, job *domain.Job, log *logger.Logger) error {
	meta, err := domain.DecodeAnalyzeMetadata(job.MetadataJSON)
	if err != nil {
		return fmt.Errorf("bad job metadata: %w", err)
	}
	if meta.ArtistHint == "" {
		meta.ArtistHint = job.ArtistHint
	}

	// The scanner only records the cheap heuristic; consult the oracle here
	// when the shape stayed ambiguous.
	if meta.Classification == "" || meta.Classification == domain.ClassUnknown {
		meta.Classification = classifier.Classify(ctx, &meta.Shape, h.Oracle)
	}

	p, err := h.Generator.Generate(ctx, meta, job.UserFeedback)
	if err != nil {
		return err
	}

	resultJSON, err := p.JSON()
	if err != nil {
		return err
	}
	if err := h.Store.Approve(job.ID, resultJSON); err != nil {
		return err
	}
	log.Info("Proposal ready", "artist", p.Artist, "album", p.Album, "year", p.Year, "confidence", p.Confidence)
	return nil
}

// MoveHandler copies an accepted folder into the target layout and
// completes the job.
type MoveHandler struct {
	Store    *store.Store
	Mover    *mover.Mover
	Progress *progress.Tracker
}

func (h *MoveHandler) Handle(ctx context.Context, job *domain.Job, log *logger.Logger) error {
	p, err := domain.ParseProposal(job.ResultJSON)
	if err != nil {
		return fmt.Errorf("accepted job has no usable proposal: %w", err)
	}

	copied, err := h.Mover.Move(job.FolderPath, p)
	if err != nil {
		return err
	}

	// Hinted jobs belong to an artist collection; once the last sibling is
	// organized this writes the collection mark at the parent.
	if job.ArtistHint != "" {
		if err := h.Mover.FinalizeCollection(filepath.Dir(job.FolderPath)); err != nil {
			log.Warn("Failed to finalize collection mark", "error", err)
		}
	}

	if err := h.Store.Complete(job.ID); err != nil {
		return err
	}
	if h.Progress != nil {
		h.Progress.RecordSuccess(*p)
	}
	log.Info("Move complete", "files", copied, "artist", p.Artist, "album", p.Album)
	return nil
}
