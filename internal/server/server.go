// Package server exposes the control plane: the HTTP API humans use to
// observe the pipeline and submit decisions, plus the SSE event stream.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/davidgr87/whats-that-sound/internal/logger"
	"github.com/davidgr87/whats-that-sound/internal/progress"
	"github.com/davidgr87/whats-that-sound/internal/scanner"
	"github.com/davidgr87/whats-that-sound/internal/store"
)

// Server handles the control-plane HTTP API. All expensive work happens in
// the worker pool; handlers only read state and flip job statuses.
type Server struct {
	Store    *store.Store
	Scanner  *scanner.Scanner
	Progress *progress.Tracker
	Logger   *logger.Logger

	mu           sync.Mutex
	sourceDir    string
	targetDir    string
	stagedSource string
	stagedTarget string

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

func New(st *store.Store, sc *scanner.Scanner, pt *progress.Tracker, sourceDir, targetDir string, log *logger.Logger) *Server {
	return &Server{
		Store:     st,
		Scanner:   sc,
		Progress:  pt,
		Logger:    log.WithComponent("server"),
		sourceDir: sourceDir,
		targetDir: targetDir,
		shutdown:  make(chan struct{}),
	}
}

// Shutdown terminates open SSE streams. Call before stopping the HTTP
// server so streaming clients disconnect promptly. Safe to call more than
// once.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdown) })
}

// Dirs returns the currently confirmed source and target roots.
func (s *Server) Dirs() (source, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceDir, s.targetDir
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// respondStoreError maps store sentinels onto HTTP statuses.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidTransition):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// countChildren counts the immediate subdirectories of the source root,
// the denominator shown as "total" in status and events.
func countChildren(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			n++
		}
	}
	return n
}

// listDirs returns the visible immediate subdirectories of dir.
func listDirs(dir string) ([]dirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]dirEntry, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, dirEntry{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
		})
	}
	return out, nil
}

type dirEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}
