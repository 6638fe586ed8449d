package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidgr87/whats-that-sound/internal/domain"
	"github.com/davidgr87/whats-that-sound/internal/logger"
	"github.com/davidgr87/whats-that-sound/internal/progress"
	"github.com/davidgr87/whats-that-sound/internal/scanner"
	"github.com/davidgr87/whats-that-sound/internal/store"
	"github.com/davidgr87/whats-that-sound/internal/tags"
)

type fixture struct {
	srv       *Server
	store     *store.Store
	router    *chi.Mux
	sourceDir string
}

func setupServer(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := logger.Default()
	sourceDir := t.TempDir()
	sc := scanner.New(st, tags.NewReader(log), log)
	srv := New(st, sc, progress.NewTracker(), sourceDir, t.TempDir(), log)
	t.Cleanup(srv.Shutdown)

	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	return &fixture{srv: srv, store: st, router: r, sourceDir: sourceDir}
}

func (f *fixture) get(t *testing.T, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	return f.do(t, http.MethodGet, path, nil)
}

func (f *fixture) post(t *testing.T, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return f.do(t, http.MethodPost, path, bytes.NewReader(data))
}

func (f *fixture) do(t *testing.T, method, path string, body *bytes.Reader) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, body)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var payload map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	}
	return rec, payload
}

// writeTracks drops placeholder audio files so scanner metadata rebuilds
// have something to walk.
func writeTracks(t *testing.T, dir string, n int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for i := 1; i <= n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("%02d - Track.mp3", i))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
}

// readyJob pushes one job for folder into ready with a stock proposal.
func readyJob(t *testing.T, st *store.Store, folder string) *domain.Job {
	t.Helper()
	job, err := st.Enqueue(&domain.Job{
		FolderPath:   folder,
		Type:         domain.JobTypeAnalyze,
		MetadataJSON: `{"shape":{"name":"x","path":"` + folder + `"},"tags":{"files_read":0,"files_failed":0}}`,
	})
	require.NoError(t, err)
	claimed, err := st.ClaimQueuedForAnalysis()
	require.NoError(t, err)
	require.Equal(t, job.ID, claimed.ID)
	require.NoError(t, st.Approve(job.ID,
		`{"artist":"Weezer","album":"Pinkerton","year":"1996","release_type":"Album"}`))
	return job
}

func TestStatusEndpoint(t *testing.T) {
	f := setupServer(t)
	writeTracks(t, filepath.Join(f.sourceDir, "Album A"), 3)
	writeTracks(t, filepath.Join(f.sourceDir, "Album B"), 3)
	readyJob(t, f.store, filepath.Join(f.sourceDir, "Album A"))

	rec, payload := f.get(t, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, f.sourceDir, payload["source_dir"])
	assert.EqualValues(t, 2, payload["total"])

	ready := payload["ready"].([]interface{})
	require.Len(t, ready, 1)
	entry := ready[0].(map[string]interface{})
	assert.Equal(t, "Album A", entry["name"])

	counts := payload["counts"].(map[string]interface{})
	assert.EqualValues(t, 1, counts["ready"])
	assert.EqualValues(t, 0, counts["queued"])
}

func TestReadyEndpointLimit(t *testing.T) {
	f := setupServer(t)
	readyJob(t, f.store, filepath.Join(f.sourceDir, "A"))
	readyJob(t, f.store, filepath.Join(f.sourceDir, "B"))

	rec, payload := f.get(t, "/api/ready?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, payload["ready"], 1)

	rec, _ = f.get(t, "/api/ready?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFolderEndpoint(t *testing.T) {
	f := setupServer(t)
	folder := filepath.Join(f.sourceDir, "Album A")
	readyJob(t, f.store, folder)

	rec, payload := f.get(t, "/api/folder?path="+url.QueryEscape(folder))
	require.Equal(t, http.StatusOK, rec.Code)
	proposal := payload["proposal"].(map[string]interface{})
	assert.Equal(t, "Weezer", proposal["artist"])
	assert.NotNil(t, payload["metadata"])

	rec, _ = f.get(t, "/api/folder?path=/nowhere")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.get(t, "/api/folder")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEndpoint(t *testing.T) {
	f := setupServer(t)
	writeTracks(t, filepath.Join(f.sourceDir, "Album A"), 1)
	require.NoError(t, os.MkdirAll(filepath.Join(f.sourceDir, ".hidden"), 0o755))

	rec, payload := f.get(t, "/api/list")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := payload["entries"].([]interface{})
	require.Len(t, entries, 1)
	assert.Equal(t, "Album A", entries[0].(map[string]interface{})["name"])

	rec, _ = f.get(t, "/api/list?path=/does/not/exist")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecisionAccept(t *testing.T) {
	f := setupServer(t)
	folder := filepath.Join(f.sourceDir, "Album A")
	job := readyJob(t, f.store, folder)

	rec, _ := f.post(t, "/api/decision", map[string]interface{}{
		"path":   folder,
		"action": "accept",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := f.store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusAccepted, got.Status)
}

func TestDecisionAcceptWithEditedProposal(t *testing.T) {
	f := setupServer(t)
	folder := filepath.Join(f.sourceDir, "Album A")
	job := readyJob(t, f.store, folder)

	rec, _ := f.post(t, "/api/decision", map[string]interface{}{
		"path":   folder,
		"action": "accept",
		"proposal": map[string]string{
			"artist":       "Weezer",
			"album":        "Pinkerton (Deluxe)",
			"year":         "2010",
			"release_type": "album",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := f.store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusAccepted, got.Status)

	p, err := domain.ParseProposal(got.ResultJSON)
	require.NoError(t, err)
	assert.Equal(t, "Pinkerton (Deluxe)", p.Album)
	assert.Equal(t, "Album", p.ReleaseType)
}

func TestDecisionAcceptRejectsIncompleteProposal(t *testing.T) {
	f := setupServer(t)
	folder := filepath.Join(f.sourceDir, "Album A")
	readyJob(t, f.store, folder)

	rec, _ := f.post(t, "/api/decision", map[string]interface{}{
		"path":     folder,
		"action":   "accept",
		"proposal": map[string]string{"artist": "Weezer"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecisionSkip(t *testing.T) {
	f := setupServer(t)
	folder := filepath.Join(f.sourceDir, "Album A")
	job := readyJob(t, f.store, folder)

	rec, _ := f.post(t, "/api/decision", map[string]interface{}{
		"path":   folder,
		"action": "skip",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := f.store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusSkipped, got.Status)
	assert.Equal(t, 1, f.srv.Progress.Stats().Skipped)
}

func TestDecisionReconsider(t *testing.T) {
	f := setupServer(t)
	folder := filepath.Join(f.sourceDir, "Album A")
	writeTracks(t, folder, 5)
	job := readyJob(t, f.store, folder)

	rec, _ := f.post(t, "/api/decision", map[string]interface{}{
		"path":     folder,
		"action":   "reconsider",
		"feedback": "the year is wrong",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := f.store.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, got.Status)
	assert.Equal(t, "the year is wrong", got.UserFeedback)
	assert.Empty(t, got.ResultJSON)
}

func TestDecisionReconsiderRetargetsParent(t *testing.T) {
	// The human says "CD1" is one disc of a multi-disc album; the decision
	// must requeue the parent album folder instead.
	f := setupServer(t)
	album := filepath.Join(f.sourceDir, "Box Set")
	disc := filepath.Join(album, "CD1")
	writeTracks(t, disc, 5)
	writeTracks(t, filepath.Join(album, "CD2"), 5)
	readyJob(t, f.store, disc)

	rec, payload := f.post(t, "/api/decision", map[string]interface{}{
		"path":                disc,
		"action":              "reconsider",
		"user_classification": "multi_disc_album",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, album, payload["path"])

	jobs, err := f.store.RecentJobs(10, domain.JobStatusQueued)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, album, jobs[0].FolderPath)

	meta, err := domain.DecodeAnalyzeMetadata(jobs[0].MetadataJSON)
	require.NoError(t, err)
	assert.Equal(t, domain.ClassMultiDiscAlbum, meta.Classification)

	// The superseded disc-level row leaves the adjudication queue.
	discJob, err := f.store.GetResult(disc)
	require.NoError(t, err)
	assert.Nil(t, discJob)
}

func TestDecisionRejectsBadRequests(t *testing.T) {
	f := setupServer(t)

	rec, _ := f.post(t, "/api/decision", map[string]string{"action": "accept"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.post(t, "/api/decision", map[string]string{"path": "/x", "action": "explode"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Accepting a folder with no ready row.
	rec, _ = f.post(t, "/api/decision", map[string]string{"path": "/x", "action": "accept"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPathsStageConfirm(t *testing.T) {
	f := setupServer(t)
	newSource := t.TempDir()
	writeTracks(t, filepath.Join(newSource, "Album"), 2)
	newTarget := filepath.Join(t.TempDir(), "library")

	rec, _ := f.post(t, "/api/paths", map[string]string{
		"action":     "stage",
		"source_dir": newSource,
		"target_dir": newTarget,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Nothing applied yet.
	source, _ := f.srv.Dirs()
	assert.Equal(t, f.sourceDir, source)

	rec, _ = f.post(t, "/api/paths", map[string]string{"action": "confirm"})
	require.Equal(t, http.StatusOK, rec.Code)

	source, target := f.srv.Dirs()
	assert.Equal(t, newSource, source)
	assert.Equal(t, newTarget, target)
	assert.DirExists(t, newTarget)

	// Confirming a new source enqueues a scan for it.
	jobs, err := f.store.RecentJobs(10, domain.JobStatusQueued)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobTypeScan, jobs[0].Type)
	assert.Equal(t, newSource, jobs[0].FolderPath)
}

func TestPathsStageCancel(t *testing.T) {
	f := setupServer(t)

	rec, _ := f.post(t, "/api/paths", map[string]string{"action": "stage", "source_dir": t.TempDir()})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.post(t, "/api/paths", map[string]string{"action": "cancel"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.post(t, "/api/paths", map[string]string{"action": "confirm"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPathsStageRejectsMissingSource(t *testing.T) {
	f := setupServer(t)
	rec, _ := f.post(t, "/api/paths", map[string]string{"action": "stage", "source_dir": "/nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// streamEvents serves /api/events on a goroutine and returns the recorder
// plus a channel closed when the handler returns.
func streamEvents(f *fixture, ctx context.Context) (*httptest.ResponseRecorder, chan struct{}) {
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		f.router.ServeHTTP(rec, req)
		close(done)
	}()
	return rec, done
}

func TestEventsStreamFirstSnapshot(t *testing.T) {
	f := setupServer(t)
	writeTracks(t, filepath.Join(f.sourceDir, "Album A"), 2)
	readyJob(t, f.store, filepath.Join(f.sourceDir, "Album A"))

	ctx, cancel := context.WithCancel(context.Background())
	rec, done := streamEvents(f, ctx)

	// The first snapshot is written immediately; give the handler a moment,
	// then disconnect.
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("events handler did not stop on client disconnect")
	}

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.True(t, rec.Flushed)

	frame, _, found := strings.Cut(rec.Body.String(), "\n\n")
	require.True(t, found, "no complete event frame in %q", rec.Body.String())
	lines := strings.Split(frame, "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "id: "), lines[0])
	require.True(t, strings.HasPrefix(lines[1], "data: "), lines[1])

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[1], "data: ")), &payload))
	counts := payload["counts"].(map[string]interface{})
	assert.EqualValues(t, 1, counts["ready"])
	assert.EqualValues(t, 1, payload["total"])
	assert.NotNil(t, payload["processed"])
}

func TestEventsStreamStopsOnShutdown(t *testing.T) {
	f := setupServer(t)
	_, done := streamEvents(f, context.Background())

	time.Sleep(20 * time.Millisecond)
	f.srv.Shutdown()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("events handler did not stop on shutdown")
	}
}

func TestDebugJobsEndpoint(t *testing.T) {
	f := setupServer(t)
	readyJob(t, f.store, filepath.Join(f.sourceDir, "A"))
	_, err := f.store.Enqueue(&domain.Job{FolderPath: "/b", Type: domain.JobTypeAnalyze})
	require.NoError(t, err)

	rec, payload := f.get(t, "/api/debug/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, payload["jobs"], 2)

	rec, payload = f.get(t, "/api/debug/jobs?statuses=ready")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, payload["jobs"], 1)

	rec, _ = f.get(t, "/api/debug/jobs?statuses=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
