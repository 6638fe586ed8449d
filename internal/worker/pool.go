// Package worker runs the long-lived pool that claims jobs from the store
// and executes them.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/davidgr87/whats-that-sound/internal/constants"
	"github.com/davidgr87/whats-that-sound/internal/domain"
	"github.com/davidgr87/whats-that-sound/internal/logger"
	"github.com/davidgr87/whats-that-sound/internal/progress"
	"github.com/davidgr87/whats-that-sound/internal/store"
)

// Pool claims and executes jobs with a bounded number of concurrent
// workers. Multiple pools may run against one store, in the same process or
// across processes, because claims are atomic.
type Pool struct {
	Store      *store.Store
	Dispatcher *Dispatcher
	Progress   *progress.Tracker
	Max        int
	Logger     *logger.Logger

	PollInterval time.Duration
	StaleMaxAge  time.Duration
	StaleSweep   time.Duration

	running atomic.Int64
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewPool(st *store.Store, d *Dispatcher, pt *progress.Tracker, max int, log *logger.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	if max < 1 {
		max = constants.DefaultWorkers
	}
	return &Pool{
		Store:        st,
		Dispatcher:   d,
		Progress:     pt,
		Max:          max,
		Logger:       log.WithComponent("worker"),
		PollInterval: constants.DefaultPollInterval,
		StaleMaxAge:  constants.DefaultStaleMaxAge,
		StaleSweep:   constants.DefaultStaleSweep,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (p *Pool) Start() {
	p.Logger.Info("Starting worker pool", "workers", p.Max)

	// Recover rows a previous crash left claimed before pulling new work.
	if n, err := p.Store.ResetStaleAnalyzing(p.StaleMaxAge); err != nil {
		p.Logger.Error("Failed to reset stale jobs", "error", err)
	} else if n > 0 {
		p.Logger.Info("Requeued stale jobs", "count", n)
	}

	p.wg.Add(2)
	go p.processJobs()
	go p.sweepStale()
}

func (p *Pool) Stop() {
	p.Logger.Info("Stopping worker pool")
	p.cancel()
	p.wg.Wait()
}

func (p *Pool) processJobs() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, p.Max)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			for int(p.running.Load()) < p.Max {
				job, moveClaim, err := p.claimNext()
				if err != nil {
					p.Logger.Error("Failed to claim job", "error", err)
					break
				}
				if job == nil {
					break
				}

				sem <- struct{}{}
				p.running.Add(1)
				p.wg.Add(1)
				go func(j *domain.Job, move bool) {
					defer p.wg.Done()
					defer func() { <-sem }()
					defer p.running.Add(-1)
					p.runJob(p.ctx, j, move)
				}(job, moveClaim)
			}
		}
	}
}

// claimNext prefers analysis work (scan before analyze, then FIFO); moves
// are claimed only while nothing else runs so file I/O never starves
// inference.
func (p *Pool) claimNext() (*domain.Job, bool, error) {
	job, err := p.Store.ClaimQueuedForAnalysis()
	if err != nil {
		return nil, false, err
	}
	if job != nil {
		return job, false, nil
	}
	if p.running.Load() > 0 {
		return nil, false, nil
	}
	job, err = p.Store.ClaimAcceptedForMove()
	if err != nil {
		return nil, false, err
	}
	return job, job != nil, nil
}

func (p *Pool) runJob(ctx context.Context, job *domain.Job, moveClaim bool) {
	log := p.Logger.WithJob(job.ID, string(job.Type)).WithFolder(job.FolderPath)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic in job", "panic", r)
			p.failJob(job, fmt.Sprintf("panic: %v", r), log)
		}
	}()

	// Rows claimed from accepted always run the move handler, whatever
	// their stored job_type says.
	dispatchType := job.Type
	if moveClaim {
		dispatchType = domain.JobTypeMove
	}

	start := time.Now()
	log.Info("Running job", "dispatch", dispatchType)

	if err := p.Dispatcher.Dispatch(ctx, dispatchType, job, log); err != nil {
		log.Error("Job failed", "error", err, "duration", time.Since(start))
		p.failJob(job, err.Error(), log)
		return
	}
	log.Info("Job finished", "duration", time.Since(start))
}

func (p *Pool) failJob(job *domain.Job, message string, log *logger.Logger) {
	if err := p.Store.Fail(job.ID, message); err != nil {
		log.Error("Failed to record job failure", "error", err)
	}
	if p.Progress != nil {
		p.Progress.RecordError()
	}
}

// sweepStale periodically requeues analyzing rows whose worker died.
func (p *Pool) sweepStale() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.StaleSweep)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			n, err := p.Store.ResetStaleAnalyzing(p.StaleMaxAge)
			if err != nil {
				p.Logger.Error("Stale sweep failed", "error", err)
				continue
			}
			if n > 0 {
				p.Logger.Warn("Requeued stale jobs", "count", n)
			}
		}
	}
}
