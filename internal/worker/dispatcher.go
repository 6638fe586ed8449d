package worker

import (
	"context"
	"errors"

	"github.com/davidgr87/whats-that-sound/internal/domain"
	"github.com/davidgr87/whats-that-sound/internal/logger"
)

var ErrUnknownJobType = errors.New("unknown job type")

// JobHandler executes one claimed job. Handlers perform their own success
// transition on the store; a returned error makes the pool fail the job.
type JobHandler interface {
	Handle(ctx context.Context, job *domain.Job, log *logger.Logger) error
}

type Dispatcher struct {
	handlers map[domain.JobType]JobHandler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[domain.JobType]JobHandler),
	}
}

func (d *Dispatcher) Register(jobType domain.JobType, handler JobHandler) {
	d.handlers[jobType] = handler
}

func (d *Dispatcher) Dispatch(ctx context.Context, jobType domain.JobType, job *domain.Job, log *logger.Logger) error {
	handler, ok := d.handlers[jobType]
	if !ok {
		return ErrUnknownJobType
	}
	return handler.Handle(ctx, job, log)
}
