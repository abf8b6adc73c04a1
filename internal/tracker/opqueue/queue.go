package opqueue

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"pet-care-tracker/internal/platform/logger"
	"pet-care-tracker/internal/platform/metrics"

	"github.com/google/uuid"
)

var ErrClosed = errors.New("queue closed")

// Operation es una mutación diferida. Se saca de la cola al ejecutarse,
// haya fallado o no; no hay reintentos.
type Operation struct {
	ID          string
	Description string
	Execute     func(ctx context.Context) error
}

// Queue ejecuta operaciones de a una, en orden de llegada. Un único worker
// vive mientras haya trabajo y termina cuando la cola queda vacía.
type Queue struct {
	ctx     context.Context
	log     logger.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	items   []Operation
	running bool
	closed  bool
	idle    chan struct{}
}

// New crea la cola. ctx es el contexto que reciben las operaciones.
func New(ctx context.Context, log logger.Logger, m *metrics.Metrics) *Queue {
	if ctx == nil {
		ctx = context.Background()
	}
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		ctx:     ctx,
		log:     logger.OrNop(log),
		metrics: m,
		idle:    idle,
	}
}

// Enqueue agrega op al final y arranca el worker si estaba parado. No bloquea.
func (q *Queue) Enqueue(op Operation) (string, error) {
	if op.Execute == nil {
		return "", fmt.Errorf("opqueue: nil Execute")
	}
	if op.ID == "" {
		op.ID = uuid.NewString()
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrClosed
	}
	q.items = append(q.items, op)
	q.metrics.SetQueueDepth(len(q.items))

	start := !q.running
	if start {
		q.running = true
		q.idle = make(chan struct{})
	}
	q.mu.Unlock()

	if start {
		go q.process()
	}
	return op.ID, nil
}

func (q *Queue) process() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.running = false
			close(q.idle)
			q.mu.Unlock()
			return
		}
		op := q.items[0]
		q.items[0] = Operation{}
		q.items = q.items[1:]
		q.metrics.SetQueueDepth(len(q.items))
		q.mu.Unlock()

		q.run(op)

		runtime.Gosched()
	}
}

func (q *Queue) run(op Operation) {
	fields := map[string]any{"op_id": op.ID, "op": op.Description}

	defer func() {
		if r := recover(); r != nil {
			q.metrics.QueueOp("panic")
			fields["panic"] = fmt.Sprint(r)
			q.log.Error("queued operation panicked", fields)
		}
	}()

	if err := op.Execute(q.ctx); err != nil {
		q.metrics.QueueOp("error")
		fields["error"] = err.Error()
		q.log.Error("queued operation failed", fields)
		return
	}
	q.metrics.QueueOp("ok")
	q.log.Debug("queued operation done", fields)
}

// Len devuelve las operaciones que aún no empezaron.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Wait bloquea hasta que la cola queda vacía y sin operación en curso.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close rechaza nuevas operaciones; las ya encoladas se ejecutan igual.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
