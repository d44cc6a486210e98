package audit

import (
	"context"
	"log/slog"
	"sync"
)

// Sink receives audit events. Implementations: Kafka, the Postgres outbox,
// and an in-memory recorder for tests.
type Sink interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Publisher fans events out to its sinks. The default mode is synchronous;
// WithAsyncBuffer moves delivery onto a background goroutine so the pipeline
// never blocks on the audit path.
type Publisher struct {
	sinks  []Sink
	logger *slog.Logger

	buffer  chan Event
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	dropped int64
}

type Option func(*Publisher)

func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// WithAsyncBuffer makes Emit non-blocking with a bounded queue. When the
// queue is full the event is dropped and counted; link decisions must never
// stall the pipeline waiting on a broker.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size <= 0 {
			size = 1024
		}
		p.buffer = make(chan Event, size)
	}
}

func NewPublisher(sinks []Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sinks:  sinks,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit delivers the event to every sink. Sink failures are logged, never
// propagated: a broken audit path must not fail link commits.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p.buffer == nil {
		p.deliver(ctx, event)
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	select {
	case p.buffer <- event:
	default:
		p.dropped++
		p.logger.Warn("audit buffer full, event dropped", "type", event.Type, "run_id", event.RunID)
	}
	p.mu.Unlock()
}

// Dropped returns how many events were lost to a full buffer.
func (p *Publisher) Dropped() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		p.deliver(context.Background(), event)
	}
}

func (p *Publisher) deliver(ctx context.Context, event Event) {
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			p.logger.Error("audit publish failed", "type", event.Type, "run_id", event.RunID, "error", err)
		}
	}
}

// Close flushes the async buffer and closes every sink.
func (p *Publisher) Close() error {
	if p.buffer != nil {
		p.mu.Lock()
		if !p.closed {
			p.closed = true
			close(p.buffer)
		}
		p.mu.Unlock()
		p.wg.Wait()
	}

	var firstErr error
	for _, sink := range p.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
