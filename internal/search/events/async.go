package events

import (
	"context"
	"log/slog"
	"time"

	"idsearch/internal/platform/metrics"
)

const (
	defaultBufferSize   = 1024
	defaultBatchSize    = 64
	defaultFlushTimeout = 5 * time.Second
)

// AsyncPublisher decouples callers from a slow sink. Publish only buffers;
// Run forwards buffered events until its context ends, then makes one last
// bounded attempt to flush what is left.
type AsyncPublisher struct {
	sink         Publisher
	buffer       *ringBuffer
	wake         chan struct{}
	batchSize    int
	flushTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// AsyncOption configures an AsyncPublisher.
type AsyncOption func(*AsyncPublisher)

func WithBufferSize(n int) AsyncOption {
	return func(p *AsyncPublisher) {
		p.buffer = newRingBuffer(n)
	}
}

func WithFlushTimeout(d time.Duration) AsyncOption {
	return func(p *AsyncPublisher) {
		if d > 0 {
			p.flushTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) AsyncOption {
	return func(p *AsyncPublisher) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) AsyncOption {
	return func(p *AsyncPublisher) {
		p.metrics = m
	}
}

func NewAsyncPublisher(sink Publisher, opts ...AsyncOption) *AsyncPublisher {
	p := &AsyncPublisher{
		sink:         sink,
		buffer:       newRingBuffer(defaultBufferSize),
		wake:         make(chan struct{}, 1),
		batchSize:    defaultBatchSize,
		flushTimeout: defaultFlushTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish buffers event. It never blocks and never fails.
func (p *AsyncPublisher) Publish(ctx context.Context, event Event) error {
	if p.buffer.enqueue(event) {
		p.logger.WarnContext(ctx, "event buffer full, dropped oldest event",
			"dropped_total", p.buffer.droppedCount(),
		)
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of buffered events.
func (p *AsyncPublisher) Pending() int {
	return p.buffer.len()
}

// Run forwards events to the sink until ctx is done.
func (p *AsyncPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.flushTimeout)
			defer cancel()
			p.drain(flushCtx)
			return nil
		case <-p.wake:
			p.drain(ctx)
		}
	}
}

func (p *AsyncPublisher) drain(ctx context.Context) {
	for {
		batch := p.buffer.dequeueBatch(p.batchSize)
		if len(batch) == 0 {
			return
		}
		for _, event := range batch {
			if err := p.sink.Publish(ctx, event); err != nil {
				p.logger.ErrorContext(ctx, "publish event failed",
					"event_id", event.ID,
					"type", event.Type,
					"error", err,
				)
				continue
			}
			if p.metrics != nil {
				p.metrics.IncrementSelectionsPublished()
			}
		}
	}
}

// Close closes the sink. Call it after Run has returned.
func (p *AsyncPublisher) Close() error {
	return p.sink.Close()
}
