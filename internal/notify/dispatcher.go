package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsdesk/support-engine/internal/observability"
)

// Sink delivers one notification to a single channel. Implementations must
// honor the context deadline and return an error on failure; the dispatcher
// owns retries and failure isolation.
type Sink interface {
	Name() string
	Send(ctx context.Context, event Event) error
}

// Dispatcher fans out events to notification sinks.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event)
}

// FanoutDispatcher delivers each event concurrently to the sinks routed for
// its kind. Every sink call is independent: one sink failing never prevents
// the others from firing and never fails the parent operation.
type FanoutDispatcher struct {
	mu      sync.RWMutex
	sinks   map[string]Sink
	routes  map[Kind][]string
	timeout time.Duration
	retries int
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewFanoutDispatcher constructs a dispatcher over the given sinks.
func NewFanoutDispatcher(logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration, retries int, sinks ...Sink) *FanoutDispatcher {
	registered := make(map[string]Sink, len(sinks))
	for _, sink := range sinks {
		registered[sink.Name()] = sink
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &FanoutDispatcher{
		sinks:   registered,
		routes:  make(map[Kind][]string),
		timeout: timeout,
		retries: retries,
		logger:  logger,
		metrics: metrics,
	}
}

// Route registers the sinks that receive events of the given kind.
func (d *FanoutDispatcher) Route(kind Kind, sinkNames ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[kind] = append(d.routes[kind], sinkNames...)
}

// Dispatch sends the event to every routed sink concurrently and waits for
// the fanout to settle. Delivery uses a context detached from the caller's
// so abandoned requests do not cancel in-flight side effects.
func (d *FanoutDispatcher) Dispatch(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	d.mu.RLock()
	names := append([]string(nil), d.routes[event.Kind]...)
	d.mu.RUnlock()

	detached := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for _, name := range names {
		d.mu.RLock()
		sink, ok := d.sinks[name]
		d.mu.RUnlock()
		if !ok {
			continue
		}
		wg.Add(1)
		go func(sink Sink) {
			defer wg.Done()
			d.deliver(detached, sink, event)
		}(sink)
	}
	wg.Wait()
}

func (d *FanoutDispatcher) deliver(ctx context.Context, sink Sink, event Event) {
	var err error
	for attempt := 0; attempt <= d.retries; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err = sink.Send(sendCtx, event)
		cancel()
		if err == nil {
			return
		}
	}
	d.metrics.RecordSinkFailure(sink.Name())
	d.logger.Warn("notification sink failed",
		zap.String("sink", sink.Name()),
		zap.String("kind", string(event.Kind)),
		zap.String("ticket_id", event.TicketID),
		zap.Error(err),
	)
}

// DefaultRoutes wires the standard kind-to-sink routing.
func DefaultRoutes(d *FanoutDispatcher) {
	d.Route(KindTicketCreated, SinkChatOps, SinkCRM, SinkInApp)
	d.Route(KindTicketUpdated, SinkChatOps, SinkCRM, SinkEmail, SinkInApp)
	d.Route(KindTicketClosed, SinkCRM, SinkEmail, SinkInApp)
	d.Route(KindTicketEscalated, SinkChatOps, SinkCRM)
	d.Route(KindTicketConverted, SinkChatOps, SinkCRM, SinkEmail)
	d.Route(KindSatisfactionSubmitted, SinkChatOps, SinkCRM)
	d.Route(KindAIResolutionConfirmed, SinkCRM, SinkEmail, SinkInApp)
}
