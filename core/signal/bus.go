package signal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// BusStats provides observability metrics for a bus. Counters accumulate
// from construction and are never reset by the bus itself.
type BusStats struct {
	Emitted     int64
	Handled     int64
	Errors      int64
	Handlers    int
	AnyHandlers int
	Middleware  int
}

// ErrorHandler is invoked for every handler failure during dispatch. The
// label identifies the failing subscriber: "type:<signal type>" for typed
// handlers, "any:<index>" for any-handlers.
type ErrorHandler func(ctx context.Context, sig Signal, label string, err error)

// Bus is a typed in-process signal bus. Emit runs the full pipeline —
// save, transport delivery, middleware chain, typed handlers, any-handlers,
// ack — before returning, subject to the executor's policy.
type Bus struct {
	transport Transport
	store     SignalStore
	executor  HandlerExecutor
	onError   ErrorHandler
	logger    *slog.Logger

	mu           sync.RWMutex
	typeHandlers map[string][]*registration
	anyHandlers  []*registration
	middleware   []Middleware
	closed       bool

	unsubscribe func()

	emitted atomic.Int64
	handled atomic.Int64
	errors  atomic.Int64
}

// registration gives each subscription its own identity so duplicate
// handlers unsubscribe independently.
type registration struct {
	fn HandlerFunc
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithTransport replaces the default in-process transport.
func WithTransport(t Transport) BusOption {
	return func(b *Bus) {
		if t != nil {
			b.transport = t
		}
	}
}

// WithStore replaces the default no-op store with a durable one.
func WithStore(s SignalStore) BusOption {
	return func(b *Bus) {
		if s != nil {
			b.store = s
		}
	}
}

// WithExecutor replaces the default sequential executor.
func WithExecutor(e HandlerExecutor) BusOption {
	return func(b *Bus) {
		if e != nil {
			b.executor = e
		}
	}
}

// WithErrorHandler registers a callback for handler failures. Failures are
// counted in stats regardless.
func WithErrorHandler(fn ErrorHandler) BusOption {
	return func(b *Bus) {
		if fn != nil {
			b.onError = fn
		}
	}
}

// WithMiddleware appends middleware at construction time. Equivalent to
// calling Use for each one before any signal is emitted.
func WithMiddleware(mw ...Middleware) BusOption {
	return func(b *Bus) {
		for _, m := range mw {
			if m != nil {
				b.middleware = append(b.middleware, m)
			}
		}
	}
}

// WithBusLogger configures structured logging for bus operations.
// Use slog.New(slog.NewTextHandler(io.Discard, nil)) to disable logging.
func WithBusLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBus creates a signal bus and installs its single dispatch
// subscription on the transport.
//
// Example:
//
//	bus := signal.NewBus(
//	    signal.WithStore(signal.NewMemoryStore()),
//	    signal.WithErrorHandler(func(ctx context.Context, sig signal.Signal, label string, err error) {
//	        logger.Error("handler failed", "label", label, "error", err)
//	    }),
//	)
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		transport:    NewInProcessTransport(),
		store:        NewNoopStore(),
		executor:     NewSequentialExecutor(),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		typeHandlers: make(map[string][]*registration),
	}

	for _, opt := range opts {
		opt(b)
	}

	b.unsubscribe = b.transport.Subscribe(b.dispatch)

	return b
}

// Emit runs the full pipeline for one signal: save to the store, deliver
// through the transport (which invokes dispatch), then acknowledge. When
// Emit returns nil, every handler has been executed under the configured
// executor. Handler failures never fail Emit; store, transport, and
// middleware failures do.
func (b *Bus) Emit(ctx context.Context, sig Signal) error {
	if sig.Type == "" {
		return ErrEmptySignalType
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrBusClosed
	}

	b.emitted.Add(1)

	if err := b.store.Save(ctx, sig); err != nil {
		return fmt.Errorf("failed to save signal %s: %w", sig.ID, err)
	}

	if err := b.transport.Emit(ctx, sig); err != nil {
		return err
	}

	if err := b.store.MarkAcked(ctx, sig.ID); err != nil {
		return fmt.Errorf("failed to ack signal %s: %w", sig.ID, err)
	}

	return nil
}

// On registers a typed handler. Handlers run in registration order and the
// same handler may be registered more than once. The returned unsubscribe
// removes exactly one registration and is safe to call repeatedly and
// during dispatch.
func (b *Bus) On(signalType string, fn HandlerFunc) func() {
	if fn == nil {
		return func() {}
	}

	reg := &registration{fn: fn}

	b.mu.Lock()
	b.typeHandlers[signalType] = append(b.typeHandlers[signalType], reg)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.typeHandlers[signalType]
			for i, r := range list {
				if r == reg {
					b.typeHandlers[signalType] = append(list[:i:i], list[i+1:]...)
					return
				}
			}
		})
	}
}

// OnAny registers a type-agnostic handler invoked for every signal after
// its typed handlers. Same unsubscribe contract as On.
func (b *Bus) OnAny(fn HandlerFunc) func() {
	if fn == nil {
		return func() {}
	}

	reg := &registration{fn: fn}

	b.mu.Lock()
	b.anyHandlers = append(b.anyHandlers, reg)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, r := range b.anyHandlers {
				if r == reg {
					b.anyHandlers = append(b.anyHandlers[:i:i], b.anyHandlers[i+1:]...)
					return
				}
			}
		})
	}
}

// Use appends middleware to the chain. There is no per-middleware removal;
// Clear empties the whole chain.
func (b *Bus) Use(mw Middleware) {
	if mw == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, mw)
}

// Clear empties the typed handler table, the any-handler list, and the
// middleware chain. Counters are untouched.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.typeHandlers = make(map[string][]*registration)
	b.anyHandlers = nil
	b.middleware = nil
}

// Stats returns a snapshot of bus counters and table sizes.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	handlers := 0
	for _, list := range b.typeHandlers {
		handlers += len(list)
	}
	anyHandlers := len(b.anyHandlers)
	middleware := len(b.middleware)
	b.mu.RUnlock()

	return BusStats{
		Emitted:     b.emitted.Load(),
		Handled:     b.handled.Load(),
		Errors:      b.errors.Load(),
		Handlers:    handlers,
		AnyHandlers: anyHandlers,
		Middleware:  middleware,
	}
}

// Replay republishes every unacked signal from the store through the
// transport, acking each one after delivery, and returns how many were
// replayed. Save is not re-invoked, so replaying cannot duplicate store
// records. Iteration order of GetUnacked is preserved.
func (b *Bus) Replay(ctx context.Context) (int, error) {
	sigs, err := b.store.GetUnacked(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load unacked signals: %w", err)
	}

	count := 0
	for _, sig := range sigs {
		if err := b.transport.Emit(ctx, sig); err != nil {
			return count, fmt.Errorf("failed to replay signal %s: %w", sig.ID, err)
		}
		if err := b.store.MarkAcked(ctx, sig.ID); err != nil {
			return count, fmt.Errorf("failed to ack replayed signal %s: %w", sig.ID, err)
		}
		count++
	}

	if count > 0 {
		b.logger.InfoContext(ctx, "replayed unacked signals", slog.Int("count", count))
	}

	return count, nil
}

// Close detaches the bus from its transport. Subsequent emits fail with
// ErrBusClosed; subscriptions and counters remain readable.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.unsubscribe()
	return nil
}

// dispatch is the single transport subscriber installed at construction.
// It folds the current middleware list around the terminal step and runs
// the chain. Middleware errors propagate to the transport and from there
// out of Emit.
func (b *Bus) dispatch(ctx context.Context, sig Signal) error {
	b.mu.RLock()
	typed := slices.Clone(b.typeHandlers[sig.Type])
	anyHandlers := slices.Clone(b.anyHandlers)
	middleware := slices.Clone(b.middleware)
	b.mu.RUnlock()

	terminal := func(ctx context.Context, sig Signal) error {
		for _, reg := range typed {
			b.runHandler(ctx, reg.fn, sig, "type:"+sig.Type)
		}
		for i, reg := range anyHandlers {
			b.runHandler(ctx, reg.fn, sig, fmt.Sprintf("any:%d", i))
		}
		return nil
	}

	return chainMiddleware(terminal, middleware)(ctx, sig)
}

// runHandler executes one subscriber under the executor. Failures are
// counted and reported, never propagated: one failing subscriber must not
// starve the ones after it.
func (b *Bus) runHandler(ctx context.Context, fn HandlerFunc, sig Signal, label string) {
	err := b.executor.Execute(ctx, func(ctx context.Context, sig Signal) error {
		return safeHandle(fn, ctx, sig)
	}, sig)
	if err == nil {
		b.handled.Add(1)
		return
	}

	b.errors.Add(1)
	b.logger.ErrorContext(ctx, "signal handler failed",
		slog.String("signal_id", sig.ID),
		slog.String("signal_type", sig.Type),
		slog.String("handler", label),
		slog.String("error", err.Error()))

	if b.onError != nil {
		b.onError(ctx, sig, label, err)
	}
}
