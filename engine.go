package mailstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/event/v3/transport/noop"
	eventredis "github.com/rbaliyan/event/v3/transport/redis"
	"golang.org/x/sync/semaphore"

	"github.com/rbaliyan/mailstore/store"
	"github.com/rbaliyan/mailstore/store/blob"
)

// Connection states for the engine.
const (
	stateDisconnected int32 = 0
	stateConnecting   int32 = 1
	stateConnected    int32 = 2
)

// Engine stores and retrieves mailbox messages. It is safe for concurrent
// use once connected.
type Engine struct {
	substrate   store.Substrate
	records     store.RecordStore
	index       store.AttachmentIndex
	blobBackend store.BlobBackend
	blobs       *blob.Store

	logger   *slog.Logger
	opts     *options
	state    int32
	plugins  *pluginRegistry
	otel     *otelInstrumentation
	saveSem  *semaphore.Weighted
	eventBus *event.Bus
	events   *EngineEvents
}

// New creates an engine. Call Connect before use.
func New(opts ...Option) (*Engine, error) {
	o := newOptions(opts...)

	if o.substrate == nil {
		return nil, ErrSubstrateRequired
	}

	plugins := newPluginRegistry(o.logger)
	for _, p := range o.plugins {
		plugins.register(p)
	}

	otelInstr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}

	e := &Engine{
		substrate:   o.substrate,
		records:     o.substrate,
		index:       o.substrate,
		blobBackend: o.substrate,
		logger:      o.logger,
		opts:        o,
		plugins:     plugins,
		otel:        otelInstr,
		saveSem:     semaphore.NewWeighted(int64(o.maxConcurrentSaves)),
	}
	if o.records != nil {
		e.records = o.records
	}
	if o.index != nil {
		e.index = o.index
	}
	if o.blobs != nil {
		e.blobBackend = o.blobs
	}
	e.blobs = blob.New(e.blobBackend, append([]blob.Option{blob.WithLogger(o.logger)}, o.blobOpts...)...)

	return e, nil
}

// Events returns the engine's event instances. Nil before Connect.
func (e *Engine) Events() *EngineEvents {
	return e.events
}

// Blobs returns the content-addressed blob store used by the engine.
func (e *Engine) Blobs() store.BlobStore {
	return e.blobs
}

// IsConnected returns true if the engine is connected and ready.
func (e *Engine) IsConnected() bool {
	return atomic.LoadInt32(&e.state) == stateConnected
}

// Connect connects the substrate, creates the event bus and initializes
// plugins.
func (e *Engine) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&e.state, stateDisconnected, stateConnecting) {
		return ErrAlreadyConnected
	}

	success := false
	defer func() {
		if success {
			atomic.StoreInt32(&e.state, stateConnected)
		} else {
			atomic.StoreInt32(&e.state, stateDisconnected)
		}
	}()

	if err := e.substrate.Connect(ctx); err != nil {
		return fmt.Errorf("connect substrate: %w", err)
	}

	if err := e.initEventBus(ctx); err != nil {
		e.substrate.Close(ctx)
		return fmt.Errorf("init event bus: %w", err)
	}

	if err := e.plugins.initAll(ctx); err != nil {
		e.closeEventBus(ctx)
		e.substrate.Close(ctx)
		return fmt.Errorf("init plugins: %w", err)
	}

	success = true
	e.logger.Info("mailstore engine connected")
	return nil
}

// busCounter generates unique suffixes for event bus names.
var busCounter int64

func (e *Engine) initEventBus(ctx context.Context) error {
	busName := fmt.Sprintf("%s-%d", e.opts.serviceName, atomic.AddInt64(&busCounter, 1))

	var bus *event.Bus
	var err error

	switch {
	case e.opts.eventTransport != nil:
		e.logger.Info("initializing event bus with custom transport")
		bus, err = event.NewBus(busName, event.WithTransport(e.opts.eventTransport))
	case e.opts.redisClient != nil:
		e.logger.Info("initializing event bus with Redis transport")
		t, transportErr := eventredis.New(e.opts.redisClient)
		if transportErr != nil {
			return fmt.Errorf("create redis transport: %w", transportErr)
		}
		bus, err = event.NewBus(busName, event.WithTransport(t))
	default:
		e.logger.Debug("initializing event bus with noop transport")
		bus, err = event.NewBus(busName, event.WithTransport(noop.New()))
	}
	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	e.eventBus = bus

	e.events = newEngineEvents(busName)
	if err := registerEngineEvents(ctx, bus, e.events); err != nil {
		bus.Close(ctx)
		return fmt.Errorf("register engine events: %w", err)
	}
	return nil
}

func (e *Engine) closeEventBus(ctx context.Context) error {
	if e.eventBus == nil {
		return nil
	}
	err := e.eventBus.Close(ctx)
	e.eventBus = nil
	return err
}

// Close waits for in-flight saves, then closes plugins, the event bus and
// the substrate. Separately configured backends that implement Close are
// closed too. Closing a disconnected engine is a no-op.
func (e *Engine) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&e.state, stateConnected, stateDisconnected) {
		return nil
	}

	var errs []error

	e.logger.Info("waiting for in-flight saves to complete", "timeout", e.opts.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(ctx, e.opts.shutdownTimeout)
	defer cancel()
	if err := e.saveSem.Acquire(shutdownCtx, int64(e.opts.maxConcurrentSaves)); err != nil {
		e.logger.Warn("timeout waiting for in-flight saves, proceeding with shutdown", "error", err)
		errs = append(errs, fmt.Errorf("graceful shutdown timeout: %w", err))
	} else {
		e.saveSem.Release(int64(e.opts.maxConcurrentSaves))
	}

	if err := e.plugins.closeAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close plugins: %w", err))
	}

	if err := e.closeEventBus(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close event bus: %w", err))
	}

	if c, ok := e.blobBackend.(interface{ Close() error }); ok && e.opts.blobs != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close blob backend: %w", err))
		}
	}

	if err := e.substrate.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close substrate: %w", err))
	}

	return errors.Join(errs...)
}

func (e *Engine) checkConnected() error {
	if atomic.LoadInt32(&e.state) != stateConnected {
		return ErrNotConnected
	}
	return nil
}
