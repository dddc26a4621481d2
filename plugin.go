package mailstore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rbaliyan/mailstore/store"
)

// Plugin is an engine extension with a lifecycle tied to Connect and Close.
// Plugins opt into hooks by also implementing IngestHook or DeleteHook.
type Plugin interface {
	Name() string
	// Init runs during Connect, in registration order.
	Init(ctx context.Context) error
	// Close runs during Close, in reverse registration order.
	Close(ctx context.Context) error
}

// IngestHook runs around Save. Use it for content checks, quota accounting
// or indexing pipelines.
type IngestHook interface {
	Plugin
	// BeforeSave runs after input validation and before any write. An
	// error aborts the save.
	BeforeSave(ctx context.Context, in *MessageInput) error
	// AfterSave runs once the record is visible. Errors are logged; the
	// message stays stored.
	AfterSave(ctx context.Context, rec *store.MessageRecord) error
}

// DeleteHook observes removals. It runs after the record is gone and
// errors are logged only.
type DeleteHook interface {
	Plugin
	AfterDelete(ctx context.Context, loc store.MessageLocator) error
}

// PluginError wraps a failure returned by a plugin.
type PluginError struct {
	Plugin string
	Op     string
	Err    error
}

func (e *PluginError) Error() string {
	return "plugin " + e.Plugin + " " + e.Op + ": " + e.Err.Error()
}

func (e *PluginError) Unwrap() error { return e.Err }

type pluginRegistry struct {
	plugins []Plugin
	ingest  []IngestHook
	deletes []DeleteHook
	logger  *slog.Logger
}

func newPluginRegistry(logger *slog.Logger) *pluginRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &pluginRegistry{logger: logger}
}

func (r *pluginRegistry) register(p Plugin) {
	r.plugins = append(r.plugins, p)
	if h, ok := p.(IngestHook); ok {
		r.ingest = append(r.ingest, h)
	}
	if h, ok := p.(DeleteHook); ok {
		r.deletes = append(r.deletes, h)
	}
}

// initAll initializes plugins in order. When one fails the plugins already
// initialized are closed again, newest first.
func (r *pluginRegistry) initAll(ctx context.Context) error {
	for i, p := range r.plugins {
		err := p.Init(ctx)
		if err == nil {
			continue
		}
		if rollbackErr := closeReverse(ctx, r.plugins[:i]); rollbackErr != nil {
			r.logger.Error("plugin rollback failed", "failed_plugin", p.Name(), "error", rollbackErr)
		}
		return &PluginError{Plugin: p.Name(), Op: "init", Err: err}
	}
	return nil
}

func (r *pluginRegistry) closeAll(ctx context.Context) error {
	return closeReverse(ctx, r.plugins)
}

func closeReverse(ctx context.Context, plugins []Plugin) error {
	var errs []error
	for i := len(plugins) - 1; i >= 0; i-- {
		if err := plugins[i].Close(ctx); err != nil {
			errs = append(errs, &PluginError{Plugin: plugins[i].Name(), Op: "close", Err: err})
		}
	}
	return errors.Join(errs...)
}

// runHooks calls fn for every hook. With stopEarly set the first failure is
// returned at once; otherwise all hooks run and failures are joined.
func runHooks[H Plugin](hooks []H, op string, stopEarly bool, fn func(H) error) error {
	var errs []error
	for _, h := range hooks {
		if err := fn(h); err != nil {
			pe := &PluginError{Plugin: h.Name(), Op: op, Err: err}
			if stopEarly {
				return pe
			}
			errs = append(errs, pe)
		}
	}
	return errors.Join(errs...)
}

func (r *pluginRegistry) beforeSave(ctx context.Context, in *MessageInput) error {
	return runHooks(r.ingest, "BeforeSave", true, func(h IngestHook) error {
		return h.BeforeSave(ctx, in)
	})
}

func (r *pluginRegistry) afterSave(ctx context.Context, rec *store.MessageRecord) error {
	return runHooks(r.ingest, "AfterSave", false, func(h IngestHook) error {
		return h.AfterSave(ctx, rec)
	})
}

func (r *pluginRegistry) afterDelete(ctx context.Context, loc store.MessageLocator) error {
	return runHooks(r.deletes, "AfterDelete", false, func(h DeleteHook) error {
		return h.AfterDelete(ctx, loc)
	})
}
