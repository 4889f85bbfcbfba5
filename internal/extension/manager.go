package extension

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Menersar/clipcc-extension/internal/observability"
)

var tracer = otel.Tracer("clipcc/extension")

// Manager owns the extension registry and drives lifecycle hooks
// according to resolved plans. Construct one explicitly and pass it by
// reference; there is no process-wide instance.
//
// Load, Unload, and Emit are serialized with an internal mutex so a plan
// is never computed against a registry that another manager operation is
// mutating.
type Manager struct {
	registry *Registry
	subs     *subscriptions
	loader   LoadFunc
	logger   *slog.Logger
	metrics  *observability.Metrics
	active   int
	mu       sync.Mutex
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithLoader sets the host callback that loads extensions lacking a
// structured API surface.
func WithLoader(fn LoadFunc) ManagerOption {
	return func(m *Manager) {
		m.loader = fn
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics enables Prometheus metrics recording.
func WithMetrics(metrics *observability.Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager creates an extension manager over an empty registry.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		registry: NewRegistry(),
		subs:     newSubscriptions(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Registry exposes the underlying registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Register adds an extension and compiles its event subscriptions. A
// refused registration (active id, invalid metadata) leaves the existing
// registration and its subscriptions untouched.
func (m *Manager) Register(info Info, inst Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.registry.Register(info, inst); err != nil {
		return err
	}
	if err := m.subs.set(info.ID, info.Events); err != nil {
		_ = m.registry.Deregister(info.ID)
		return oops.With("extension", info.ID).Wrap(err)
	}
	return nil
}

// Deregister removes an unloaded extension.
func (m *Manager) Deregister(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.registry.Deregister(id); err != nil {
		return err
	}
	m.subs.remove(id)
	return nil
}

// Load resolves a load plan for the requested ids and applies it:
// dependencies are initialized before their dependents, statuses are
// recorded afterward. A resolution failure applies nothing. Returns the
// applied plan.
func (m *Manager) Load(ctx context.Context, ids ...string) (plan []PlanEntry, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	planID := ulid.Make().String()
	ctx, span := tracer.Start(ctx, "extension.load",
		trace.WithAttributes(
			attribute.String("plan.id", planID),
			attribute.StringSlice("plan.requested", ids),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	resolver := NewResolver(m.registry)
	plan, err = resolver.ResolveLoadOrder(ids)
	m.metrics.RecordResolution("load", err)
	if err != nil {
		return nil, err
	}

	for _, step := range plan {
		if applyErr := m.applyLoadStep(ctx, planID, step); applyErr != nil {
			// Earlier steps stay loaded; the gauge must reflect them.
			m.metrics.SetActive(m.active)
			return nil, applyErr
		}
	}

	m.metrics.SetActive(m.active)
	m.logger.Info("load plan applied", "plan_id", planID, "steps", len(plan))
	return plan, nil
}

// applyLoadStep drives a single entry of a load plan.
func (m *Manager) applyLoadStep(ctx context.Context, planID string, step PlanEntry) error {
	status := m.registry.Status(step.ID)
	if status.Active() {
		// Already loaded; an explicit request promotes an implicit load.
		if step.Mode == ModeInitiative && status == StatusActiveImplicit {
			if err := m.registry.SetStatus(step.ID, StatusActiveInitiative); err != nil {
				return err
			}
			m.logger.Debug("promoted implicit extension", "plan_id", planID, "extension", step.ID)
		}
		return nil
	}

	info, ok := m.registry.Info(step.ID)
	if !ok {
		// The plan was resolved against this registry under the same lock.
		return oops.Code(CodeUnavailable).With("extension", step.ID).
			New("extension disappeared between resolution and apply")
	}

	if info.API {
		err := m.registry.Instance(step.ID).Init(ctx)
		m.metrics.RecordLifecycle("init", err)
		if err != nil {
			return oops.With("extension", step.ID).With("plan_id", planID).
				Hint("init failed, earlier plan steps remain loaded").Wrap(err)
		}
	} else {
		if m.loader == nil {
			return oops.With("extension", step.ID).
				New("no host loader configured for non-api extension")
		}
		err := m.loader(ctx, step.ID)
		m.metrics.RecordLifecycle("host_load", err)
		if err != nil {
			return oops.With("extension", step.ID).With("plan_id", planID).
				Hint("host load failed, earlier plan steps remain loaded").Wrap(err)
		}
	}

	target := StatusActiveImplicit
	if step.Mode == ModeInitiative {
		target = StatusActiveInitiative
	}
	if err := m.registry.SetStatus(step.ID, target); err != nil {
		return err
	}
	m.active++

	m.logger.Info("loaded extension",
		"plan_id", planID,
		"extension", step.ID,
		"version", info.Version,
		"mode", step.Mode.String())
	return nil
}

// Unload resolves a teardown plan for the requested ids and applies it:
// dependents are uninitialized before the extensions they depend on, and
// implicitly loaded dependencies are cleaned up in the same pass. Returns
// the applied order.
func (m *Manager) Unload(ctx context.Context, ids ...string) (order []string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	planID := ulid.Make().String()
	ctx, span := tracer.Start(ctx, "extension.unload",
		trace.WithAttributes(
			attribute.String("plan.id", planID),
			attribute.StringSlice("plan.requested", ids),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	resolver := NewResolver(m.registry)
	order, err = resolver.ResolveUnloadOrder(ids)
	m.metrics.RecordResolution("unload", err)
	if err != nil {
		return nil, err
	}

	for _, id := range order {
		if !m.registry.Status(id).Active() {
			continue
		}

		info, _ := m.registry.Info(id)
		if info.API {
			uninitErr := m.registry.Instance(id).Uninit(ctx)
			m.metrics.RecordLifecycle("uninit", uninitErr)
			if uninitErr != nil {
				m.metrics.SetActive(m.active)
				return nil, oops.With("extension", id).With("plan_id", planID).
					Hint("uninit failed, earlier plan steps remain unloaded").Wrap(uninitErr)
			}
		}
		// Non-API extensions have no teardown hook; the host side is
		// opaque and only the status changes.

		if setErr := m.registry.SetStatus(id, StatusUnloaded); setErr != nil {
			m.metrics.SetActive(m.active)
			return nil, setErr
		}
		m.active--

		m.logger.Info("unloaded extension", "plan_id", planID, "extension", id)
	}

	m.metrics.SetActive(m.active)
	return order, nil
}

// Emit delivers a named event to every active API extension whose
// declared patterns match. Handler failures are logged and joined; one
// failing extension does not stop delivery to the others.
func (m *Manager) Emit(ctx context.Context, event string, payload map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, span := tracer.Start(ctx, "extension.emit",
		trace.WithAttributes(attribute.String("event.name", event)),
	)
	defer span.End()

	var errs []error
	for _, id := range m.registry.KnownIDs() {
		if !m.registry.Status(id).Active() {
			continue
		}
		if !m.subs.matches(id, event) {
			continue
		}
		handler, ok := m.registry.Instance(id).(EventHandler)
		if !ok {
			continue
		}
		if err := handler.HandleEvent(ctx, event, payload); err != nil {
			m.logger.Warn("event handler failed",
				"extension", id,
				"event", event,
				"error", err)
			errs = append(errs, oops.With("extension", id).With("event", event).Wrap(err))
		}
	}
	return errors.Join(errs...)
}

// ActiveIDs returns the ids of all loaded extensions in lexical order.
func (m *Manager) ActiveIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for _, id := range m.registry.KnownIDs() {
		if m.registry.Status(id).Active() {
			out = append(out, id)
		}
	}
	return out
}

// Discovered contains a parsed manifest and its directory.
type Discovered struct {
	Manifest *Manifest
	Dir      string
}

// Discover finds all valid extension manifests under dir. Each extension
// lives in its own subdirectory containing an extension.yaml file.
// Invalid manifests are logged and skipped.
func Discover(dir string, logger *slog.Logger) ([]*Discovered, error) {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No extensions directory
		}
		return nil, oops.With("dir", dir).Hint("failed to read extensions directory").Wrap(err)
	}

	var found []*Discovered
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		extDir := filepath.Join(dir, entry.Name())
		manifestPath := filepath.Join(extDir, "extension.yaml")

		data, err := os.ReadFile(manifestPath) //nolint:gosec // manifestPath is constructed from ReadDir entries
		if err != nil {
			logger.Warn("skipping extension without manifest",
				"dir", entry.Name(),
				"error", err)
			continue
		}

		manifest, err := ParseManifest(data)
		if err != nil {
			logger.Warn("skipping extension with invalid manifest",
				"dir", entry.Name(),
				"error", err)
			continue
		}

		found = append(found, &Discovered{Manifest: manifest, Dir: extDir})
	}

	return found, nil
}
