// Package extension provides extension registration, dependency
// resolution, and lifecycle management.
package extension

import "context"

// Info describes a registered extension. Info is immutable after
// registration; re-registering replaces it wholesale.
type Info struct {
	// ID uniquely identifies the extension.
	ID string
	// Version is the installed semantic version.
	Version string
	// Dependencies maps required extension ids to version-range
	// expressions (Masterminds/semver constraint syntax).
	Dependencies map[string]string
	// API is true when the extension exposes a structured init/uninit
	// surface handled in-process. Extensions without it are routed
	// through the host-provided load callback.
	API bool
	// Events lists event name patterns the extension wants delivered.
	// Patterns use glob syntax with '.' as the segment separator.
	Events []string
}

// Status is the load state of an extension.
type Status int

// Load states.
const (
	// StatusUnloaded means the extension is registered but not loaded.
	StatusUnloaded Status = iota
	// StatusActiveInitiative means the extension was explicitly
	// requested by the caller.
	StatusActiveInitiative
	// StatusActiveImplicit means the extension is loaded only because
	// another active extension depends on it.
	StatusActiveImplicit
)

// Active reports whether the status is one of the loaded states.
func (s Status) Active() bool {
	return s == StatusActiveInitiative || s == StatusActiveImplicit
}

func (s Status) String() string {
	switch s {
	case StatusUnloaded:
		return "unloaded"
	case StatusActiveInitiative:
		return "active-initiative"
	case StatusActiveImplicit:
		return "active-implicit"
	default:
		return "unknown"
	}
}

// Mode says why a plan entry is being loaded.
type Mode int

// Plan entry modes.
const (
	// ModeInitiative marks an id that was in the original request.
	ModeInitiative Mode = iota
	// ModePassive marks an id pulled in only as a transitive dependency.
	ModePassive
)

func (m Mode) String() string {
	if m == ModeInitiative {
		return "initiative"
	}
	return "passive"
}

// PlanEntry is one step of a load plan.
type PlanEntry struct {
	ID   string
	Mode Mode
}

// Instance is the structured lifecycle surface of an API extension.
type Instance interface {
	// Init is called when the extension is loaded.
	Init(ctx context.Context) error
	// Uninit is called when the extension is unloaded.
	Uninit(ctx context.Context) error
}

// EventHandler is optionally implemented by instances that want named
// event dispatch.
type EventHandler interface {
	HandleEvent(ctx context.Context, event string, payload map[string]any) error
}

// LoadFunc loads an extension that lacks a structured API surface. Its
// effects are opaque to the manager.
type LoadFunc func(ctx context.Context, id string) error
