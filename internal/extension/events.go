package extension

import (
	"fmt"
	"sync"

	"github.com/gobwas/glob"
)

// compiledPattern holds an event pattern and its compiled glob.
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// subscriptions tracks which event names each extension wants.
//
// Pattern matching uses gobwas/glob with '.' as the segment separator:
//   - '*' matches a single segment (does not cross '.')
//   - '**' matches zero or more segments (crosses '.')
//
// An extension with no patterns receives no events.
type subscriptions struct {
	patterns map[string][]compiledPattern
	mu       sync.RWMutex
}

func newSubscriptions() *subscriptions {
	return &subscriptions{patterns: make(map[string][]compiledPattern)}
}

// set compiles and stores the event patterns for an extension. All
// patterns are compiled before state changes, so a bad pattern leaves the
// previous subscription intact.
func (s *subscriptions) set(id string, patterns []string) error {
	compiled := make([]compiledPattern, len(patterns))
	for i, pattern := range patterns {
		if pattern == "" {
			return fmt.Errorf("event pattern %d: empty pattern", i)
		}
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return fmt.Errorf("event pattern %d (%q): %w", i, pattern, err)
		}
		compiled[i] = compiledPattern{pattern: pattern, glob: g}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[id] = compiled
	return nil
}

func (s *subscriptions) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.patterns, id)
}

// matches reports whether the extension subscribed to the event name.
func (s *subscriptions) matches(id, event string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.patterns[id] {
		if p.glob.Match(event) {
			return true
		}
	}
	return false
}
