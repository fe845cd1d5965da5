// internal/vessel/store.go
package vessel

import (
	"strings"
	"sync"
)

// Delta is one Signal K delta message.
type Delta struct {
	Context string   `json:"context"`
	Updates []Update `json:"updates"`
}

type Update struct {
	Source    any     `json:"source,omitempty"`
	Timestamp string  `json:"timestamp"`
	Values    []Value `json:"values"`
}

type Value struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// Store keeps the merged vessel data model built from deltas.
// Leaves follow the Signal K full-model shape: {"value": v, "timestamp": ts}.
type Store struct {
	mu   sync.RWMutex
	root map[string]any
}

func NewStore() *Store {
	return &Store{root: map[string]any{}}
}

// Apply merges every value of d into the model.
// An empty path carries top-level properties (name, mmsi) as an object.
func (s *Store) Apply(d Delta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range d.Updates {
		for _, v := range u.Values {
			if v.Path == "" {
				if obj, ok := v.Value.(map[string]any); ok {
					for k, val := range obj {
						s.root[k] = val
					}
				}
				continue
			}
			setPath(s.root, strings.Split(v.Path, "."), map[string]any{
				"value":     v.Value,
				"timestamp": u.Timestamp,
			})
		}
	}
}

// Snapshot returns a deep copy of the model.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyMap(s.root)
}

func setPath(node map[string]any, parts []string, leaf map[string]any) {
	for _, p := range parts[:len(parts)-1] {
		next, ok := node[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[p] = next
		}
		node = next
	}

	last := parts[len(parts)-1]
	if existing, ok := node[last].(map[string]any); ok {
		// keep children already stored under an intermediate node
		for k, v := range leaf {
			existing[k] = v
		}
		return
	}
	node[last] = leaf
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = copyValue(t[i])
		}
		return out
	default:
		return v
	}
}
