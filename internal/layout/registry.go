package layout

import (
	"fmt"
	"log/slog"
)

// Registry holds one Adjuster per preset name. The configured preset
// replaces the built-in of the same name, so file overlays apply everywhere
// that name is requested.
type Registry struct {
	byName map[string]*Adjuster
	def    string
}

// NewRegistry builds adjusters for every built-in preset plus def.
func NewRegistry(def Preset, log *slog.Logger) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Adjuster), def: def.Name}
	for _, name := range PresetNames() {
		p, err := PresetByName(name)
		if err != nil {
			return nil, err
		}
		if name == def.Name {
			p = def
		}
		a, err := New(p, log)
		if err != nil {
			return nil, fmt.Errorf("preset %s: %w", name, err)
		}
		r.byName[name] = a
	}
	if _, ok := r.byName[def.Name]; !ok {
		a, err := New(def, log)
		if err != nil {
			return nil, fmt.Errorf("preset %s: %w", def.Name, err)
		}
		r.byName[def.Name] = a
	}
	return r, nil
}

// Get returns the adjuster for name. An empty name selects the default.
func (r *Registry) Get(name string) (*Adjuster, error) {
	if name == "" {
		name = r.def
	}
	a, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q", name)
	}
	return a, nil
}

// Default returns the adjuster for the configured preset.
func (r *Registry) Default() *Adjuster {
	return r.byName[r.def]
}
