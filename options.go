package datasource

import "github.com/goforj/datasource/dscore"

// Settings controls how a Registry is constructed.
type Settings struct {
	// Backends maps each tag to its config spec, opener and adapter.
	Backends map[dscore.Type]dscore.Backend

	// Observer receives an event after every handle operation.
	Observer Observer
}

func (s Settings) withDefaults() Settings {
	if s.Backends == nil {
		s.Backends = DefaultBackends()
	}
	return s
}

// Option mutates Settings when constructing a registry.
type Option func(Settings) Settings

// WithBackend registers or replaces the backend for a tag.
func WithBackend(tag dscore.Type, backend dscore.Backend) Option {
	return func(s Settings) Settings {
		s.Backends = cloneBackends(s.Backends)
		s.Backends[tag] = backend
		return s
	}
}

// WithoutBackend removes a tag so sources of that type fail with NoConfiguration.
func WithoutBackend(tag dscore.Type) Option {
	return func(s Settings) Settings {
		s.Backends = cloneBackends(s.Backends)
		delete(s.Backends, tag)
		return s
	}
}

// WithObserver sets the handle operation observer.
func WithObserver(o Observer) Option {
	return func(s Settings) Settings {
		s.Observer = o
		return s
	}
}

func cloneBackends(in map[dscore.Type]dscore.Backend) map[dscore.Type]dscore.Backend {
	if in == nil {
		in = DefaultBackends()
	}
	out := make(map[dscore.Type]dscore.Backend, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
