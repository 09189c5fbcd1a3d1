package dscore

import "context"

// Link is an open physical connection owned by a connector.
type Link interface {
	// SetState drives the connection into the given logical state.
	SetState(ctx context.Context, state State) error
	Close() error
}

// Opener opens a physical connection for a config.
type Opener func(ctx context.Context, cfg *Config) (Link, error)

// Backend binds a tag to its config spec, connection opener and capability adapter.
type Backend struct {
	Spec   ConfigSpec
	Open   Opener
	Driver func() Driver
}
