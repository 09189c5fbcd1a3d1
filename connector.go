package datasource

import (
	"context"
	"sync"

	"github.com/goforj/datasource/dscore"
)

// Connector owns one physical link and the logical state it was last driven
// into. Links are shared by every handle with the same connect identity, so
// reconcile and query run one at a time per connector.
type Connector struct {
	mu    sync.Mutex
	id    string
	typ   dscore.Type
	link  dscore.Link
	err   error
	state dscore.State
	known bool

	reconciles int
}

func openConnector(ctx context.Context, id string, cfg *dscore.Config, backend dscore.Backend) *Connector {
	c := &Connector{id: id, typ: cfg.Type()}
	if backend.Open == nil {
		c.err = dscore.NewFail(dscore.StatusNoSuitableConnector, "no connector for %s", cfg.Type())
		return c
	}
	link, err := backend.Open(ctx, cfg)
	if err != nil {
		c.err = dscore.AsFail(err, dscore.StatusServerDown)
		logger.Warningf("connect %s failed: %s", dscore.Redact(id), dscore.Redact(err.Error()))
		return c
	}
	logger.Debugf("connected %s", dscore.Redact(id))
	c.link = link
	return c
}

// ID returns the registry key of the connector.
func (c *Connector) ID() string { return c.id }

// Type returns the backend tag the link was opened for.
func (c *Connector) Type() dscore.Type { return c.typ }

// Err returns the stored open failure, if any.
func (c *Connector) Err() error { return c.err }

// State returns the last reconciled state, or nil while it is unknown.
func (c *Connector) State() dscore.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.known {
		return nil
	}
	return c.state.Clone()
}

// Reconciles counts successful state changes.
func (c *Connector) Reconciles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconciles
}

// CheckState drives the link into state unless it is already there.
func (c *Connector) CheckState(ctx context.Context, state dscore.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkState(ctx, state)
}

// Do reconciles state and runs fn on the link while holding the connector.
func (c *Connector) Do(ctx context.Context, state dscore.State, fn func(link dscore.Link) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkState(ctx, state); err != nil {
		return err
	}
	return fn(c.link)
}

// Peek runs fn on the link while holding the connector, leaving its state as
// it is.
func (c *Connector) Peek(fn func(link dscore.Link) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.link == nil {
		return dscore.NewFail(dscore.StatusConnectionNotInit, "connector %s is closed", dscore.Redact(c.id))
	}
	return fn(c.link)
}

func (c *Connector) checkState(ctx context.Context, state dscore.State) error {
	if c.err != nil {
		return c.err
	}
	if c.link == nil {
		return dscore.NewFail(dscore.StatusConnectionNotInit, "connector %s is closed", dscore.Redact(c.id))
	}
	if c.known && c.state.Equal(state) {
		return nil
	}
	if err := c.link.SetState(ctx, state.Clone()); err != nil {
		c.known, c.state = false, nil
		logger.Warningf("reconcile %s to %s failed: %s", dscore.Redact(c.id), state, dscore.Redact(err.Error()))
		return dscore.AsFail(err, dscore.StatusStateNotEstablished)
	}
	logger.Debugf("reconciled %s to %s", dscore.Redact(c.id), state)
	c.state, c.known = state.Clone(), true
	c.reconciles++
	return nil
}

// Close releases the link. Later operations fail with ConnectionNotInit.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link == nil {
		return nil
	}
	err := c.link.Close()
	c.link, c.known, c.state = nil, false, nil
	return err
}
