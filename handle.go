package datasource

import (
	"context"

	"github.com/goforj/datasource/dscore"
)

// handle is the resolved pipeline shared by every contract. A handle with err
// set is a failed handle: every accessor returns the empty value and err.
type handle struct {
	typ      dscore.Type
	cfg      *dscore.Config
	conn     *Connector
	state    dscore.State
	sql      dscore.SQL
	hash     dscore.Hash
	prefix   string
	observer Observer
	err      error
}

func (h handle) as(c Contract) Provider {
	switch c {
	case ContractBrowser:
		return &Browser{handle: h}
	case ContractNavigator:
		return &Navigator{handle: h}
	default:
		return &Cache{handle: h}
	}
}

// Type returns the backend tag.
func (h *handle) Type() dscore.Type { return h.typ }

// Err returns the pipeline failure of a failed handle.
func (h *handle) Err() error { return h.err }

// Config returns the resolved config, or nil for a failed handle.
func (h *handle) Config() *dscore.Config { return h.cfg }

// Connector returns the shared connector, or nil for a failed handle.
func (h *handle) Connector() *Connector { return h.conn }

// State returns the state the handle requires of its connector.
func (h *handle) State() dscore.State { return h.state.Clone() }

func (h *handle) do(ctx context.Context, fn func(link dscore.Link) error) error {
	if h.err != nil {
		return h.err
	}
	return h.conn.Do(ctx, h.state, fn)
}
