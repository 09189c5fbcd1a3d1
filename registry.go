// Package datasource resolves connection strings into shared, state-aware
// connections and exposes them through Browser, Navigator and Cache handles.
package datasource

import (
	"context"
	"strings"

	"github.com/goforj/datasource/dscore"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("datasource")

// Registry memoizes every stage of the resolution pipeline: sources by
// connection string, configs by source name, connectors by connect identity,
// drivers by backend tag and handles by contract and connection string.
type Registry struct {
	settings   Settings
	sources    memo[*Source]
	configs    memo[*dscore.Config]
	connectors memo[*Connector]
	drivers    memo[dscore.Driver]
	providers  memo[Provider]
}

// New builds a registry over the default backends.
// @group Constructors
//
// Example: browse a sqlite file
//
//	reg := datasource.New()
//	defer reg.Close()
//	db, err := reg.Browser(ctx, "sqlite://./app.db")
//	if err != nil {
//		return err
//	}
//	names, _ := db.Column(ctx, "SELECT name FROM users WHERE id > {id}", datasource.Vars{"id": 10})
//	fmt.Println(names)
func New(opts ...Option) *Registry {
	var s Settings
	for _, opt := range opts {
		s = opt(s)
	}
	return &Registry{settings: s.withDefaults()}
}

// Source parses a connection string once and returns the shared result.
func (r *Registry) Source(dsn string) (*Source, error) {
	key := strings.TrimSpace(dsn)
	if key == "" {
		return nil, dscore.NewFail(dscore.StatusMissingArgumentDSN, "empty connection string")
	}
	return r.sources.get(key, func() (*Source, error) { return newSource(key) })
}

// Config returns the backend config populated from the source's options.
func (r *Registry) Config(dsn string) (*dscore.Config, error) {
	src, err := r.Source(dsn)
	if err != nil {
		return nil, err
	}
	return r.configs.get(src.Name(), func() (*dscore.Config, error) {
		backend, ok := r.settings.Backends[src.Type]
		if !ok {
			return nil, dscore.NewFail(dscore.StatusNoConfiguration, "no configuration for %s", src.Type)
		}
		return newConfig(src, backend)
	})
}

// Connector returns the shared connector for the config's connect identity.
// A connector whose open failed keeps returning that failure.
func (r *Registry) Connector(ctx context.Context, dsn string) (*Connector, error) {
	cfg, err := r.Config(dsn)
	if err != nil {
		return nil, err
	}
	key := string(cfg.Type().Family()) + "://" + cfg.ConnectID()
	conn, _ := r.connectors.get(key, func() (*Connector, error) {
		return openConnector(ctx, key, cfg, r.settings.Backends[cfg.Type()]), nil
	})
	if err := conn.Err(); err != nil {
		return conn, err
	}
	return conn, nil
}

// Driver returns the stateless capability adapter for a backend tag.
func (r *Registry) Driver(tag dscore.Type) (dscore.Driver, error) {
	return r.drivers.get(string(tag), func() (dscore.Driver, error) {
		backend, ok := r.settings.Backends[tag]
		if !ok {
			return nil, dscore.NewFail(dscore.StatusNoConfiguration, "no configuration for %s", tag)
		}
		if backend.Driver == nil {
			return nil, dscore.NewFail(dscore.StatusMaintenanceFreeConnection, "no driver for %s", tag)
		}
		drv := backend.Driver()
		if drv == nil {
			return nil, dscore.NewFail(dscore.StatusMaintenanceFreeConnection, "no driver for %s", tag)
		}
		return drv, nil
	})
}

// Provider resolves the whole pipeline and returns the shared handle for
// contract and dsn. On failure it returns a failed handle and the failure.
func (r *Registry) Provider(ctx context.Context, contract Contract, dsn string) (Provider, error) {
	if _, ok := contractNames[contract]; !ok {
		return nil, dscore.NewFail(dscore.StatusUnknownContractorName, "unknown contract %d", int(contract))
	}
	key := contract.String() + "::" + strings.TrimSpace(dsn)
	if src, err := r.Source(dsn); err == nil {
		key = contract.String() + "::" + src.Name()
	}
	return r.providers.get(key, func() (Provider, error) {
		h, err := r.build(ctx, contract, dsn)
		if err != nil {
			logger.Warningf("%s for %q failed: %s", contract, dscore.Redact(dsn), dscore.Redact(err.Error()))
			h.err = err
		}
		return h.as(contract), err
	})
}

// ProviderNamed is Provider with the contract given by name.
func (r *Registry) ProviderNamed(ctx context.Context, contract, dsn string) (Provider, error) {
	c, err := ParseContract(contract)
	if err != nil {
		return nil, err
	}
	return r.Provider(ctx, c, dsn)
}

// Browser returns the shared Browser for dsn.
func (r *Registry) Browser(ctx context.Context, dsn string) (*Browser, error) {
	p, err := r.Provider(ctx, ContractBrowser, dsn)
	return p.(*Browser), err
}

// Navigator returns the shared Navigator for dsn.
func (r *Registry) Navigator(ctx context.Context, dsn string) (*Navigator, error) {
	p, err := r.Provider(ctx, ContractNavigator, dsn)
	return p.(*Navigator), err
}

// Cache returns the shared Cache for dsn.
func (r *Registry) Cache(ctx context.Context, dsn string) (*Cache, error) {
	p, err := r.Provider(ctx, ContractCache, dsn)
	return p.(*Cache), err
}

// Close closes every open connector. Handles resolved earlier fail with
// ConnectionNotInit afterwards.
func (r *Registry) Close() error {
	var first error
	r.connectors.each(func(key string, conn *Connector, _ error) {
		if conn == nil {
			return
		}
		if err := conn.Close(); err != nil {
			logger.Warningf("close %s: %s", dscore.Redact(key), dscore.Redact(err.Error()))
			if first == nil {
				first = err
			}
		}
	})
	return first
}

func (r *Registry) build(ctx context.Context, contract Contract, dsn string) (handle, error) {
	h := handle{observer: r.settings.Observer}
	if src, err := r.Source(dsn); err == nil {
		h.typ = src.Type
	}
	cfg, err := r.Config(dsn)
	if err != nil {
		return h, err
	}
	h.cfg, h.typ, h.state = cfg, cfg.Type(), cfg.StateID()
	conn, err := r.Connector(ctx, dsn)
	if err != nil {
		return h, err
	}
	h.conn = conn
	drv, err := r.Driver(cfg.Type())
	if err != nil {
		return h, err
	}
	switch contract {
	case ContractBrowser, ContractNavigator:
		sql, ok := drv.(dscore.SQL)
		if !ok {
			return h, dscore.NewFail(dscore.StatusImpossibleDataProvider, "%s cannot serve a %s", cfg.Type(), contract)
		}
		h.sql = sql
	case ContractCache:
		hash, ok := drv.(dscore.Hash)
		if !ok {
			return h, dscore.NewFail(dscore.StatusImpossibleDataProvider, "%s cannot serve a %s", cfg.Type(), contract)
		}
		h.hash, h.prefix = hash, cfg.Get("prefix")
	}
	logger.Debugf("built %s for %s", contract, dscore.Redact(cfg.ProviderID()))
	return h, nil
}
