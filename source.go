package datasource

import "github.com/goforj/datasource/dscore"

// Source is a memoized descriptor with its canonical name.
type Source struct {
	Descriptor
	raw  string
	name string
}

// Name is the canonical identity shared by every spelling of the same source.
func (s *Source) Name() string { return s.name }

// Raw returns the connection string the source was first parsed from.
func (s *Source) Raw() string { return s.raw }

func newSource(raw string) (*Source, error) {
	d, err := ParseDSN(raw)
	if err != nil {
		return nil, err
	}
	logger.Debugf("parsed %s source %q", d.Type, d.Redacted())
	return &Source{Descriptor: d, raw: raw, name: d.Identity()}, nil
}

// newConfig applies the source options onto a fresh config for its backend.
func newConfig(src *Source, backend dscore.Backend) (*dscore.Config, error) {
	cfg := dscore.NewConfig(backend.Spec, src.Name())
	if err := cfg.Set("type", string(src.Type)); err != nil {
		return nil, err
	}
	for _, name := range sortedKeys(src.Options) {
		if name == "type" {
			continue
		}
		if err := cfg.Set(name, src.Options[name]); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
