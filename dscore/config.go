package dscore

import (
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Slot is a canonical config property and its default value.
type Slot struct {
	Name    string
	Default string
}

// ConfigSpec describes one backend's property bag and derived identities.
type ConfigSpec struct {
	Type    Type
	Slots   []Slot
	Aliases map[string]string
	// Provider, Connect and State list canonical slots in identity order.
	Provider []string
	Connect  []string
	State    []string
}

// Canonical resolves an option name or alias to its canonical slot.
func (s ConfigSpec) Canonical(name string) (string, bool) {
	for _, slot := range s.Slots {
		if slot.Name == name {
			return name, true
		}
	}
	if target, ok := s.Aliases[name]; ok {
		return target, true
	}
	return "", false
}

// Config is a named property bag seeded with backend defaults. Writes through
// any alias land in the canonical slot.
type Config struct {
	mu     sync.RWMutex
	spec   ConfigSpec
	name   string
	typ    Type
	values map[string]string
}

// NewConfig builds a Config with the spec defaults applied.
func NewConfig(spec ConfigSpec, name string) *Config {
	values := make(map[string]string, len(spec.Slots))
	for _, slot := range spec.Slots {
		values[slot.Name] = slot.Default
	}
	return &Config{spec: spec, name: name, typ: spec.Type, values: values}
}

// Name returns the identity of the source the config was built for.
func (c *Config) Name() string { return c.name }

// Type returns the backend tag, which may be a member of the spec's family.
func (c *Config) Type() Type {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.typ
}

// Spec returns the backend spec.
func (c *Config) Spec() ConfigSpec { return c.spec }

// Set writes a value through its canonical name or any alias.
func (c *Config) Set(name, value string) error {
	if name == "type" {
		t, ok := ParseType(value)
		if !ok {
			return NewFail(StatusUnknownSourceType, "unknown source type %q", value)
		}
		if t.Family() != c.spec.Type.Family() {
			return NewFail(StatusNoConfiguration, "config for %s cannot hold type %s", c.spec.Type, t)
		}
		c.mu.Lock()
		c.typ = t
		c.mu.Unlock()
		return nil
	}
	slot, ok := c.spec.Canonical(name)
	if !ok {
		return NewFail(StatusUnknownOption, "unknown option %q for %s", name, c.spec.Type)
	}
	c.mu.Lock()
	c.values[slot] = value
	c.mu.Unlock()
	return nil
}

// Lookup reads a value through its canonical name or any alias.
func (c *Config) Lookup(name string) (string, bool) {
	if name == "type" {
		return string(c.Type()), true
	}
	slot, ok := c.spec.Canonical(name)
	if !ok {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[slot], true
}

// Get reads a value, returning "" for unknown names.
func (c *Config) Get(name string) string {
	v, _ := c.Lookup(name)
	return v
}

// Bool reads a flag; on, true, yes and 1 are truthy.
func (c *Config) Bool(name string) bool { return Truthy(c.Get(name)) }

// Int reads an integer slot; an empty slot yields 0.
func (c *Config) Int(name string) (int, error) {
	raw := strings.TrimSpace(c.Get(name))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// Duration reads a Go duration or a whole number of seconds; empty yields 0.
func (c *Config) Duration(name string) (time.Duration, error) {
	return ParseDuration(c.Get(name))
}

// Options returns a snapshot of every canonical slot.
func (c *Config) Options() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// ProviderID identifies an isolated logical view of the source.
func (c *Config) ProviderID() string { return c.render(c.spec.Provider) }

// ConnectID identifies the physical connection, excluding per-view state.
func (c *Config) ConnectID() string { return c.render(c.spec.Connect) }

// StateID returns the state vector a connector must hold for this config.
func (c *Config) StateID() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state := make(State, 0, len(c.spec.State))
	for _, slot := range c.spec.State {
		state = append(state, c.values[slot])
	}
	return state
}

func (c *Config) render(slots []string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	parts := make([]string, 0, len(slots))
	for _, slot := range slots {
		parts = append(parts, slot+"="+url.QueryEscape(c.values[slot]))
	}
	return strings.Join(parts, "&")
}

// Truthy interprets descriptor flag values.
func Truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "yes", "1":
		return true
	}
	return false
}

// ParseDuration accepts "1.5s" style durations or whole seconds.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(raw)
}
