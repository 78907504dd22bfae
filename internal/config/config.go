// Package config loads the settings a ghs-demo process needs to start: this
// node's id, its peers' endpoints, how long to wait before the round begins,
// and whether to run the startup self-test and exit instead of joining. It
// mirrors the
// original demo's split between an ini-formatted file (ghs-demo-inireader)
// and command-line switches (ghs-demo-clireader), with CLI flags always
// taking precedence over the file.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// MaxAgents bounds how many peers a single Config can describe, matching
// the original demo's MAX_N.
const MaxAgents = 16

// NoAgent is the sentinel "not set yet" id, matching the original's
// ID_UNSET.
const NoAgent = 255

// Command selects what a demo process does after it parses its Config.
type Command int

const (
	// CommandLoad reads the config and does nothing else.
	CommandLoad Command = iota
	// CommandTest runs the startup self-test and exits.
	CommandTest
	// CommandStart begins MST construction after WaitSeconds.
	CommandStart
)

// Peer describes one agent's network endpoint.
type Peer struct {
	ID       int
	Endpoint string
}

// Config is the union of every setting a ghs-demo process needs.
type Config struct {
	MyID            int
	WaitSeconds     int
	Command         Command
	RetryConnections bool
	Peers           []Peer
}

// New returns a Config with the original demo's defaults: no id assigned,
// zero wait, load-only command, no retry.
func New() *Config {
	return &Config{MyID: NoAgent, Command: CommandLoad}
}

// IsSane reports whether the config is complete enough to start a round:
// an id has been assigned, it is within MaxAgents, and every peer has a
// non-empty endpoint. Mirrors the original's cfg_is_ok.
func (c *Config) IsSane() error {
	if c.MyID == NoAgent {
		return fmt.Errorf("config: no agent id assigned")
	}
	if c.MyID < 0 || c.MyID >= MaxAgents {
		return fmt.Errorf("config: agent id %d out of range [0,%d)", c.MyID, MaxAgents)
	}
	if len(c.Peers) > MaxAgents {
		return fmt.Errorf("config: %d peers exceeds max %d", len(c.Peers), MaxAgents)
	}
	for _, p := range c.Peers {
		if p.Endpoint == "" {
			return fmt.Errorf("config: peer %d has an empty endpoint", p.ID)
		}
	}
	return nil
}

// LoadFile reads an ini-formatted config file into a new Config, under a [ghs] section
// for the scalar settings and a [peers] section mapping "<id>" keys to
// endpoint strings.
func LoadFile(path string) (*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	return fromFile(f)
}

func fromFile(f *ini.File) (*Config, error) {
	c := New()
	main := f.Section("ghs")
	c.MyID = main.Key("id").MustInt(NoAgent)
	c.WaitSeconds = main.Key("wait_s").MustInt(0)
	c.RetryConnections = main.Key("retry_connections").MustBool(false)

	peers := f.Section("peers")
	for _, key := range peers.Keys() {
		var id int
		if _, err := fmt.Sscanf(key.Name(), "%d", &id); err != nil {
			return nil, fmt.Errorf("config: bad peer key %q: %w", key.Name(), err)
		}
		c.Peers = append(c.Peers, Peer{ID: id, Endpoint: key.String()})
	}
	return c, nil
}
