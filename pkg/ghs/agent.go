// Package ghs implements the Gallager-Humblet-Spira distributed minimum
// spanning tree / leader election algorithm as a per-node state machine.
//
// A GhsState consumes one message at a time through Process, mutates local
// state and returns a bounded set of outgoing messages. The package performs
// no I/O: delivering messages and draining the outgoing queue is the
// responsibility of a caller-provided transport.
package ghs

// AgentID uniquely identifies a node among all participants of a run.
type AgentID uint16

// NoAgent is the sentinel AgentID meaning "no agent".
const NoAgent AgentID = 0xFFFF

// Level is a per-partition counter, incremented only when two partitions of
// equal level merge.
type Level int

// LevelStart is the level every node begins execution at.
const LevelStart Level = 0
