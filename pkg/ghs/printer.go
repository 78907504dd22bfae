package ghs

import "fmt"

// Snapshot is a read-only view of a GhsState's fields, useful for logging
// and tests without reaching into package-private state.
type Snapshot struct {
	MyID      AgentID
	Leader    AgentID
	Level     Level
	Parent    AgentID
	Converged bool
	BestEdge  Edge
	Waiting   int
	Deferred  int
}

// Dump captures a Snapshot of the current state.
func (s *GhsState) Dump() Snapshot {
	return Snapshot{
		MyID:      s.myID,
		Leader:    s.myLeader,
		Level:     s.myLevel,
		Parent:    s.parent,
		Converged: s.converged,
		BestEdge:  s.bestEdge,
		Waiting:   s.waitingCount(),
		Deferred:  s.deferredCount(),
	}
}

// DumpEdges returns a copy of every edge currently stored, in insertion
// order.
func (s *GhsState) DumpEdges() []Edge {
	out := make([]Edge, s.edges.peerCount())
	copy(out, s.edges.all())
	return out
}

// DumpPeers returns the AgentID of every known peer, in insertion order.
func (s *GhsState) DumpPeers() []AgentID {
	out := make([]AgentID, s.edges.peerCount())
	for i := range out {
		out[i] = s.edges.peerAt(i)
	}
	return out
}

// String renders a one-line human-readable summary, used by logging and
// test failure messages.
func (s *GhsState) String() string {
	snap := s.Dump()
	return fmt.Sprintf(
		"agent=%d leader=%d level=%d parent=%d converged=%t waiting=%d deferred=%d mwoe={peer=%d root=%d metric=%d}",
		snap.MyID, snap.Leader, snap.Level, snap.Parent, snap.Converged, snap.Waiting, snap.Deferred,
		snap.BestEdge.Peer, snap.BestEdge.Root, snap.BestEdge.Metric,
	)
}

func (e Edge) String() string {
	return fmt.Sprintf("Edge{peer=%d root=%d status=%s metric=%d}", e.Peer, e.Root, e.Status, e.Metric)
}

func (m Message) String() string {
	return fmt.Sprintf("Message{to=%d from=%d kind=%s payload=%+v}", m.To, m.From, m.Payload.Kind(), m.Payload)
}
