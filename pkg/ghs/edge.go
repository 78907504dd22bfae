package ghs

import "math"

// Metric is an edge weight. Two values are reserved: MetricNotSet and
// MetricWorst. The transport layer must arrange for metrics to be symmetric
// (both endpoints of a link observe the same value) and globally unique.
type Metric uint64

const (
	// MetricNotSet marks an edge whose weight has not yet been measured.
	MetricNotSet Metric = 0
	// MetricWorst is the maximum representable metric, used as the
	// "nothing found yet" sentinel during a search round.
	MetricWorst Metric = math.MaxUint64
)

// IsValidMetric reports whether m is neither reserved value.
func IsValidMetric(m Metric) bool {
	return m != MetricNotSet && m != MetricWorst
}

// EdgeStatus classifies an edge from the local node's point of view.
type EdgeStatus int

const (
	// StatusUnknown edges have not yet been probed, or a probe is in flight.
	StatusUnknown EdgeStatus = iota
	// StatusMst edges are part of the minimum spanning tree.
	StatusMst
	// StatusDeleted edges have been ruled out, either because they turned
	// out to be internal to our own partition or the transport reported
	// permanent delivery failure.
	StatusDeleted
)

func (s EdgeStatus) String() string {
	switch s {
	case StatusUnknown:
		return "UNKNOWN"
	case StatusMst:
		return "MST"
	case StatusDeleted:
		return "DELETED"
	default:
		return "INVALID"
	}
}

// Edge is a directed record of one outgoing link. Root is always the local
// node's id; Peer identifies the remote endpoint.
type Edge struct {
	Peer   AgentID
	Root   AgentID
	Status EdgeStatus
	Metric Metric
}

// WorstEdge returns the sentinel edge used to seed a new search round: no
// candidate minimum-weight outgoing edge is known yet.
func WorstEdge() Edge {
	return Edge{Peer: NoAgent, Root: NoAgent, Status: StatusUnknown, Metric: MetricWorst}
}

// IsValid reports whether e could plausibly be stored: its two endpoints
// differ, neither is NoAgent, and its metric is neither reserved value.
func (e Edge) IsValid() bool {
	return e.Peer != e.Root && e.Peer != NoAgent && e.Root != NoAgent && IsValidMetric(e.Metric)
}
