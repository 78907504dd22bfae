package ghs

// edgeTable is a fixed-capacity associative structure mapping peer AgentID
// to an Edge record. Lookup is linear scan: n is expected to stay small (one
// entry per physical neighbor), so a hash table buys nothing but
// complexity.
type edgeTable struct {
	myID     AgentID
	capacity int
	peers    []AgentID
	edges    []Edge
}

func newEdgeTable(myID AgentID, capacity int) *edgeTable {
	return &edgeTable{
		myID:     myID,
		capacity: capacity,
		peers:    make([]AgentID, 0, capacity),
		edges:    make([]Edge, 0, capacity),
	}
}

// indexOf returns the slot index of peer, or ErrImplReqPeerMyID if peer is
// this node's own id, or ErrNoSuchPeer if no edge to peer is stored.
func (t *edgeTable) indexOf(peer AgentID) (int, error) {
	if peer == t.myID {
		return -1, ErrImplReqPeerMyID
	}
	for i, p := range t.peers {
		if p == peer {
			return i, nil
		}
	}
	return -1, ErrNoSuchPeer
}

// hasEdge reports whether an edge to peer is stored. Never fails.
func (t *edgeTable) hasEdge(peer AgentID) bool {
	_, err := t.indexOf(peer)
	return err == nil
}

// setEdge inserts or updates the edge e, which must be rooted on myID. Slot
// identity for update purposes is determined by Peer alone.
func (t *edgeTable) setEdge(e Edge) error {
	if e.Root != t.myID {
		return ErrSetInvalidEdge
	}
	if e.Peer == t.myID {
		return ErrImplReqPeerMyID
	}
	idx, err := t.indexOf(e.Peer)
	switch err {
	case nil:
		t.edges[idx].Status = e.Status
		t.edges[idx].Metric = e.Metric
		return nil
	case ErrNoSuchPeer:
		if len(t.peers) >= t.capacity {
			return ErrTooManyAgents
		}
		t.peers = append(t.peers, e.Peer)
		t.edges = append(t.edges, e)
		return nil
	default:
		return err
	}
}

func (t *edgeTable) getEdge(peer AgentID) (Edge, error) {
	idx, err := t.indexOf(peer)
	if err != nil {
		return Edge{}, err
	}
	return t.edges[idx], nil
}

func (t *edgeTable) setEdgeStatus(peer AgentID, status EdgeStatus) error {
	idx, err := t.indexOf(peer)
	if err != nil {
		return err
	}
	t.edges[idx].Status = status
	return nil
}

func (t *edgeTable) setEdgeMetric(peer AgentID, metric Metric) error {
	idx, err := t.indexOf(peer)
	if err != nil {
		return err
	}
	t.edges[idx].Metric = metric
	return nil
}

// peerCount returns the number of distinct peers currently stored.
func (t *edgeTable) peerCount() int {
	return len(t.peers)
}

// all returns the stored edges in insertion order. The returned slice must
// not be mutated by callers.
func (t *edgeTable) all() []Edge {
	return t.edges
}

func (t *edgeTable) peerAt(idx int) AgentID {
	return t.peers[idx]
}

func (t *edgeTable) edgeAt(idx int) Edge {
	return t.edges[idx]
}
