package ghs

import (
	"fmt"
	"testing"
)

// network is a tiny FIFO message simulator used by the end-to-end scenario
// tests below. It owns no goroutines: messages are drained synchronously in
// the order they were enqueued, which is enough to pin down the exact
// message cascades spec.md's seed tests (S1, S2) describe.
type network struct {
	nodes   map[AgentID]*GhsState
	pending []Message
	trail   []Message
}

func newNetwork() *network {
	return &network{nodes: make(map[AgentID]*GhsState)}
}

func (n *network) addNode(s *GhsState) {
	n.nodes[s.MyID()] = s
}

func (n *network) enqueue(q *Queue[Message]) {
	for q.Size() > 0 {
		m, err := q.Pop()
		if err != nil {
			panic(err)
		}
		n.pending = append(n.pending, m)
	}
}

// drain processes pending messages one at a time (newly produced messages
// go to the back of the queue) until empty or the step budget is spent.
// It returns the number of messages processed.
func (n *network) drain(maxSteps int) int {
	steps := 0
	out := NewQueue[Message](64)
	for len(n.pending) > 0 && steps < maxSteps {
		m := n.pending[0]
		n.pending = n.pending[1:]
		n.trail = append(n.trail, m)
		node, ok := n.nodes[m.To]
		if !ok {
			panic(fmt.Sprintf("no such node %d", m.To))
		}
		out.Clear()
		if err := node.Process(m, out); err != nil {
			panic(fmt.Sprintf("process %s at node %d: %v", m, m.To, err))
		}
		n.enqueue(out)
		steps++
	}
	return steps
}

func symmetricEdges(a, b AgentID, metric Metric) (Edge, Edge) {
	return Edge{Peer: b, Root: a, Status: StatusUnknown, Metric: metric},
		Edge{Peer: a, Root: b, Status: StatusUnknown, Metric: metric}
}

func kindTrail(ms []Message) []MessageKind {
	out := make([]MessageKind, len(ms))
	for i, m := range ms {
		out[i] = m.Payload.Kind()
	}
	return out
}

func countKind(ms []Message, k MessageKind) int {
	n := 0
	for _, m := range ms {
		if m.Payload.Kind() == k {
			n++
		}
	}
	return n
}

// --- Invariants (spec.md §8, items 1-13) ---

func TestInvariant_EdgesRootedOnSelf(t *testing.T) {
	s := NewState(0, 4, []Edge{{Peer: 1, Root: 0, Metric: 5}, {Peer: 2, Root: 0, Metric: 6}})
	for _, e := range s.DumpEdges() {
		if e.Root != s.MyID() {
			t.Errorf("edge %v not rooted on self", e)
		}
	}
}

func TestInvariant_NoMstEdgeIsDeleted(t *testing.T) {
	s := NewState(0, 2, []Edge{{Peer: 1, Root: 0, Metric: 5}})
	_ = s.SetEdgeStatus(1, StatusMst)
	for _, e := range s.DumpEdges() {
		if e.Status == StatusDeleted {
			t.Fatalf("edge %v set to MST reads back as deleted", e)
		}
	}
	e, _ := s.GetEdge(1)
	if e.Status != StatusMst {
		t.Errorf("expected MST status to stick")
	}
}

func TestInvariant_LevelMonotoneNonDecreasing(t *testing.T) {
	net := newNetwork()
	a := NewState(0, 2, nil)
	b := NewState(1, 2, nil)
	ea, eb := symmetricEdges(0, 1, 42)
	_ = a.SetEdge(ea)
	_ = b.SetEdge(eb)
	net.addNode(a)
	net.addNode(b)

	levels := []Level{a.LevelOf()}
	out := NewQueue[Message](8)
	_ = a.StartRound(out)
	net.enqueue(out)
	out.Clear()
	_ = b.StartRound(out)
	net.enqueue(out)

	for net.drain(1) > 0 {
		levels = append(levels, a.LevelOf())
	}
	for i := 1; i < len(levels); i++ {
		if levels[i] < levels[i-1] {
			t.Fatalf("level decreased: %v", levels)
		}
	}
}

// --- Round-trip / idempotence ---

func TestRoundTrip_SetEdgeTwiceIdentical(t *testing.T) {
	s := NewState(0, 4, nil)
	e := Edge{Peer: 1, Root: 0, Metric: 9}
	if err := s.SetEdge(e); err != nil {
		t.Fatalf("first: %v", err)
	}
	before := len(s.DumpPeers())
	if err := s.SetEdge(e); err != nil {
		t.Fatalf("second: %v", err)
	}
	if len(s.DumpPeers()) != before {
		t.Errorf("peer table grew on idempotent set")
	}
}

func TestRoundTrip_ResetTwiceIdentical(t *testing.T) {
	s := NewState(0, 4, []Edge{{Peer: 1, Root: 0, Metric: 9}})
	s.Reset()
	first := s.Dump()
	s.Reset()
	second := s.Dump()
	if first != second {
		t.Errorf("reset is not idempotent: %+v vs %+v", first, second)
	}
}

// --- Boundary behaviors ---

func TestBoundary_SetEdgePastCapacity(t *testing.T) {
	s := NewState(0, 1, []Edge{{Peer: 1, Root: 0, Metric: 5}})
	if err := s.SetEdge(Edge{Peer: 2, Root: 0, Metric: 6}); err != ErrTooManyAgents {
		t.Errorf("expected ErrTooManyAgents, got %v", err)
	}
	if len(s.DumpPeers()) != 1 {
		t.Errorf("state mutated on failed insert")
	}
}

func TestBoundary_ProcessRejectsSelfMessage(t *testing.T) {
	s := NewState(0, 4, []Edge{{Peer: 1, Root: 0, Metric: 5}})
	before := s.Dump()
	out := NewQueue[Message](4)
	err := s.Process(newMessage(0, 0, NoopPayload{}), out)
	if err != ErrProcessSelfMsg {
		t.Errorf("expected ErrProcessSelfMsg, got %v", err)
	}
	if s.Dump() != before {
		t.Errorf("state mutated by rejected self message")
	}
}

func TestBoundary_InPartDefersOnHigherLevel(t *testing.T) {
	s := NewState(0, 4, []Edge{{Peer: 1, Root: 0, Metric: 5}})
	out := NewQueue[Message](4)
	err := s.Process(newMessage(0, 1, InPartPayload{Leader: 5, Level: 1}), out)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Size() != 0 {
		t.Errorf("expected zero outbound messages, got %d", out.Size())
	}
	if s.deferredCount() != 1 {
		t.Errorf("expected one deferred probe, got %d", s.deferredCount())
	}
}

func TestBoundary_AckPartWithoutWaitingFails(t *testing.T) {
	s := NewState(0, 4, []Edge{{Peer: 1, Root: 0, Metric: 5}})
	before, _ := s.GetEdge(1)
	out := NewQueue[Message](4)
	err := s.Process(newMessage(0, 1, AckPartPayload{}), out)
	if err != ErrAckNotWaiting {
		t.Errorf("expected ErrAckNotWaiting, got %v", err)
	}
	after, _ := s.GetEdge(1)
	if before != after {
		t.Errorf("edge mutated despite rejected AckPart")
	}
}

// --- S1: two-node merge ---

func TestScenario_S1_TwoNodeMerge(t *testing.T) {
	net := newNetwork()
	n0 := NewState(0, 2, nil)
	n1 := NewState(1, 2, nil)
	e0, e1 := symmetricEdges(0, 1, 777)
	_ = n0.SetEdge(e0)
	_ = n1.SetEdge(e1)
	net.addNode(n0)
	net.addNode(n1)

	out := NewQueue[Message](8)
	_ = n0.StartRound(out)
	net.enqueue(out)
	out.Clear()
	_ = n1.StartRound(out)
	net.enqueue(out)

	net.drain(200)

	if countKind(net.trail, KindInPart) != 2 {
		t.Errorf("expected 2 InPart, got %d (%v)", countKind(net.trail, KindInPart), kindTrail(net.trail))
	}
	if countKind(net.trail, KindNackPart) != 2 {
		t.Errorf("expected 2 NackPart, got %d", countKind(net.trail, KindNackPart))
	}
	if countKind(net.trail, KindJoinUs) != 2 {
		t.Errorf("expected 2 JoinUs, got %d", countKind(net.trail, KindJoinUs))
	}
	if countKind(net.trail, KindSrch) != 1 {
		t.Errorf("expected 1 Srch, got %d", countKind(net.trail, KindSrch))
	}

	if n0.Leader() != 1 || n1.Leader() != 1 {
		t.Errorf("expected both leaders to be 1, got n0=%d n1=%d", n0.Leader(), n1.Leader())
	}
	if n0.LevelOf() != 1 || n1.LevelOf() != 1 {
		t.Errorf("expected both levels to be 1, got n0=%d n1=%d", n0.LevelOf(), n1.LevelOf())
	}
	e, _ := n0.GetEdge(1)
	if e.Status != StatusMst {
		t.Errorf("expected MST edge at node0, got %s", e.Status)
	}
	e, _ = n1.GetEdge(0)
	if e.Status != StatusMst {
		t.Errorf("expected MST edge at node1, got %s", e.Status)
	}
	if !n0.IsConverged() || !n1.IsConverged() {
		t.Errorf("expected convergence, got n0=%t n1=%t", n0.IsConverged(), n1.IsConverged())
	}
}

// --- S2: three-node frenzy ---

func TestScenario_S2_ThreeNodeFrenzy(t *testing.T) {
	net := newNetwork()
	ids := []AgentID{0, 1, 2}
	nodes := make(map[AgentID]*GhsState)
	for _, id := range ids {
		nodes[id] = NewState(id, 4, nil)
	}
	metrics := map[[2]AgentID]Metric{
		{0, 1}: 10,
		{0, 2}: 20,
		{1, 2}: 30,
	}
	for pair, m := range metrics {
		a, b := pair[0], pair[1]
		ea, eb := symmetricEdges(a, b, m)
		_ = nodes[a].SetEdge(ea)
		_ = nodes[b].SetEdge(eb)
	}
	for _, id := range ids {
		net.addNode(nodes[id])
	}

	out := NewQueue[Message](16)
	for _, id := range ids {
		out.Clear()
		_ = nodes[id].StartRound(out)
		net.enqueue(out)
	}

	net.drain(100)

	if len(net.pending) != 0 {
		t.Fatalf("network did not drain within 100 messages, trail=%v", kindTrail(net.trail))
	}

	leader := nodes[0].Leader()
	for _, id := range ids {
		if !nodes[id].IsConverged() {
			t.Errorf("node %d did not converge", id)
		}
		if nodes[id].Leader() != leader {
			t.Errorf("node %d leader %d != node 0 leader %d", id, nodes[id].Leader(), leader)
		}
	}
}

// --- S3: Srch without parent MST edge fails ---

func TestScenario_S3_SrchWithoutMstEdgeFails(t *testing.T) {
	s := NewState(0, 4, []Edge{{Peer: 2, Root: 0, Status: StatusUnknown, Metric: 5}})
	before := s.Dump()
	out := NewQueue[Message](4)
	err := s.Process(newMessage(0, 2, SrchPayload{Leader: 2, Level: 0}), out)
	if err != ErrProcessReqMst {
		t.Errorf("expected ErrProcessReqMst, got %v", err)
	}
	if s.Dump() != before {
		t.Errorf("state mutated by rejected Srch")
	}
}

// --- S4: deferred InPart answered after level rise ---

func TestScenario_S4_DeferredInPartAnsweredAfterLevelRise(t *testing.T) {
	s := NewState(0, 4, []Edge{{Peer: 1, Root: 0, Status: StatusUnknown, Metric: 5}})
	out := NewQueue[Message](4)
	err := s.Process(newMessage(0, 1, InPartPayload{Leader: 5, Level: 1}), out)
	if err != nil {
		t.Fatalf("process in_part: %v", err)
	}
	if out.Size() != 0 {
		t.Fatalf("expected deferred in_part to emit nothing, got %d", out.Size())
	}

	s.myLevel = 1 // simulate the level rise a merge would have caused
	if err := s.checkNewLevel(out); err != nil {
		t.Fatalf("check_new_level: %v", err)
	}
	if out.Size() != 1 {
		t.Fatalf("expected exactly one deferred response, got %d", out.Size())
	}
	m, _ := out.Front()
	if m.Payload.Kind() != KindNackPart {
		t.Errorf("expected NackPart (leader mismatch), got %s", m.Payload.Kind())
	}
	if s.deferredCount() != 0 {
		t.Errorf("expected deferred flag cleared")
	}
}

// --- S5: absorb across unequal levels ---

func TestScenario_S5_AbsorbAcrossUnequalLevels(t *testing.T) {
	a := NewState(0, 4, []Edge{{Peer: 1, Root: 0, Status: StatusUnknown, Metric: 5}})
	a.myLevel = 1
	a.myLeader = 9

	out := NewQueue[Message](4)
	err := a.Process(newMessage(0, 1, JoinUsPayload{JoinPeer: 0, JoinRoot: 1, ProposedLeader: 5, ProposedLevel: 0}), out)
	if err != nil {
		t.Fatalf("process join_us: %v", err)
	}
	if out.Size() != 0 {
		t.Errorf("expected absorb to emit nothing, got %d", out.Size())
	}
	e, _ := a.GetEdge(1)
	if e.Status != StatusMst {
		t.Errorf("expected edge to become MST, got %s", e.Status)
	}

	// A is not the leader of its partition, so StartRound must succeed
	// without starting a search of its own.
	out.Clear()
	if err := a.StartRound(out); err != nil {
		// a is not leader (myLeader=9 != myID 0), so StartRound is a no-op.
		t.Fatalf("start_round: %v", err)
	}
}

// --- S6: double JoinUs collision ---

func TestScenario_S6_DoubleJoinUsCollision(t *testing.T) {
	a := NewState(0, 4, []Edge{{Peer: 1, Root: 0, Status: StatusUnknown, Metric: 5}})
	b := NewState(1, 4, []Edge{{Peer: 0, Root: 1, Status: StatusUnknown, Metric: 5}})

	outA := NewQueue[Message](4)
	outB := NewQueue[Message](4)

	// Both sides propose before either has heard from the other.
	if err := a.processJoinUs(a.MyID(), JoinUsPayload{JoinPeer: 1, JoinRoot: 0, ProposedLeader: 0, ProposedLevel: 0}, outA); err != nil {
		t.Fatalf("a propose: %v", err)
	}
	if err := b.processJoinUs(b.MyID(), JoinUsPayload{JoinPeer: 0, JoinRoot: 1, ProposedLeader: 1, ProposedLevel: 0}, outB); err != nil {
		t.Fatalf("b propose: %v", err)
	}

	msgAtoB, err := outA.Pop()
	if err != nil {
		t.Fatalf("pop a's message: %v", err)
	}
	msgBtoA, err := outB.Pop()
	if err != nil {
		t.Fatalf("pop b's message: %v", err)
	}

	outA.Clear()
	outB.Clear()
	if err := b.Process(msgAtoB, outB); err != nil {
		t.Fatalf("b process a's join_us: %v", err)
	}
	if err := a.Process(msgBtoA, outA); err != nil {
		t.Fatalf("a process b's join_us: %v", err)
	}

	if a.Leader() != b.Leader() {
		t.Fatalf("expected identical computed leader, got a=%d b=%d", a.Leader(), b.Leader())
	}
	if a.Leader() != maxAgent(0, 1) {
		t.Errorf("expected leader to be max(0,1)=1, got %d", a.Leader())
	}

	aStarted := outA.Size() > 0
	bStarted := outB.Size() > 0
	if aStarted == bStarted {
		t.Errorf("expected exactly one side to start the next round, a=%t b=%t", aStarted, bStarted)
	}
}
